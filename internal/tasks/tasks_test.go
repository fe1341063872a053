package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carrental/backend/internal/config"
	"carrental/backend/internal/email"
	"carrental/backend/internal/models"
	"carrental/backend/internal/services"
	"carrental/backend/internal/tasks"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, msg *email.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockEmailTemplateService struct {
	mock.Mock
}

func (m *MockEmailTemplateService) GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error) {
	args := m.Called(ctx, templateID, locale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailTemplate), args.Error(1)
}

func (m *MockEmailTemplateService) Render(ctx context.Context, templateID, locale string, data map[string]interface{}) (string, string, error) {
	args := m.Called(ctx, templateID, locale, data)
	return args.String(0), args.String(1), args.Error(2)
}

type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

func emailTask(t *testing.T, payload tasks.EmailTaskPayload) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeEmailDelivery, body)
}

func decodePayload(t *asynq.Task) tasks.EmailTaskPayload {
	var p tasks.EmailTaskPayload
	_ = json.Unmarshal(t.Payload(), &p)
	return p
}

// --- Processor ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	sender := new(MockEmailSender)
	templates := new(MockEmailTemplateService)
	cfg := &config.Config{SmtpFromAddress: "noreply@carrental.test", SmtpFromName: "Car Rental"}
	p := tasks.NewTaskProcessor(cfg, sender, templates, zap.NewNop())

	task := emailTask(t, tasks.EmailTaskPayload{
		To:         "kiran@example.com",
		TemplateID: services.TemplateBookingConfirmation,
		Data:       map[string]interface{}{"name": "Kiran", "booking_id": "BOOK1"},
	})

	templates.On("Render", mock.Anything, services.TemplateBookingConfirmation, services.DefaultLocale,
		map[string]interface{}{"name": "Kiran", "booking_id": "BOOK1"}).
		Return("Your Car Rental Booking Confirmation", "<p>BOOK1</p>", nil)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg *email.Message) bool {
		return msg.FromAddress == "noreply@carrental.test" &&
			msg.FromName == "Car Rental" &&
			len(msg.To) == 1 && msg.To[0] == "kiran@example.com" &&
			msg.Subject == "Your Car Rental Booking Confirmation" &&
			msg.HTMLBody == "<p>BOOK1</p>" &&
			msg.Tag == services.TemplateBookingConfirmation
	})).Return(nil)

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.NoError(t, err)
	templates.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_TemplateNotFound(t *testing.T) {
	sender := new(MockEmailSender)
	templates := new(MockEmailTemplateService)
	p := tasks.NewTaskProcessor(&config.Config{}, sender, templates, zap.NewNop())

	task := emailTask(t, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "nonexistent", Locale: "en-US"})
	templates.On("Render", mock.Anything, "nonexistent", "en-US", mock.Anything).
		Return("", "", fmt.Errorf("%w: nonexistent", services.ErrTemplateNotFound))

	err := p.HandleEmailDeliveryTask(context.Background(), task)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Error should be SkipRetry for template not found")
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_BrokenTemplateIsNotRetried(t *testing.T) {
	sender := new(MockEmailSender)
	templates := new(MockEmailTemplateService)
	p := tasks.NewTaskProcessor(&config.Config{}, sender, templates, zap.NewNop())

	templates.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", "", fmt.Errorf("%w: body of rental_bill", services.ErrTemplateInvalid))

	err := p.HandleEmailDeliveryTask(context.Background(), emailTask(t, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "rental_bill"}))

	assert.True(t, errors.Is(err, asynq.SkipRetry))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_TemplateLookupFailureIsRetried(t *testing.T) {
	sender := new(MockEmailSender)
	templates := new(MockEmailTemplateService)
	p := tasks.NewTaskProcessor(&config.Config{}, sender, templates, zap.NewNop())

	lookupErr := errors.New("error retrieving template: server selection timeout")
	templates.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", "", lookupErr)

	err := p.HandleEmailDeliveryTask(context.Background(), emailTask(t, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "booking_confirmation"}))

	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.ErrorIs(t, err, lookupErr)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_BadPayload(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, new(MockEmailSender), new(MockEmailTemplateService), zap.NewNop())

	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = p.HandleEmailDeliveryTask(context.Background(), emailTask(t, tasks.EmailTaskPayload{TemplateID: "x"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleEmailDeliveryTask_SendFailureRetries(t *testing.T) {
	sender := new(MockEmailSender)
	templates := new(MockEmailTemplateService)
	p := tasks.NewTaskProcessor(&config.Config{}, sender, templates, zap.NewNop())

	templates.On("Render", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("s", "b", nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	err := p.HandleEmailDeliveryTask(context.Background(), emailTask(t, tasks.EmailTaskPayload{To: "a@example.com", TemplateID: "x"}))

	assert.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

// --- Dispatcher ---

func TestEmailDispatcher_SendBookingConfirmation(t *testing.T) {
	client := new(MockAsynqClient)
	d := tasks.NewEmailDispatcher(client, "₹", zap.NewNop())

	client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		p := decodePayload(task)
		return task.Type() == tasks.TypeEmailDelivery &&
			p.To == "kiran@example.com" &&
			p.TemplateID == services.TemplateBookingConfirmation &&
			p.Locale == services.DefaultLocale &&
			p.Data["name"] == "Kiran" &&
			p.Data["booking_id"] == "BOOK1"
	})).Return(&asynq.TaskInfo{ID: "t1"}, nil)

	err := d.SendBookingConfirmation(context.Background(), "kiran@example.com", "Kiran", "BOOK1")

	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestEmailDispatcher_SendBill(t *testing.T) {
	client := new(MockAsynqClient)
	d := tasks.NewEmailDispatcher(client, "₹", zap.NewNop())
	bill := &models.Bill{
		BookingID: "BOOK1", StartingKm: 100, EndingKm: 300, Distance: 200, PricePerKm: 10,
		BillAmount: 2000, ServiceCharge: 100, TotalAmount: 2100, SecurityDeposit: 10000, RefundAmount: 7900,
	}

	client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		p := decodePayload(task)
		return p.TemplateID == services.TemplateRentalBill &&
			p.Data["currency"] == "₹" &&
			p.Data["total_amount"] == "2100.00" &&
			p.Data["payment_status"] == "Remaining Amount Returned: ₹7900.00"
	})).Return(&asynq.TaskInfo{ID: "t2"}, nil)

	assert.NoError(t, d.SendBill(context.Background(), "kiran@example.com", "Kiran", bill))
	client.AssertExpectations(t)
}

func TestEmailDispatcher_Errors(t *testing.T) {
	client := new(MockAsynqClient)
	d := tasks.NewEmailDispatcher(client, "₹", zap.NewNop())

	err := d.SendBookingConfirmation(context.Background(), "", "Kiran", "BOOK1")
	assert.Error(t, err)
	client.AssertNotCalled(t, "EnqueueContext", mock.Anything, mock.Anything)

	client.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	err = d.SendBookingConfirmation(context.Background(), "kiran@example.com", "Kiran", "BOOK1")
	assert.ErrorContains(t, err, "redis down")
}
