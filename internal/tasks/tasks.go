package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"carrental/backend/internal/config"
	"carrental/backend/internal/email"
	"carrental/backend/internal/models"
	"carrental/backend/internal/services"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery = "email:deliver"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

const emailMaxRetry = 5

// --- Task Client (Enqueuing tasks) ---

// IAsynqClient is the subset of *asynq.Client used to enqueue work.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// EmailTaskPayload is the body of an email:deliver task.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// EmailDispatcher queues outbound mail. It implements services.INotifier.
type EmailDispatcher struct {
	client   IAsynqClient
	currency string
	logger   *zap.Logger
}

func NewEmailDispatcher(client IAsynqClient, currency string, logger *zap.Logger) *EmailDispatcher {
	return &EmailDispatcher{client: client, currency: currency, logger: logger}
}

var _ services.INotifier = (*EmailDispatcher)(nil)

func (d *EmailDispatcher) SendBookingConfirmation(ctx context.Context, to, name, bookingID string) error {
	return d.enqueue(ctx, EmailTaskPayload{
		To:         to,
		TemplateID: services.TemplateBookingConfirmation,
		Locale:     services.DefaultLocale,
		Data:       services.BookingConfirmationData(name, bookingID),
	})
}

func (d *EmailDispatcher) SendBill(ctx context.Context, to, name string, bill *models.Bill) error {
	return d.enqueue(ctx, EmailTaskPayload{
		To:         to,
		TemplateID: services.TemplateRentalBill,
		Locale:     services.DefaultLocale,
		Data:       services.BillData(name, bill, d.currency),
	})
}

func (d *EmailDispatcher) enqueue(ctx context.Context, payload EmailTaskPayload) error {
	if payload.To == "" {
		return fmt.Errorf("no recipient for %s email", payload.TemplateID)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	info, err := d.client.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, body),
		asynq.Queue(QueueCritical), asynq.MaxRetry(emailMaxRetry))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s email: %w", payload.TemplateID, err)
	}
	d.logger.Debug("email task enqueued",
		zap.String("task_id", info.ID),
		zap.String("template", payload.TemplateID),
		zap.String("to", payload.To))
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg       *config.Config
	sender    email.Sender
	templates services.IEmailTemplateService
	logger    *zap.Logger
}

func NewTaskProcessor(cfg *config.Config, sender email.Sender, templates services.IEmailTemplateService, logger *zap.Logger) *TaskProcessor {
	return &TaskProcessor{cfg: cfg, sender: sender, templates: templates, logger: logger}
}

// SetupServer configures the asynq server and its handlers. The caller
// starts it with srv.Start(mux).
func SetupServer(rdb *redis.Client, processor *TaskProcessor, logger *zap.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err))
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	return srv, mux
}

// --- Task Handlers ---

// HandleEmailDeliveryTask renders the requested template and sends it.
// Malformed payloads and missing or broken templates are not retried; a
// failed template lookup is.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	locale := payload.Locale
	if locale == "" {
		locale = services.DefaultLocale
	}

	subject, body, err := p.templates.Render(ctx, payload.TemplateID, locale, payload.Data)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) || errors.Is(err, services.ErrTemplateInvalid) {
			p.logger.Error("email template unusable",
				zap.String("template", payload.TemplateID),
				zap.String("locale", locale),
				zap.Error(err))
			return fmt.Errorf("email template %s: %v: %w", payload.TemplateID, err, asynq.SkipRetry)
		}
		p.logger.Warn("email template lookup failed, will retry",
			zap.String("template", payload.TemplateID),
			zap.Error(err))
		return fmt.Errorf("email template %s: %w", payload.TemplateID, err)
	}

	msg := &email.Message{
		FromAddress: p.cfg.SmtpFromAddress,
		FromName:    p.cfg.SmtpFromName,
		To:          []string{payload.To},
		Subject:     subject,
		HTMLBody:    body,
		Tag:         payload.TemplateID,
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		p.logger.Warn("email delivery failed, will retry",
			zap.String("template", payload.TemplateID),
			zap.String("to", payload.To),
			zap.Error(err))
		return err
	}

	p.logger.Info("email delivered",
		zap.String("template", payload.TemplateID),
		zap.String("to", payload.To))
	return nil
}
