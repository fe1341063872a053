package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carrental/backend/internal/models"
	"carrental/backend/internal/store"
)

func ptr(v float64) *float64 { return &v }

func TestBillingService_ComputeBill(t *testing.T) {
	svc := NewBillingService(store.NewMemoryStore(), new(mockNotifier), NewEmailTemplateService(nil), nil, "₹", zap.NewNop())

	tests := []struct {
		name                        string
		start, end, price           float64
		bill, charge, total, refund float64
		owed                        float64
	}{
		{name: "refund", start: 100, end: 300, price: 10, bill: 2000, charge: 100, total: 2100, refund: 7900},
		{name: "collect", start: 100, end: 5100, price: 10, bill: 50000, charge: 2500, total: 52500, owed: 42500},
		{name: "exactly the deposit", start: 0, end: 1000, price: 10000.0 / 1050.0, bill: 10000.0 / 1.05, charge: 10000.0 / 1.05 * 0.05, total: 10000},
		{name: "negative distance is not rejected", start: 300, end: 100, price: 10, bill: -2000, charge: -100, total: -2100, refund: 12100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill := svc.ComputeBill("B1", tt.start, tt.end, tt.price, 0)
			assert.InDelta(t, tt.end-tt.start, bill.Distance, 1e-9)
			assert.InDelta(t, tt.bill, bill.BillAmount, 1e-6)
			assert.InDelta(t, tt.charge, bill.ServiceCharge, 1e-6)
			assert.InDelta(t, tt.total, bill.TotalAmount, 1e-6)
			assert.InDelta(t, tt.refund, bill.RefundAmount, 1e-6)
			assert.InDelta(t, tt.owed, bill.AmountOwed, 1e-6)
			assert.Equal(t, SecurityDeposit, bill.SecurityDeposit)
		})
	}
}

func TestBill_PaymentStatus(t *testing.T) {
	svc := NewBillingService(store.NewMemoryStore(), new(mockNotifier), NewEmailTemplateService(nil), nil, "₹", zap.NewNop())

	refund := svc.ComputeBill("B1", 100, 300, 10, 0)
	assert.True(t, refund.Refunds())
	assert.Equal(t, "Remaining Amount Returned: ₹7900.00", refund.PaymentStatus("₹"))

	owed := svc.ComputeBill("B2", 100, 5100, 10, 500)
	assert.False(t, owed.Refunds())
	assert.Equal(t, "Amount to be Collected: ₹42500.00", owed.PaymentStatus("₹"))
	assert.Equal(t, 500.0, owed.CoverageAmount, "coverage is carried but not applied")
}

func seedBooking(t *testing.T, st store.DirectoryStore) {
	t.Helper()
	seedAccounts(t, st)
	require.NoError(t, st.PushMirror(context.Background(), "rentee1", models.RequestEntry{
		Status: models.StatusAccepted, BookingID: "BOOK42", OwnerID: "owner1", UpdatedBy: "System",
	}))
}

func TestBillingService_GenerateBill(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedBooking(t, st)
	notifier := new(mockNotifier)
	archive := new(mockBillArchive)
	svc := NewBillingService(st, notifier, NewEmailTemplateService(nil), archive, "₹", zap.NewNop())

	notifier.On("SendBill", mock.Anything, "rentee1@example.com", "Kiran", mock.MatchedBy(func(b *models.Bill) bool {
		return b.BookingID == "BOOK42" && b.TotalAmount == 2100
	})).Return(nil).Once()
	archive.On("PutBill", mock.Anything, "BOOK42", mock.MatchedBy(func(html []byte) bool {
		return strings.Contains(string(html), "BOOK42") && strings.Contains(string(html), "Remaining Amount Returned: ₹7900.00")
	})).Return("bills/BOOK42.html", nil).Once()

	bill, err := svc.GenerateBill(ctx, GenerateBillInput{BookingID: "BOOK42", StartingKm: ptr(100), EndingKm: ptr(300), PricePerKm: ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, 7900.0, bill.RefundAmount)

	notifier.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestBillingService_GenerateBill_ArchiveFailureIsLogged(t *testing.T) {
	st := store.NewMemoryStore()
	seedBooking(t, st)
	notifier := new(mockNotifier)
	archive := new(mockBillArchive)
	svc := NewBillingService(st, notifier, NewEmailTemplateService(nil), archive, "₹", zap.NewNop())

	archive.On("PutBill", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("access denied"))
	notifier.On("SendBill", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.GenerateBill(context.Background(), GenerateBillInput{BookingID: "BOOK42", StartingKm: ptr(0), EndingKm: ptr(10), PricePerKm: ptr(5)})
	require.NoError(t, err)
	notifier.AssertNumberOfCalls(t, "SendBill", 1)
}

func TestBillingService_GenerateBill_Errors(t *testing.T) {
	st := store.NewMemoryStore()
	seedBooking(t, st)
	notifier := new(mockNotifier)
	svc := NewBillingService(st, notifier, NewEmailTemplateService(nil), nil, "₹", zap.NewNop())
	ctx := context.Background()

	_, err := svc.GenerateBill(ctx, GenerateBillInput{BookingID: "BOOK42", StartingKm: ptr(100), PricePerKm: ptr(10)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "All required fields must be provided.", Message(err, ""))

	// The owner side of a booking is not billed.
	require.NoError(t, st.PushRequest(ctx, "owner1", models.RequestEntry{RenteeID: "rentee2", Status: models.StatusAccepted, BookingID: "OWNERONLY"}))
	_, err = svc.GenerateBill(ctx, GenerateBillInput{BookingID: "OWNERONLY", StartingKm: ptr(1), EndingKm: ptr(2), PricePerKm: ptr(3)})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Booking ID not found or user is not a rentee.", Message(err, ""))

	notifier.On("SendBill", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("enqueue failed"))
	_, err = svc.GenerateBill(ctx, GenerateBillInput{BookingID: "BOOK42", StartingKm: ptr(1), EndingKm: ptr(2), PricePerKm: ptr(3)})
	assert.ErrorIs(t, err, ErrDependency)
	assert.Equal(t, "Server error.", Message(err, ""))
}
