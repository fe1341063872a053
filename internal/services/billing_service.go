package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"carrental/backend/internal/models"
	"carrental/backend/internal/store"
)

const (
	SecurityDeposit   = 10000.0
	ServiceChargeRate = 0.05
)

// IBillingService computes and sends the final bill of a booking.
type IBillingService interface {
	ComputeBill(bookingID string, startingKm, endingKm, pricePerKm, coverageAmount float64) *models.Bill
	GenerateBill(ctx context.Context, input GenerateBillInput) (*models.Bill, error)
}

// GenerateBillInput carries odometer readings. Nil readings count as missing.
type GenerateBillInput struct {
	BookingID      string
	StartingKm     *float64
	EndingKm       *float64
	PricePerKm     *float64
	CoverageAmount float64
}

// IBillArchive stores rendered bills. PutBill returns the object key.
type IBillArchive interface {
	PutBill(ctx context.Context, bookingID string, html []byte) (string, error)
}

type billingService struct {
	store     store.AccountStore
	notifier  INotifier
	templates IEmailTemplateService
	archive   IBillArchive
	currency  string
	logger    *zap.Logger
}

// NewBillingService creates a new BillingService. archive may be nil.
func NewBillingService(st store.AccountStore, notifier INotifier, templates IEmailTemplateService, archive IBillArchive, currency string, logger *zap.Logger) IBillingService {
	return &billingService{
		store:     st,
		notifier:  notifier,
		templates: templates,
		archive:   archive,
		currency:  currency,
		logger:    logger.Named("billing"),
	}
}

// ComputeBill settles a rental against the security deposit. Distance is not
// checked for sign. Coverage is carried on the bill but not applied.
func (s *billingService) ComputeBill(bookingID string, startingKm, endingKm, pricePerKm, coverageAmount float64) *models.Bill {
	bill := &models.Bill{
		BookingID:       bookingID,
		StartingKm:      startingKm,
		EndingKm:        endingKm,
		PricePerKm:      pricePerKm,
		CoverageAmount:  coverageAmount,
		SecurityDeposit: SecurityDeposit,
	}
	bill.Distance = endingKm - startingKm
	bill.BillAmount = bill.Distance * pricePerKm
	bill.ServiceCharge = bill.BillAmount * ServiceChargeRate
	bill.TotalAmount = bill.BillAmount + bill.ServiceCharge
	if bill.TotalAmount <= SecurityDeposit {
		bill.RefundAmount = SecurityDeposit - bill.TotalAmount
	} else {
		bill.AmountOwed = bill.TotalAmount - SecurityDeposit
	}
	return bill
}

// GenerateBill computes the bill and queues it for the rentee holding the booking.
func (s *billingService) GenerateBill(ctx context.Context, input GenerateBillInput) (*models.Bill, error) {
	if input.BookingID == "" || input.StartingKm == nil || input.EndingKm == nil || input.PricePerKm == nil {
		return nil, invalidInput("All required fields must be provided.")
	}

	rentee, err := s.store.FindAccountByBookingID(ctx, input.BookingID, models.RoleRentee)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Booking ID not found or user is not a rentee.")
		}
		return nil, dependency("Server error.", err)
	}

	bill := s.ComputeBill(input.BookingID, *input.StartingKm, *input.EndingKm, *input.PricePerKm, input.CoverageAmount)

	if s.archive != nil {
		s.archiveBill(ctx, rentee.Name, bill)
	}

	if err := s.notifier.SendBill(ctx, rentee.Email, rentee.Name, bill); err != nil {
		return nil, dependency("Server error.", err)
	}
	s.logger.Info("bill queued",
		zap.String("booking_id", bill.BookingID),
		zap.Float64("total", bill.TotalAmount))
	return bill, nil
}

func (s *billingService) archiveBill(ctx context.Context, name string, bill *models.Bill) {
	_, body, err := s.templates.Render(ctx, TemplateRentalBill, DefaultLocale, BillData(name, bill, s.currency))
	if err != nil {
		s.logger.Warn("failed to render bill for archive", zap.String("booking_id", bill.BookingID), zap.Error(err))
		return
	}
	key, err := s.archive.PutBill(ctx, bill.BookingID, []byte(body))
	if err != nil {
		s.logger.Warn("failed to archive bill", zap.String("booking_id", bill.BookingID), zap.Error(err))
		return
	}
	s.logger.Debug("bill archived", zap.String("booking_id", bill.BookingID), zap.String("key", key))
}
