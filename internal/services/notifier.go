package services

import (
	"context"

	"carrental/backend/internal/models"
)

// INotifier queues outbound mail. Implementations must not block on delivery.
type INotifier interface {
	SendBookingConfirmation(ctx context.Context, to, name, bookingID string) error
	SendBill(ctx context.Context, to, name string, bill *models.Bill) error
}
