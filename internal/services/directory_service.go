package services

import (
	"context"
	"errors"

	"carrental/backend/internal/models"
	"carrental/backend/internal/store"
)

// IDirectoryService answers read-only lookups over owners and bookings.
type IDirectoryService interface {
	Search(ctx context.Context, pincode string) ([]models.PublicRenter, error)
	FetchMechanicBookings(ctx context.Context, pincode string) ([]models.MechanicBooking, error)
	FetchBookings(ctx context.Context, mechanicID string) ([]models.MechanicBooking, error)
	GetMechanicPincode(ctx context.Context, mechanicID string) (string, error)
}

type directoryService struct {
	store store.DirectoryStore
}

// NewDirectoryService creates a new DirectoryService.
func NewDirectoryService(st store.DirectoryStore) IDirectoryService {
	return &directoryService{store: st}
}

// Search lists owners registered at exactly pincode.
func (s *directoryService) Search(ctx context.Context, pincode string) ([]models.PublicRenter, error) {
	if pincode == "" {
		return nil, invalidInput("Pincode is required")
	}
	renters, err := s.store.FindRentersByPincode(ctx, pincode)
	if err != nil {
		return nil, dependency("Failed to fetch renters", err)
	}
	if len(renters) == 0 {
		return nil, notFound("No renters found in this pincode.")
	}
	out := make([]models.PublicRenter, 0, len(renters))
	for _, r := range renters {
		out = append(out, models.PublicRenter{
			UserID:       r.UserID,
			Name:         r.Name,
			Address:      r.Address,
			CarModel:     r.CarModel,
			Price:        r.Price,
			Availability: r.Availability,
		})
	}
	return out, nil
}

func (s *directoryService) FetchMechanicBookings(ctx context.Context, pincode string) ([]models.MechanicBooking, error) {
	if pincode == "" {
		return nil, invalidInput("Pincode is required")
	}
	bookings, err := s.bookingsAt(ctx, pincode)
	if err != nil {
		return nil, dependency("Internal server error", err)
	}
	if len(bookings) == 0 {
		return nil, notFound("No bookings found.")
	}
	return bookings, nil
}

// FetchBookings lists accepted bookings in the mechanic's own pincode.
func (s *directoryService) FetchBookings(ctx context.Context, mechanicID string) ([]models.MechanicBooking, error) {
	pincode, err := s.GetMechanicPincode(ctx, mechanicID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.bookingsAt(ctx, pincode)
	if err != nil {
		return nil, dependency("Internal server error", err)
	}
	return bookings, nil
}

func (s *directoryService) GetMechanicPincode(ctx context.Context, mechanicID string) (string, error) {
	if mechanicID == "" {
		return "", invalidInput("Mechanic ID is required")
	}
	mechanic, err := s.store.FindMechanic(ctx, mechanicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFound("Mechanic not found")
		}
		return "", dependency("Server error", err)
	}
	return mechanic.Pincode, nil
}

func (s *directoryService) bookingsAt(ctx context.Context, pincode string) ([]models.MechanicBooking, error) {
	renters, err := s.store.FindRentersWithBookings(ctx, pincode)
	if err != nil {
		return nil, err
	}
	bookings := []models.MechanicBooking{}
	for _, renter := range renters {
		for _, r := range renter.Requests {
			if r.Status != models.StatusAccepted || r.BookingID == "" {
				continue
			}
			bookings = append(bookings, models.MechanicBooking{
				RenterID:      renter.UserID,
				RenterName:    renter.Name,
				RenterAddress: renter.Address,
				RenterPhone:   renter.Phone,
				BookingID:     r.BookingID,
				RenteeID:      r.RenteeID,
				RenteePhone:   r.RenteePhone,
				RequestDate:   r.RequestDate,
			})
		}
	}
	return bookings, nil
}
