package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carrental/backend/internal/models"
	"carrental/backend/internal/store"
)

// IBookingService drives the request lifecycle: Pending requests sent by
// rentees, accepted or rejected by owners, with a booking id minted on
// acceptance and mirrored onto the rentee's ledger.
type IBookingService interface {
	SendRequest(ctx context.Context, renteeID, ownerID string) error
	TransitionRequest(ctx context.Context, renterID, renteeID string, status models.RequestStatus) (*TransitionResult, error)
	AcceptRequest(ctx context.Context, renterID, renteeID string) (*TransitionResult, error)
	UpdateRequestStatus(ctx context.Context, renterID, renteeID string, status models.RequestStatus) (*TransitionResult, error)
	GetPendingRequests(ctx context.Context, userID string) ([]models.RequestEntry, error)
	GetRequestStatus(ctx context.Context, renteeID string) ([]models.RequestStatusView, error)
	ClearRequestStatus(ctx context.Context, ownerID, renteeID string) error
	DeleteBooking(ctx context.Context, bookingID string) error
	SaveBookingID(ctx context.Context, requestID, bookingID string) error
	GetBookingDetails(ctx context.Context, bookingID string) (*models.BookingDetails, error)
	ReconcileLedgerSyncs(ctx context.Context) (int, error)
}

// TransitionResult describes a committed status change.
type TransitionResult struct {
	Status      models.RequestStatus `json:"status"`
	BookingID   string               `json:"bookingId,omitempty"`
	RenteePhone string               `json:"renteePhone,omitempty"`
}

type bookingService struct {
	store      store.DirectoryStore
	notifier   INotifier
	syncMaxAge time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService creates a new BookingService. Ledger syncs younger than
// syncMaxAge are left alone by ReconcileLedgerSyncs.
func NewBookingService(st store.DirectoryStore, notifier INotifier, syncMaxAge time.Duration, logger *zap.Logger) IBookingService {
	return &bookingService{
		store:      st,
		notifier:   notifier,
		syncMaxAge: syncMaxAge,
		logger:     logger.Named("booking"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) newBookingID() string {
	return fmt.Sprintf("BOOK%d", s.now().UnixMilli())
}

// SendRequest appends a Pending request from renteeID to the owner's ledger.
// The duplicate check and the append are separate operations.
func (s *bookingService) SendRequest(ctx context.Context, renteeID, ownerID string) error {
	if renteeID == "" || ownerID == "" {
		return invalidInput("Invalid request data.")
	}

	status, found, err := s.store.FindRequestStatus(ctx, ownerID, renteeID, models.StatusPending, models.StatusRejected)
	if err != nil {
		return dependency("Internal server error.", err)
	}
	if found {
		if status == models.StatusPending {
			return conflict("You already have a pending request with this renter.")
		}
		return conflict("Your previous request was rejected. You cannot send another request to this renter.")
	}

	rentee, err := s.store.FindAccountByRole(ctx, renteeID, models.RoleRentee)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Rentee not found.")
		}
		return dependency("Internal server error.", err)
	}

	entry := models.RequestEntry{
		RenteeID:      rentee.UserID,
		RenteeName:    rentee.Name,
		RenteeAddress: rentee.Address,
		RequestDate:   s.now(),
		Status:        models.StatusPending,
	}
	if err := s.store.PushRequest(ctx, ownerID, entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Renter not found.")
		}
		return dependency("Internal server error.", err)
	}
	s.logger.Info("request sent", zap.String("rentee_id", renteeID), zap.String("owner_id", ownerID))
	return nil
}

// TransitionRequest moves the Pending request of renteeID at renterID to
// status. Only one caller can win a given Pending entry.
func (s *bookingService) TransitionRequest(ctx context.Context, renterID, renteeID string, status models.RequestStatus) (*TransitionResult, error) {
	if renterID == "" || renteeID == "" {
		return nil, invalidInput("Renter ID and Rentee ID are required")
	}
	switch status {
	case models.StatusAccepted:
		return s.accept(ctx, renterID, renteeID)
	case models.StatusRejected:
		matched, err := s.store.TransitionRequest(ctx, renterID, renteeID, models.StatusPending,
			store.RequestUpdate{Status: models.StatusRejected})
		if err != nil {
			return nil, dependency("Server error", err)
		}
		if !matched {
			return nil, s.noPendingRequest(ctx, renterID, renteeID)
		}
		s.logger.Info("request rejected", zap.String("owner_id", renterID), zap.String("rentee_id", renteeID))
		return &TransitionResult{Status: models.StatusRejected}, nil
	default:
		return nil, invalidInput("Invalid status")
	}
}

func (s *bookingService) accept(ctx context.Context, renterID, renteeID string) (*TransitionResult, error) {
	rentee, err := s.store.FindAccount(ctx, renteeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Rentee not found")
		}
		return nil, dependency("Server error", err)
	}

	now := s.now()
	sync := &models.LedgerSync{
		ID:        uuid.NewString(),
		BookingID: s.newBookingID(),
		OwnerID:   renterID,
		RenteeID:  renteeID,
		State:     models.LedgerSyncPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertSync(ctx, sync); err != nil {
		return nil, dependency("Server error", err)
	}

	matched, err := s.store.TransitionRequest(ctx, renterID, renteeID, models.StatusPending, store.RequestUpdate{
		Status:      models.StatusAccepted,
		BookingID:   sync.BookingID,
		RenteePhone: rentee.Phone,
	})
	if err != nil || !matched {
		if delErr := s.store.DeleteSync(ctx, sync.ID); delErr != nil {
			s.logger.Warn("failed to discard ledger sync", zap.String("sync_id", sync.ID), zap.Error(delErr))
		}
		if err != nil {
			return nil, dependency("Server error", err)
		}
		return nil, s.noPendingRequest(ctx, renterID, renteeID)
	}

	if err := s.applySync(ctx, sync); err != nil {
		s.logger.Warn("rentee ledger mirror deferred to reconciliation",
			zap.String("booking_id", sync.BookingID),
			zap.String("rentee_id", renteeID),
			zap.Error(err))
	}

	if rentee.Email != "" {
		if err := s.notifier.SendBookingConfirmation(ctx, rentee.Email, rentee.Name, sync.BookingID); err != nil {
			s.logger.Error("failed to queue booking confirmation",
				zap.String("booking_id", sync.BookingID), zap.Error(err))
		}
	}

	s.logger.Info("request accepted",
		zap.String("owner_id", renterID),
		zap.String("rentee_id", renteeID),
		zap.String("booking_id", sync.BookingID))
	return &TransitionResult{
		Status:      models.StatusAccepted,
		BookingID:   sync.BookingID,
		RenteePhone: rentee.Phone,
	}, nil
}

// noPendingRequest explains why a transition from Pending matched nothing.
func (s *bookingService) noPendingRequest(ctx context.Context, renterID, renteeID string) error {
	status, found, err := s.store.FindRequestStatus(ctx, renterID, renteeID, models.StatusAccepted, models.StatusRejected)
	if err != nil {
		return dependency("Server error", err)
	}
	if found {
		return conflict("Request already " + strings.ToLower(string(status)))
	}
	return notFound("Request not found for renter")
}

// applySync writes the rentee mirror entry and closes the sync record.
func (s *bookingService) applySync(ctx context.Context, sync *models.LedgerSync) error {
	err := s.store.PushMirror(ctx, sync.RenteeID, sync.MirrorEntry())
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("rentee vanished before mirror write", zap.String("rentee_id", sync.RenteeID))
		err = nil
	}
	if err != nil {
		if recErr := s.store.RecordSyncFailure(ctx, sync.ID, err); recErr != nil {
			s.logger.Warn("failed to record ledger sync failure", zap.String("sync_id", sync.ID), zap.Error(recErr))
		}
		return err
	}
	return s.store.MarkSyncDone(ctx, sync.ID)
}

func (s *bookingService) AcceptRequest(ctx context.Context, renterID, renteeID string) (*TransitionResult, error) {
	return s.TransitionRequest(ctx, renterID, renteeID, models.StatusAccepted)
}

func (s *bookingService) UpdateRequestStatus(ctx context.Context, renterID, renteeID string, status models.RequestStatus) (*TransitionResult, error) {
	if renterID == "" || renteeID == "" || status == "" {
		return nil, invalidInput("Invalid input")
	}
	return s.TransitionRequest(ctx, renterID, renteeID, status)
}

func (s *bookingService) GetPendingRequests(ctx context.Context, userID string) ([]models.RequestEntry, error) {
	if userID == "" {
		return nil, invalidInput("User ID is required.")
	}
	renter, err := s.store.FindAccountByRole(ctx, userID, models.RoleRenter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Renter not found.")
		}
		return nil, dependency("Failed to fetch requests.", err)
	}
	pending := []models.RequestEntry{}
	for _, r := range renter.Requests {
		if r.Status == models.StatusPending {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return nil, notFound("No pending requests found.")
	}
	return pending, nil
}

func (s *bookingService) GetRequestStatus(ctx context.Context, renteeID string) ([]models.RequestStatusView, error) {
	if renteeID == "" {
		return nil, invalidInput("Rentee ID is required")
	}
	renters, err := s.store.FindRentersWithRequestFrom(ctx, renteeID)
	if err != nil {
		return nil, dependency("Internal server error", err)
	}
	views := []models.RequestStatusView{}
	for _, renter := range renters {
		for _, r := range renter.Requests {
			if r.RenteeID == renteeID {
				views = append(views, models.RequestStatusView{
					OwnerID:   renter.UserID,
					Status:    r.Status,
					BookingID: r.BookingID,
				})
			}
		}
	}
	return views, nil
}

// ClearRequestStatus deletes every entry of renteeID from the owner's
// ledger, lifting a rejection block.
func (s *bookingService) ClearRequestStatus(ctx context.Context, ownerID, renteeID string) error {
	if ownerID == "" || renteeID == "" {
		return invalidInput("Rentee ID and Owner ID are required")
	}
	if err := s.store.PullRequestsByRentee(ctx, ownerID, renteeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Owner not found")
		}
		return dependency("Internal server error", err)
	}
	return nil
}

// DeleteBooking removes the booking from the owner ledger and the rentee mirror.
func (s *bookingService) DeleteBooking(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return invalidInput("Booking ID is required")
	}
	modified, err := s.store.PullRequestsByBookingID(ctx, bookingID)
	if err != nil {
		return dependency("Failed to clear booking", err)
	}
	if modified == 0 {
		return notFound("Booking not found")
	}
	if err := s.store.CloseSyncsByBookingID(ctx, bookingID); err != nil {
		s.logger.Warn("failed to close ledger syncs of deleted booking", zap.String("booking_id", bookingID), zap.Error(err))
	}
	s.logger.Info("booking deleted", zap.String("booking_id", bookingID), zap.Int64("documents", modified))
	return nil
}

// SaveBookingID renames a booking id wherever it appears. The new id is not
// checked for uniqueness.
func (s *bookingService) SaveBookingID(ctx context.Context, requestID, bookingID string) error {
	if requestID == "" || bookingID == "" {
		return invalidInput("Request ID and Booking ID are required")
	}
	modified, err := s.store.RenameBookingID(ctx, requestID, bookingID)
	if err != nil {
		return dependency("Internal Server Error", err)
	}
	if modified == 0 {
		return notFound("Request not found")
	}
	if err := s.store.RenameSyncBookingID(ctx, requestID, bookingID); err != nil {
		s.logger.Error("failed to rename pending ledger syncs",
			zap.String("old_booking_id", requestID),
			zap.String("booking_id", bookingID),
			zap.Error(err))
	}
	return nil
}

func (s *bookingService) GetBookingDetails(ctx context.Context, bookingID string) (*models.BookingDetails, error) {
	if bookingID == "" {
		return nil, invalidInput("Booking ID is required")
	}
	owner, err := s.store.FindAccountByBookingID(ctx, bookingID, models.RoleRenter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Booking not found")
		}
		return nil, dependency("Internal server error", err)
	}
	entry, ok := owner.FindRequestByBookingID(bookingID)
	if !ok {
		return nil, notFound("Booking not found")
	}
	return &models.BookingDetails{
		OwnerID:   owner.UserID,
		RenteeID:  entry.RenteeID,
		BookingID: entry.BookingID,
		Status:    entry.Status,
		Date:      entry.RequestDate,
	}, nil
}

// ownerHoldsBooking reports whether the owner ledger still has the accepted
// entry a sync was recorded for. Deleted, renamed or never committed
// bookings must not be mirrored.
func (s *bookingService) ownerHoldsBooking(ctx context.Context, sync *models.LedgerSync) (bool, error) {
	owner, err := s.store.FindAccountByBookingID(ctx, sync.BookingID, models.RoleRenter)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if owner.UserID != sync.OwnerID {
		return false, nil
	}
	entry, ok := owner.FindRequestByBookingID(sync.BookingID)
	return ok && entry.Status == models.StatusAccepted && entry.RenteeID == sync.RenteeID, nil
}

// ReconcileLedgerSyncs replays mirror writes left pending by failed
// acceptances. It returns how many were completed.
func (s *bookingService) ReconcileLedgerSyncs(ctx context.Context) (int, error) {
	pending, err := s.store.ListPendingSyncs(ctx, s.now().Add(-s.syncMaxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to list pending ledger syncs: %w", err)
	}
	repaired := 0
	for i := range pending {
		sync := &pending[i]
		live, err := s.ownerHoldsBooking(ctx, sync)
		if err != nil {
			s.logger.Warn("failed to check owner ledger for sync", zap.String("sync_id", sync.ID), zap.Error(err))
			continue
		}
		if !live {
			if err := s.store.MarkSyncDone(ctx, sync.ID); err != nil {
				s.logger.Warn("failed to close stale ledger sync", zap.String("sync_id", sync.ID), zap.Error(err))
				continue
			}
			s.logger.Info("discarded stale ledger sync",
				zap.String("sync_id", sync.ID),
				zap.String("booking_id", sync.BookingID))
			continue
		}
		if err := s.applySync(ctx, sync); err != nil {
			s.logger.Warn("ledger sync still failing",
				zap.String("sync_id", sync.ID),
				zap.String("booking_id", sync.BookingID),
				zap.Int("attempts", sync.Attempts+1),
				zap.Error(err))
			continue
		}
		repaired++
	}
	if len(pending) > 0 {
		s.logger.Info("ledger reconciliation finished", zap.Int("pending", len(pending)), zap.Int("repaired", repaired))
	}
	return repaired, nil
}
