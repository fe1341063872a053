// Package store is the Directory Store: account and mechanic documents, the
// request ledger embedded in each account, and the ledger sync outbox.
package store

import (
	"context"
	"errors"
	"time"

	"carrental/backend/internal/models"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique key (userId, email) is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// RequestUpdate holds the fields written when a request changes status.
// Empty strings leave the stored value untouched.
type RequestUpdate struct {
	Status      models.RequestStatus
	BookingID   string
	RenteePhone string
}

// AccountStore persists owner and rentee accounts and their request ledgers.
type AccountStore interface {
	InsertAccount(ctx context.Context, account *models.Account) error
	FindAccount(ctx context.Context, userID string) (*models.Account, error)
	FindAccountByRole(ctx context.Context, userID string, role models.Role) (*models.Account, error)
	FindAccountByBookingID(ctx context.Context, bookingID string, role models.Role) (*models.Account, error)
	FindRentersByPincode(ctx context.Context, pincode string) ([]models.Account, error)
	FindRentersWithBookings(ctx context.Context, pincode string) ([]models.Account, error)
	FindRentersWithRequestFrom(ctx context.Context, renteeID string) ([]models.Account, error)
	SetAvailability(ctx context.Context, userID string, availability models.Availability) error

	// FindRequestStatus returns the status of the first entry for renteeID in
	// the owner's ledger whose status is one of statuses, checked in order.
	FindRequestStatus(ctx context.Context, ownerID, renteeID string, statuses ...models.RequestStatus) (models.RequestStatus, bool, error)
	PushRequest(ctx context.Context, ownerID string, entry models.RequestEntry) error
	// PushMirror appends entry to the rentee's ledger unless an entry with the
	// same booking id is already there.
	PushMirror(ctx context.Context, renteeID string, entry models.RequestEntry) error
	// TransitionRequest updates the first entry for renteeID whose status is
	// from. It reports false when no such entry exists.
	TransitionRequest(ctx context.Context, ownerID, renteeID string, from models.RequestStatus, update RequestUpdate) (bool, error)
	PullRequestsByRentee(ctx context.Context, ownerID, renteeID string) error
	PullRequestsByBookingID(ctx context.Context, bookingID string) (int64, error)
	RenameBookingID(ctx context.Context, oldID, newID string) (int64, error)
}

// MechanicStore persists mechanic records.
type MechanicStore interface {
	InsertMechanic(ctx context.Context, mechanic *models.Mechanic) error
	UpsertMechanic(ctx context.Context, mechanic *models.Mechanic) error
	FindMechanic(ctx context.Context, userID string) (*models.Mechanic, error)
}

// LedgerSyncStore persists the outbox for rentee mirror writes.
type LedgerSyncStore interface {
	InsertSync(ctx context.Context, sync *models.LedgerSync) error
	MarkSyncDone(ctx context.Context, id string) error
	RecordSyncFailure(ctx context.Context, id string, cause error) error
	DeleteSync(ctx context.Context, id string) error
	// CloseSyncsByBookingID marks every pending sync for bookingID done.
	CloseSyncsByBookingID(ctx context.Context, bookingID string) error
	// RenameSyncBookingID moves pending syncs from oldID to newID.
	RenameSyncBookingID(ctx context.Context, oldID, newID string) error
	ListPendingSyncs(ctx context.Context, olderThan time.Time) ([]models.LedgerSync, error)
}

// DirectoryStore is everything the services need from persistence.
type DirectoryStore interface {
	AccountStore
	MechanicStore
	LedgerSyncStore
}
