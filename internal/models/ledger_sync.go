package models

import "time"

// LedgerSyncState tracks whether the rentee mirror of an accepted request was written.
type LedgerSyncState string

const (
	LedgerSyncPending LedgerSyncState = "pending"
	LedgerSyncDone    LedgerSyncState = "done"
)

// LedgerSync is the outbox record for the second write of an acceptance:
// pushing the booking onto the rentee's own ledger. It is inserted before
// the owner ledger is touched and marked done once the mirror exists, so a
// crash or store failure in between leaves a pending record to replay.
type LedgerSync struct {
	ID        string          `bson:"_id" json:"id"`
	BookingID string          `bson:"bookingId" json:"bookingId"`
	OwnerID   string          `bson:"ownerId" json:"ownerId"`
	RenteeID  string          `bson:"renteeId" json:"renteeId"`
	State     LedgerSyncState `bson:"state" json:"state"`
	Attempts  int             `bson:"attempts" json:"attempts"`
	LastError string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// MirrorEntry is the minimal entry pushed onto the rentee's ledger.
func (s *LedgerSync) MirrorEntry() RequestEntry {
	return RequestEntry{
		RequestDate: s.CreatedAt,
		Status:      StatusAccepted,
		BookingID:   s.BookingID,
		OwnerID:     s.OwnerID,
		UpdatedBy:   "System",
	}
}
