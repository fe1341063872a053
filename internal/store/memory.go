package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"carrental/backend/internal/models"
)

// memoryStore keeps documents in maps guarded by one mutex, which makes every
// operation atomic just as a single-document MongoDB update is.
type memoryStore struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	order     []string
	mechanics map[string]*models.Mechanic
	syncs     map[string]*models.LedgerSync
}

// NewMemoryStore returns an empty in-process DirectoryStore.
func NewMemoryStore() DirectoryStore {
	return &memoryStore{
		accounts:  make(map[string]*models.Account),
		mechanics: make(map[string]*models.Mechanic),
		syncs:     make(map[string]*models.LedgerSync),
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.Availability != nil {
		av := *a.Availability
		c.Availability = &av
	}
	c.Requests = append([]models.RequestEntry{}, a.Requests...)
	return &c
}

func (s *memoryStore) InsertAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.UserID]; ok {
		return ErrDuplicate
	}
	for _, a := range s.accounts {
		if a.Email == account.Email {
			return ErrDuplicate
		}
	}
	if account.Requests == nil {
		account.Requests = []models.RequestEntry{}
	}
	s.accounts[account.UserID] = cloneAccount(account)
	s.order = append(s.order, account.UserID)
	return nil
}

func (s *memoryStore) FindAccount(_ context.Context, userID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *memoryStore) FindAccountByRole(_ context.Context, userID string, role models.Role) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok || a.Role != role {
		return nil, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *memoryStore) FindAccountByBookingID(_ context.Context, bookingID string, role models.Role) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		a := s.accounts[id]
		if role != "" && a.Role != role {
			continue
		}
		if _, ok := a.FindRequestByBookingID(bookingID); ok {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

// filter returns clones of the accounts matching keep, in insertion order.
func (s *memoryStore) filter(keep func(*models.Account) bool) []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Account{}
	for _, id := range s.order {
		if a := s.accounts[id]; keep(a) {
			out = append(out, *cloneAccount(a))
		}
	}
	return out
}

func (s *memoryStore) FindRentersByPincode(_ context.Context, pincode string) ([]models.Account, error) {
	return s.filter(func(a *models.Account) bool {
		return a.Role == models.RoleRenter && a.Pincode == pincode
	}), nil
}

func (s *memoryStore) FindRentersWithBookings(_ context.Context, pincode string) ([]models.Account, error) {
	return s.filter(func(a *models.Account) bool {
		if a.Role != models.RoleRenter || a.Pincode != pincode {
			return false
		}
		for _, e := range a.Requests {
			if e.Status == models.StatusAccepted && e.BookingID != "" {
				return true
			}
		}
		return false
	}), nil
}

func (s *memoryStore) FindRentersWithRequestFrom(_ context.Context, renteeID string) ([]models.Account, error) {
	return s.filter(func(a *models.Account) bool {
		if a.Role != models.RoleRenter {
			return false
		}
		for _, e := range a.Requests {
			if e.RenteeID == renteeID {
				return true
			}
		}
		return false
	}), nil
}

func (s *memoryStore) SetAvailability(_ context.Context, userID string, availability models.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return ErrNotFound
	}
	a.Availability = &availability
	return nil
}

func (s *memoryStore) FindRequestStatus(_ context.Context, ownerID, renteeID string, statuses ...models.RequestStatus) (models.RequestStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[ownerID]
	if !ok || a.Role != models.RoleRenter {
		return "", false, nil
	}
	status, found := firstStatus(a.Requests, renteeID, statuses)
	return status, found, nil
}

func (s *memoryStore) PushRequest(_ context.Context, ownerID string, entry models.RequestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[ownerID]
	if !ok || a.Role != models.RoleRenter {
		return ErrNotFound
	}
	a.Requests = append(a.Requests, entry)
	return nil
}

func (s *memoryStore) PushMirror(_ context.Context, renteeID string, entry models.RequestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[renteeID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := a.FindRequestByBookingID(entry.BookingID); exists {
		return nil
	}
	a.Requests = append(a.Requests, entry)
	return nil
}

func (s *memoryStore) TransitionRequest(_ context.Context, ownerID, renteeID string, from models.RequestStatus, update RequestUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[ownerID]
	if !ok || a.Role != models.RoleRenter {
		return false, nil
	}
	for i := range a.Requests {
		e := &a.Requests[i]
		if e.RenteeID != renteeID || e.Status != from {
			continue
		}
		e.Status = update.Status
		if update.BookingID != "" {
			e.BookingID = update.BookingID
		}
		if update.RenteePhone != "" {
			e.RenteePhone = update.RenteePhone
		}
		return true, nil
	}
	return false, nil
}

func (s *memoryStore) PullRequestsByRentee(_ context.Context, ownerID, renteeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[ownerID]
	if !ok || a.Role != models.RoleRenter {
		return ErrNotFound
	}
	kept := a.Requests[:0]
	for _, e := range a.Requests {
		if e.RenteeID != renteeID {
			kept = append(kept, e)
		}
	}
	a.Requests = kept
	return nil
}

func (s *memoryStore) PullRequestsByBookingID(_ context.Context, bookingID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for _, a := range s.accounts {
		kept := a.Requests[:0]
		for _, e := range a.Requests {
			if e.BookingID != bookingID {
				kept = append(kept, e)
			}
		}
		if len(kept) != len(a.Requests) {
			modified++
		}
		a.Requests = kept
	}
	return modified, nil
}

func (s *memoryStore) RenameBookingID(_ context.Context, oldID, newID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for _, a := range s.accounts {
		changed := false
		for i := range a.Requests {
			if a.Requests[i].BookingID == oldID {
				a.Requests[i].BookingID = newID
				changed = true
			}
		}
		if changed && oldID != newID {
			modified++
		}
	}
	return modified, nil
}

func (s *memoryStore) InsertMechanic(_ context.Context, mechanic *models.Mechanic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mechanics[mechanic.UserID]; ok {
		return ErrDuplicate
	}
	m := *mechanic
	s.mechanics[m.UserID] = &m
	return nil
}

func (s *memoryStore) UpsertMechanic(_ context.Context, mechanic *models.Mechanic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *mechanic
	s.mechanics[m.UserID] = &m
	return nil
}

func (s *memoryStore) FindMechanic(_ context.Context, userID string) (*models.Mechanic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mechanics[userID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *m
	return &c, nil
}

func (s *memoryStore) InsertSync(_ context.Context, sync *models.LedgerSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.syncs[sync.ID]; ok {
		return ErrDuplicate
	}
	c := *sync
	s.syncs[c.ID] = &c
	return nil
}

func (s *memoryStore) MarkSyncDone(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.syncs[id]; ok {
		rec.State = models.LedgerSyncDone
		rec.LastError = ""
		rec.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *memoryStore) RecordSyncFailure(_ context.Context, id string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.syncs[id]; ok {
		rec.Attempts++
		if cause != nil {
			rec.LastError = cause.Error()
		}
		rec.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *memoryStore) DeleteSync(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.syncs, id)
	return nil
}

func (s *memoryStore) CloseSyncsByBookingID(_ context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.syncs {
		if rec.BookingID == bookingID && rec.State == models.LedgerSyncPending {
			rec.State = models.LedgerSyncDone
			rec.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *memoryStore) RenameSyncBookingID(_ context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.syncs {
		if rec.BookingID == oldID && rec.State == models.LedgerSyncPending {
			rec.BookingID = newID
			rec.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (s *memoryStore) ListPendingSyncs(_ context.Context, olderThan time.Time) ([]models.LedgerSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LedgerSync{}
	for _, rec := range s.syncs {
		if rec.State == models.LedgerSyncPending && rec.CreatedAt.Before(olderThan) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
