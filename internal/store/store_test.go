package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrental/backend/internal/models"
)

// runDirectoryStoreTests exercises a DirectoryStore implementation. newStore
// must return an empty store.
func runDirectoryStoreTests(t *testing.T, newStore func(t *testing.T) DirectoryStore) {
	ctx := context.Background()

	seed := func(t *testing.T, s DirectoryStore) {
		t.Helper()
		require.NoError(t, s.InsertAccount(ctx, &models.Account{UserID: "owner1", Email: "o1@example.com", Role: models.RoleRenter, Pincode: "560001", Name: "Asha", Phone: "900"}))
		require.NoError(t, s.InsertAccount(ctx, &models.Account{UserID: "owner2", Email: "o2@example.com", Role: models.RoleRenter, Pincode: "560002"}))
		require.NoError(t, s.InsertAccount(ctx, &models.Account{UserID: "rentee1", Email: "r1@example.com", Role: models.RoleRentee, Pincode: "560001", Phone: "800"}))
	}
	pending := func(renteeID string) models.RequestEntry {
		return models.RequestEntry{RenteeID: renteeID, Status: models.StatusPending, RequestDate: time.Now().UTC().Truncate(time.Millisecond)}
	}

	t.Run("InsertAccount rejects duplicate userId and email", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		err := s.InsertAccount(ctx, &models.Account{UserID: "owner1", Email: "new@example.com", Role: models.RoleRenter})
		assert.ErrorIs(t, err, ErrDuplicate)
		err = s.InsertAccount(ctx, &models.Account{UserID: "fresh", Email: "o1@example.com", Role: models.RoleRenter})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("FindAccountByRole checks role", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		_, err := s.FindAccountByRole(ctx, "rentee1", models.RoleRenter)
		assert.ErrorIs(t, err, ErrNotFound)
		a, err := s.FindAccountByRole(ctx, "rentee1", models.RoleRentee)
		require.NoError(t, err)
		assert.Equal(t, "800", a.Phone)
	})

	t.Run("FindRentersByPincode matches exactly", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		renters, err := s.FindRentersByPincode(ctx, "560001")
		require.NoError(t, err)
		require.Len(t, renters, 1)
		assert.Equal(t, "owner1", renters[0].UserID)

		renters, err = s.FindRentersByPincode(ctx, "56000")
		require.NoError(t, err)
		assert.Empty(t, renters)
	})

	t.Run("PushRequest requires a renter", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		assert.ErrorIs(t, s.PushRequest(ctx, "rentee1", pending("owner1")), ErrNotFound)
		assert.ErrorIs(t, s.PushRequest(ctx, "ghost", pending("rentee1")), ErrNotFound)
		require.NoError(t, s.PushRequest(ctx, "owner1", pending("rentee1")))
	})

	t.Run("FindRequestStatus prefers earlier statuses", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		rejected := pending("rentee1")
		rejected.Status = models.StatusRejected
		require.NoError(t, s.PushRequest(ctx, "owner1", rejected))
		require.NoError(t, s.PushRequest(ctx, "owner1", pending("rentee1")))

		status, ok, err := s.FindRequestStatus(ctx, "owner1", "rentee1", models.StatusPending, models.StatusRejected)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, models.StatusPending, status)

		_, ok, err = s.FindRequestStatus(ctx, "owner2", "rentee1", models.StatusPending)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TransitionRequest only matches the from status", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		require.NoError(t, s.PushRequest(ctx, "owner1", pending("rentee1")))

		ok, err := s.TransitionRequest(ctx, "owner1", "rentee1", models.StatusPending,
			RequestUpdate{Status: models.StatusAccepted, BookingID: "BOOK1", RenteePhone: "800"})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.TransitionRequest(ctx, "owner1", "rentee1", models.StatusPending,
			RequestUpdate{Status: models.StatusRejected})
		require.NoError(t, err)
		assert.False(t, ok, "second transition from Pending must not match")

		owner, err := s.FindAccount(ctx, "owner1")
		require.NoError(t, err)
		require.Len(t, owner.Requests, 1)
		assert.Equal(t, models.StatusAccepted, owner.Requests[0].Status)
		assert.Equal(t, "BOOK1", owner.Requests[0].BookingID)
		assert.Equal(t, "800", owner.Requests[0].RenteePhone)
	})

	t.Run("PushMirror is idempotent per booking", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		entry := models.RequestEntry{Status: models.StatusAccepted, BookingID: "BOOK7", OwnerID: "owner1", UpdatedBy: "System", RequestDate: time.Now().UTC()}
		require.NoError(t, s.PushMirror(ctx, "rentee1", entry))
		require.NoError(t, s.PushMirror(ctx, "rentee1", entry))
		rentee, err := s.FindAccount(ctx, "rentee1")
		require.NoError(t, err)
		assert.Len(t, rentee.Requests, 1)

		assert.ErrorIs(t, s.PushMirror(ctx, "ghost", entry), ErrNotFound)
	})

	t.Run("booking id operations span all accounts", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		require.NoError(t, s.PushRequest(ctx, "owner1", pending("rentee1")))
		_, err := s.TransitionRequest(ctx, "owner1", "rentee1", models.StatusPending, RequestUpdate{Status: models.StatusAccepted, BookingID: "BOOK9"})
		require.NoError(t, err)
		require.NoError(t, s.PushMirror(ctx, "rentee1", models.RequestEntry{Status: models.StatusAccepted, BookingID: "BOOK9", OwnerID: "owner1"}))

		owner, err := s.FindAccountByBookingID(ctx, "BOOK9", models.RoleRenter)
		require.NoError(t, err)
		assert.Equal(t, "owner1", owner.UserID)

		n, err := s.RenameBookingID(ctx, "BOOK9", "CUSTOM-9")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = s.FindAccountByBookingID(ctx, "BOOK9", "")
		assert.ErrorIs(t, err, ErrNotFound)

		n, err = s.PullRequestsByBookingID(ctx, "CUSTOM-9")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = s.PullRequestsByBookingID(ctx, "CUSTOM-9")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("FindRentersWithBookings needs an accepted booking", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		require.NoError(t, s.PushRequest(ctx, "owner1", pending("rentee1")))
		renters, err := s.FindRentersWithBookings(ctx, "560001")
		require.NoError(t, err)
		assert.Empty(t, renters)

		_, err = s.TransitionRequest(ctx, "owner1", "rentee1", models.StatusPending, RequestUpdate{Status: models.StatusAccepted, BookingID: "BOOK2"})
		require.NoError(t, err)
		renters, err = s.FindRentersWithBookings(ctx, "560001")
		require.NoError(t, err)
		require.Len(t, renters, 1)
		assert.Equal(t, "owner1", renters[0].UserID)
	})

	t.Run("PullRequestsByRentee clears every entry of that rentee", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		require.NoError(t, s.PushRequest(ctx, "owner1", pending("rentee1")))
		require.NoError(t, s.PushRequest(ctx, "owner1", pending("rentee1")))
		require.NoError(t, s.PushRequest(ctx, "owner1", pending("other")))

		renters, err := s.FindRentersWithRequestFrom(ctx, "rentee1")
		require.NoError(t, err)
		assert.Len(t, renters, 1)

		require.NoError(t, s.PullRequestsByRentee(ctx, "owner1", "rentee1"))
		owner, err := s.FindAccount(ctx, "owner1")
		require.NoError(t, err)
		require.Len(t, owner.Requests, 1)
		assert.Equal(t, "other", owner.Requests[0].RenteeID)

		assert.ErrorIs(t, s.PullRequestsByRentee(ctx, "ghost", "rentee1"), ErrNotFound)
	})

	t.Run("SetAvailability overwrites the window", func(t *testing.T) {
		s := newStore(t)
		seed(t, s)
		require.NoError(t, s.SetAvailability(ctx, "owner1", models.Availability{FromDate: "2024-01-01", ToDate: "2024-01-02", FromTime: "09:00", ToTime: "18:00"}))
		require.NoError(t, s.SetAvailability(ctx, "owner1", models.Availability{FromDate: "2024-02-01", ToDate: "2024-02-02", FromTime: "10:00", ToTime: "12:00"}))
		owner, err := s.FindAccount(ctx, "owner1")
		require.NoError(t, err)
		require.NotNil(t, owner.Availability)
		assert.Equal(t, "2024-02-01", owner.Availability.FromDate)

		assert.ErrorIs(t, s.SetAvailability(ctx, "ghost", models.Availability{}), ErrNotFound)
	})

	t.Run("mechanics", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.InsertMechanic(ctx, &models.Mechanic{UserID: "mech1", PasswordHash: "h", Pincode: "560001"}))
		assert.ErrorIs(t, s.InsertMechanic(ctx, &models.Mechanic{UserID: "mech1"}), ErrDuplicate)
		require.NoError(t, s.UpsertMechanic(ctx, &models.Mechanic{UserID: "mech1", PasswordHash: "h2", Pincode: "560009"}))
		m, err := s.FindMechanic(ctx, "mech1")
		require.NoError(t, err)
		assert.Equal(t, "560009", m.Pincode)
		_, err = s.FindMechanic(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ledger syncs", func(t *testing.T) {
		s := newStore(t)
		old := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
		require.NoError(t, s.InsertSync(ctx, &models.LedgerSync{ID: "s1", BookingID: "B1", State: models.LedgerSyncPending, CreatedAt: old}))
		require.NoError(t, s.InsertSync(ctx, &models.LedgerSync{ID: "s2", BookingID: "B2", State: models.LedgerSyncPending, CreatedAt: time.Now().UTC()}))

		list, err := s.ListPendingSyncs(ctx, time.Now().UTC().Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "s1", list[0].ID)

		require.NoError(t, s.RecordSyncFailure(ctx, "s1", assert.AnError))
		list, err = s.ListPendingSyncs(ctx, time.Now().UTC().Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 1, list[0].Attempts)
		assert.Equal(t, assert.AnError.Error(), list[0].LastError)

		require.NoError(t, s.MarkSyncDone(ctx, "s1"))
		require.NoError(t, s.DeleteSync(ctx, "s2"))
		list, err = s.ListPendingSyncs(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("ledger syncs follow booking renames and deletes", func(t *testing.T) {
		s := newStore(t)
		old := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
		require.NoError(t, s.InsertSync(ctx, &models.LedgerSync{ID: "s1", BookingID: "B1", State: models.LedgerSyncPending, CreatedAt: old}))
		require.NoError(t, s.InsertSync(ctx, &models.LedgerSync{ID: "s2", BookingID: "B2", State: models.LedgerSyncPending, CreatedAt: old}))

		require.NoError(t, s.RenameSyncBookingID(ctx, "B1", "CR-1"))
		require.NoError(t, s.CloseSyncsByBookingID(ctx, "B2"))

		list, err := s.ListPendingSyncs(ctx, time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "s1", list[0].ID)
		assert.Equal(t, "CR-1", list[0].BookingID)

		require.NoError(t, s.CloseSyncsByBookingID(ctx, "unknown"))
	})
}

func TestMemoryStore(t *testing.T) {
	runDirectoryStoreTests(t, func(t *testing.T) DirectoryStore { return NewMemoryStore() })
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertAccount(ctx, &models.Account{UserID: "owner1", Email: "o@example.com", Role: models.RoleRenter}))
	a, err := s.FindAccount(ctx, "owner1")
	require.NoError(t, err)
	a.Requests = append(a.Requests, models.RequestEntry{RenteeID: "x"})

	again, err := s.FindAccount(ctx, "owner1")
	require.NoError(t, err)
	assert.Empty(t, again.Requests)
}
