package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"carrental/backend/internal/db"
	"carrental/backend/internal/models"
)

const (
	UsersCollection      = "users"
	MechanicsCollection  = "Mechanic"
	LedgerSyncCollection = "ledger_sync"
)

type mongoStore struct {
	db *mongo.Database
}

// NewMongoStore returns a DirectoryStore backed by db.
func NewMongoStore(database *mongo.Database) DirectoryStore {
	return &mongoStore{db: database}
}

// EnsureIndexes creates the indexes the store relies on. It is safe to call
// on every start.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "pincode", Value: 1}}},
		{Keys: bson.D{{Key: "requests.bookingId", Value: 1}}},
		{Keys: bson.D{{Key: "requests.renteeId", Value: 1}}},
	}
	if _, err := database.Collection(UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}
	mechanics := mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := database.Collection(MechanicsCollection).Indexes().CreateOne(ctx, mechanics); err != nil {
		return fmt.Errorf("failed to create mechanic index: %w", err)
	}
	syncs := mongo.IndexModel{Keys: bson.D{{Key: "state", Value: 1}, {Key: "createdAt", Value: 1}}}
	if _, err := database.Collection(LedgerSyncCollection).Indexes().CreateOne(ctx, syncs); err != nil {
		return fmt.Errorf("failed to create ledger_sync index: %w", err)
	}
	return nil
}

func (s *mongoStore) users() *mongo.Collection     { return s.db.Collection(UsersCollection) }
func (s *mongoStore) mechanics() *mongo.Collection { return s.db.Collection(MechanicsCollection) }
func (s *mongoStore) syncs() *mongo.Collection     { return s.db.Collection(LedgerSyncCollection) }

func (s *mongoStore) InsertAccount(ctx context.Context, account *models.Account) error {
	if account.Requests == nil {
		account.Requests = []models.RequestEntry{}
	}
	if _, err := s.users().InsertOne(ctx, account); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting account %s: %w", account.UserID, err)
	}
	return nil
}

func (s *mongoStore) findOneAccount(ctx context.Context, filter bson.M) (*models.Account, error) {
	var account models.Account
	err := s.users().FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding account: %w", err)
	}
	return &account, nil
}

func (s *mongoStore) findAccounts(ctx context.Context, filter bson.M) ([]models.Account, error) {
	cursor, err := s.users().Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error querying accounts: %w", err)
	}
	defer cursor.Close(ctx)

	accounts := []models.Account{}
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("error decoding accounts: %w", err)
	}
	return accounts, nil
}

func (s *mongoStore) FindAccount(ctx context.Context, userID string) (*models.Account, error) {
	return s.findOneAccount(ctx, bson.M{"userId": userID})
}

func (s *mongoStore) FindAccountByRole(ctx context.Context, userID string, role models.Role) (*models.Account, error) {
	return s.findOneAccount(ctx, bson.M{"userId": userID, "role": role})
}

func (s *mongoStore) FindAccountByBookingID(ctx context.Context, bookingID string, role models.Role) (*models.Account, error) {
	filter := bson.M{"requests.bookingId": bookingID}
	if role != "" {
		filter["role"] = role
	}
	return s.findOneAccount(ctx, filter)
}

func (s *mongoStore) FindRentersByPincode(ctx context.Context, pincode string) ([]models.Account, error) {
	return s.findAccounts(ctx, bson.M{"role": models.RoleRenter, "pincode": pincode})
}

func (s *mongoStore) FindRentersWithBookings(ctx context.Context, pincode string) ([]models.Account, error) {
	return s.findAccounts(ctx, bson.M{
		"role":    models.RoleRenter,
		"pincode": pincode,
		"requests": bson.M{"$elemMatch": bson.M{
			"status":    models.StatusAccepted,
			"bookingId": bson.M{"$exists": true, "$ne": ""},
		}},
	})
}

func (s *mongoStore) FindRentersWithRequestFrom(ctx context.Context, renteeID string) ([]models.Account, error) {
	return s.findAccounts(ctx, bson.M{"role": models.RoleRenter, "requests.renteeId": renteeID})
}

func (s *mongoStore) SetAvailability(ctx context.Context, userID string, availability models.Availability) error {
	result, err := s.users().UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"availability": availability}},
	)
	if err != nil {
		return fmt.Errorf("error updating availability for %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) FindRequestStatus(ctx context.Context, ownerID, renteeID string, statuses ...models.RequestStatus) (models.RequestStatus, bool, error) {
	var owner models.Account
	opts := options.FindOne().SetProjection(bson.M{"requests": 1})
	err := s.users().FindOne(ctx, bson.M{"userId": ownerID, "role": models.RoleRenter}, opts).Decode(&owner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("error reading requests of %s: %w", ownerID, err)
	}
	status, ok := firstStatus(owner.Requests, renteeID, statuses)
	return status, ok, nil
}

func (s *mongoStore) PushRequest(ctx context.Context, ownerID string, entry models.RequestEntry) error {
	result, err := s.users().UpdateOne(ctx,
		bson.M{"userId": ownerID, "role": models.RoleRenter},
		bson.M{"$push": bson.M{"requests": entry}},
	)
	if err != nil {
		return fmt.Errorf("error adding request to %s: %w", ownerID, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) PushMirror(ctx context.Context, renteeID string, entry models.RequestEntry) error {
	var matched int64
	err := db.Try(func() error {
		result, err := s.users().UpdateOne(ctx,
			bson.M{"userId": renteeID, "requests.bookingId": bson.M{"$ne": entry.BookingID}},
			bson.M{"$push": bson.M{"requests": entry}},
		)
		if err != nil {
			return err
		}
		matched = result.MatchedCount
		return nil
	})
	if err != nil {
		return fmt.Errorf("error mirroring booking %s to %s: %w", entry.BookingID, renteeID, err)
	}
	if matched > 0 {
		return nil
	}
	// Either the rentee is gone or the mirror already exists.
	count, err := s.users().CountDocuments(ctx, bson.M{"userId": renteeID})
	if err != nil {
		return fmt.Errorf("error checking rentee %s: %w", renteeID, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) TransitionRequest(ctx context.Context, ownerID, renteeID string, from models.RequestStatus, update RequestUpdate) (bool, error) {
	set := bson.M{"requests.$.status": update.Status}
	if update.BookingID != "" {
		set["requests.$.bookingId"] = update.BookingID
	}
	if update.RenteePhone != "" {
		set["requests.$.renteePhone"] = update.RenteePhone
	}
	filter := bson.M{
		"userId":   ownerID,
		"role":     models.RoleRenter,
		"requests": bson.M{"$elemMatch": bson.M{"renteeId": renteeID, "status": from}},
	}
	result, err := s.users().UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("error updating request %s -> %s: %w", renteeID, ownerID, err)
	}
	return result.MatchedCount > 0, nil
}

func (s *mongoStore) PullRequestsByRentee(ctx context.Context, ownerID, renteeID string) error {
	result, err := s.users().UpdateOne(ctx,
		bson.M{"userId": ownerID, "role": models.RoleRenter},
		bson.M{"$pull": bson.M{"requests": bson.M{"renteeId": renteeID}}},
	)
	if err != nil {
		return fmt.Errorf("error clearing requests of %s at %s: %w", renteeID, ownerID, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) PullRequestsByBookingID(ctx context.Context, bookingID string) (int64, error) {
	result, err := s.users().UpdateMany(ctx,
		bson.M{"requests.bookingId": bookingID},
		bson.M{"$pull": bson.M{"requests": bson.M{"bookingId": bookingID}}},
	)
	if err != nil {
		return 0, fmt.Errorf("error deleting booking %s: %w", bookingID, err)
	}
	return result.ModifiedCount, nil
}

func (s *mongoStore) RenameBookingID(ctx context.Context, oldID, newID string) (int64, error) {
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"entry.bookingId": oldID}},
	})
	result, err := s.users().UpdateMany(ctx,
		bson.M{"requests.bookingId": oldID},
		bson.M{"$set": bson.M{"requests.$[entry].bookingId": newID}},
		opts,
	)
	if err != nil {
		return 0, fmt.Errorf("error renaming booking %s: %w", oldID, err)
	}
	return result.ModifiedCount, nil
}

func (s *mongoStore) InsertMechanic(ctx context.Context, mechanic *models.Mechanic) error {
	if _, err := s.mechanics().InsertOne(ctx, mechanic); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting mechanic %s: %w", mechanic.UserID, err)
	}
	return nil
}

func (s *mongoStore) UpsertMechanic(ctx context.Context, mechanic *models.Mechanic) error {
	_, err := s.mechanics().ReplaceOne(ctx,
		bson.M{"userId": mechanic.UserID},
		mechanic,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error upserting mechanic %s: %w", mechanic.UserID, err)
	}
	return nil
}

func (s *mongoStore) FindMechanic(ctx context.Context, userID string) (*models.Mechanic, error) {
	var mechanic models.Mechanic
	err := s.mechanics().FindOne(ctx, bson.M{"userId": userID}).Decode(&mechanic)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding mechanic %s: %w", userID, err)
	}
	return &mechanic, nil
}

func (s *mongoStore) InsertSync(ctx context.Context, sync *models.LedgerSync) error {
	if _, err := s.syncs().InsertOne(ctx, sync); err != nil {
		return fmt.Errorf("error recording ledger sync for %s: %w", sync.BookingID, err)
	}
	return nil
}

func (s *mongoStore) MarkSyncDone(ctx context.Context, id string) error {
	return db.Try(func() error {
		_, err := s.syncs().UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M{"state": models.LedgerSyncDone, "updatedAt": time.Now().UTC(), "lastError": ""}},
		)
		return err
	})
}

func (s *mongoStore) RecordSyncFailure(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.syncs().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"lastError": msg, "updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("error recording sync failure for %s: %w", id, err)
	}
	return nil
}

func (s *mongoStore) DeleteSync(ctx context.Context, id string) error {
	if _, err := s.syncs().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("error deleting ledger sync %s: %w", id, err)
	}
	return nil
}

func (s *mongoStore) CloseSyncsByBookingID(ctx context.Context, bookingID string) error {
	_, err := s.syncs().UpdateMany(ctx,
		bson.M{"bookingId": bookingID, "state": models.LedgerSyncPending},
		bson.M{"$set": bson.M{"state": models.LedgerSyncDone, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("error closing ledger syncs for %s: %w", bookingID, err)
	}
	return nil
}

func (s *mongoStore) RenameSyncBookingID(ctx context.Context, oldID, newID string) error {
	_, err := s.syncs().UpdateMany(ctx,
		bson.M{"bookingId": oldID, "state": models.LedgerSyncPending},
		bson.M{"$set": bson.M{"bookingId": newID, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("error renaming ledger syncs for %s: %w", oldID, err)
	}
	return nil
}

func (s *mongoStore) ListPendingSyncs(ctx context.Context, olderThan time.Time) ([]models.LedgerSync, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.syncs().Find(ctx, bson.M{"state": models.LedgerSyncPending, "createdAt": bson.M{"$lt": olderThan}}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing pending ledger syncs: %w", err)
	}
	defer cursor.Close(ctx)

	syncs := []models.LedgerSync{}
	if err := cursor.All(ctx, &syncs); err != nil {
		return nil, fmt.Errorf("error decoding ledger syncs: %w", err)
	}
	return syncs, nil
}

// firstStatus scans entries for renteeID and returns the first of statuses
// present, honouring the order of statuses.
func firstStatus(entries []models.RequestEntry, renteeID string, statuses []models.RequestStatus) (models.RequestStatus, bool) {
	for _, want := range statuses {
		for _, e := range entries {
			if e.RenteeID == renteeID && e.Status == want {
				return want, true
			}
		}
	}
	return "", false
}
