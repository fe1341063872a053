// Package testutil holds helpers for tests that need a live MongoDB.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"carrental/backend/internal/db"
)

var dbCounter atomic.Int64

// loadTestEnv loads .env from the project root, then the working directory.
func loadTestEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		_ = godotenv.Load()
	}
}

// MongoTestURI returns MONGO_URI_TEST, or skips t when it is not set.
func MongoTestURI(t *testing.T) string {
	t.Helper()
	loadTestEnv()
	uri := os.Getenv("MONGO_URI_TEST")
	if uri == "" {
		t.Skip("MONGO_URI_TEST not set")
	}
	return uri
}

// MongoClient connects to the test server and disconnects on cleanup.
func MongoClient(t *testing.T) *mongo.Client {
	t.Helper()
	client, _, err := db.ConnectDB(MongoTestURI(t), "car_rental_test", zap.NewNop())
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = db.DisconnectDB(client, zap.NewNop()) })
	return client
}

// FreshDatabase returns a uniquely named database that is dropped on cleanup.
func FreshDatabase(t *testing.T, client *mongo.Client) *mongo.Database {
	t.Helper()
	name := fmt.Sprintf("car_rental_test_%d_%d", time.Now().UnixNano(), dbCounter.Add(1))
	database := client.Database(name)
	t.Cleanup(func() { _ = database.Drop(context.Background()) })
	return database
}
