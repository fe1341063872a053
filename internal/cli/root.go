package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carrental/backend/internal/db"
	"carrental/backend/internal/logging"
	"carrental/backend/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	MongoURI string
	DBName   string
	Format   string // "json" | "text"
	Verbose  bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// StoreOpener connects to the Directory Store. The returned func releases it.
type StoreOpener func(ctx context.Context, opts *RootOptions, logger *zap.Logger) (store.DirectoryStore, func(), error)

// MongoStoreOpener opens the Mongo-backed store named by opts.
func MongoStoreOpener(ctx context.Context, opts *RootOptions, logger *zap.Logger) (store.DirectoryStore, func(), error) {
	if opts.MongoURI == "" {
		return nil, nil, fmt.Errorf("no MongoDB URI: pass --mongo-uri or set MONGO_URI")
	}
	client, database, err := db.ConnectDB(opts.MongoURI, opts.DBName, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = db.DisconnectDB(client, logger) }
	if err := store.EnsureIndexes(ctx, database); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store.NewMongoStore(database), closeFn, nil
}

// app is the state shared by subcommands.
type app struct {
	opts   *RootOptions
	open   StoreOpener
	logger *zap.Logger
}

func (a *app) withStore(ctx context.Context, fn func(st store.DirectoryStore) error) error {
	st, closeFn, err := a.open(ctx, a.opts, a.logger)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(st)
}

// NewRootCommand creates the carrentctl root command.
func NewRootCommand(open StoreOpener) *cobra.Command {
	_ = godotenv.Load()

	a := &app{opts: &RootOptions{}, open: open, logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "carrentctl",
		Short: "Administer the car rental backend",
		Long:  "Operator commands for the car rental backend: mechanic roster, bill previews and ledger repair.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(a.opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", a.opts.Format, ValidFormats)
			}
			if a.opts.Verbose {
				logger, err := logging.New("debug", "console")
				if err != nil {
					return err
				}
				a.logger = logger
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&a.opts.MongoURI, "mongo-uri", os.Getenv("MONGO_URI"), "MongoDB connection string")
	cmd.PersistentFlags().StringVar(&a.opts.DBName, "db", envOr("MONGO_DB_NAME", "car_rental"), "database name")
	cmd.PersistentFlags().StringVar(&a.opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&a.opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newMechanicCommand(a))
	cmd.AddCommand(newBillCommand(a))
	cmd.AddCommand(newLedgerCommand(a))

	return cmd
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
