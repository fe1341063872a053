package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"carrental/backend/internal/api"
	"carrental/backend/internal/api/middleware"
	"carrental/backend/internal/cache"
	"carrental/backend/internal/config"
	"carrental/backend/internal/db"
	"carrental/backend/internal/email"
	"carrental/backend/internal/logging"
	"carrental/backend/internal/scheduler"
	"carrental/backend/internal/services"
	"carrental/backend/internal/storage"
	"carrental/backend/internal/store"
	"carrental/backend/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

const shutdownTimeout = 15 * time.Second

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

// openStore returns the Directory Store for cfg.StoreBackend. The database
// is nil for the memory backend.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.DirectoryStore, *mongo.Database, func(), error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), nil, func() {}, nil
	}

	client, database, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if err := db.DisconnectDB(client, logger); err != nil {
			logger.Error("error disconnecting from MongoDB", zap.Error(err))
		}
	}
	if err := store.EnsureIndexes(ctx, database); err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store.NewMongoStore(database), database, closeFn, nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	st, database, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient, logger); err != nil {
			logger.Error("error disconnecting from Redis", zap.Error(err))
		}
	}()

	var billArchive services.IBillArchive
	if cfg.BillArchiveEnabled() {
		archive, err := storage.NewS3BillArchive(ctx, cfg)
		if err != nil {
			return err
		}
		billArchive = archive
		logger.Info("bill archive enabled", zap.String("bucket", cfg.AwsS3Bucket))
	}

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	emailSender := email.NewSenderFromConfig(cfg, redisClient, logger)
	emailTemplateService := services.NewEmailTemplateService(database)
	notifier := tasks.NewEmailDispatcher(taskClient, cfg.CurrencySymbol, logger.Named("dispatcher"))

	bookingService := services.NewBookingService(st, notifier, cfg.LedgerSyncMaxAge, logger)
	svc := api.Services{
		Accounts:  services.NewAccountService(st, logger),
		Bookings:  bookingService,
		Billing:   services.NewBillingService(st, notifier, emailTemplateService, billArchive, cfg.CurrencySymbol, logger.Named("billing")),
		Directory: services.NewDirectoryService(st),
	}

	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, emailTemplateService, logger.Named("tasks"))

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)
	fatalChan := make(chan error, 3)

	serve := func(name string, srv *http.Server) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("listening", zap.String("server", name), zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatalChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(email.NewMailbox(redisClient), bookingService, shutdownChan, logger),
	}
	serve("service-api", serviceSrv)

	var (
		mainApiSrv  *http.Server
		rateLimiter *middleware.RateLimiterMiddleware
		taskSrv     *asynq.Server
		sched       *scheduler.Scheduler
	)

	logger.Info("starting", zap.String("mode", cfg.RunMode), zap.String("store", cfg.StoreBackend))

	apiMode := func() error {
		var router http.Handler
		router, rateLimiter = api.SetupRouter(cfg, svc, logger.Named("api"))
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		serve("api", mainApiSrv)
		return nil
	}

	bgMode := func() error {
		var mux *asynq.ServeMux
		taskSrv, mux = tasks.SetupServer(redisClient, taskProcessor, logger.Named("tasks"))
		if err := taskSrv.Start(mux); err != nil {
			return fmt.Errorf("task server: %w", err)
		}
		var err error
		sched, err = scheduler.New(cfg.LedgerSyncSchedule, bookingService, logger.Named("scheduler"))
		if err != nil {
			return err
		}
		sched.Start()
		return nil
	}

	switch cfg.RunMode {
	case "api":
		err = apiMode()
	case "bg":
		err = bgMode()
	case "all":
		if err = apiMode(); err == nil {
			err = bgMode()
		}
	default:
		err = fmt.Errorf("invalid run mode: %s", cfg.RunMode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if err == nil {
		select {
		case sig := <-quit:
			logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		case <-shutdownChan:
			logger.Info("shutdown requested via service API")
		case err = <-fatalChan:
			logger.Error("server failed, shutting down", zap.Error(err))
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		logger.Error("service API shutdown error", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			logger.Error("main API shutdown error", zap.Error(err))
		}
	}
	if rateLimiter != nil {
		rateLimiter.Close()
	}
	if sched != nil {
		sched.Stop()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	wg.Wait()
	logger.Info("server gracefully stopped")
	return err
}
