package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = time.Minute

// LedgerReconciler replays outstanding rentee mirror writes.
type LedgerReconciler interface {
	ReconcileLedgerSyncs(ctx context.Context) (int, error)
}

// Scheduler runs periodic maintenance on a cron schedule (UTC, with seconds).
type Scheduler struct {
	cron       *cron.Cron
	reconciler LedgerReconciler
	logger     *zap.Logger
}

// New registers the ledger repair job on the cron schedule.
func New(schedule string, reconciler LedgerReconciler, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s := &Scheduler{cron: c, reconciler: reconciler, logger: logger}

	if _, err := c.AddFunc(schedule, s.reconcileLedger); err != nil {
		return nil, fmt.Errorf("invalid ledger sync schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) reconcileLedger() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	repaired, err := s.reconciler.ReconcileLedgerSyncs(ctx)
	if err != nil {
		s.logger.Error("ledger reconciliation failed", zap.Int("repaired", repaired), zap.Error(err))
		return
	}
	if repaired > 0 {
		s.logger.Info("ledger reconciliation repaired mirrors", zap.Int("repaired", repaired))
	}
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
