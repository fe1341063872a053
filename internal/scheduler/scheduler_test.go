package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingReconciler struct {
	calls    atomic.Int32
	repaired int
	err      error
}

func (r *countingReconciler) ReconcileLedgerSyncs(ctx context.Context) (int, error) {
	r.calls.Add(1)
	return r.repaired, r.err
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a schedule", &countingReconciler{}, zap.NewNop())
	assert.ErrorContains(t, err, "invalid ledger sync schedule")
}

func TestNew_RejectsFiveFieldSpec(t *testing.T) {
	_, err := New("*/5 * * * *", &countingReconciler{}, zap.NewNop())
	assert.Error(t, err)
}

func TestReconcileLedger_LogsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := &countingReconciler{repaired: 2}
	s, err := New("0 */5 * * * *", r, zap.New(core))
	require.NoError(t, err)

	s.reconcileLedger()
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("ledger reconciliation repaired mirrors").Len())

	r.err = errors.New("mongo down")
	s.reconcileLedger()
	assert.Equal(t, 1, logs.FilterMessage("ledger reconciliation failed").Len())
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	r := &countingReconciler{}
	s, err := New("* * * * * *", r, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
