package jobs

import (
	"context"
	"errors"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lovespark.app/admin/internal/config"
	"lovespark.app/admin/internal/features/coins"
)

type countingSweeper struct {
	calls   int
	cleared int
	err     error
}

func (s *countingSweeper) SweepExpired(context.Context) (int, error) {
	s.calls++
	return s.cleared, s.err
}

type countingReconciler struct {
	calls      int
	mismatches []coins.Mismatch
	err        error
}

func (r *countingReconciler) Reconcile(context.Context) ([]coins.Mismatch, error) {
	r.calls++
	return r.mismatches, r.err
}

func testConfig() *config.Config {
	return &config.Config{
		AppTimezone:         "Europe/Istanbul",
		PremiumSweepCron:    "*/5 * * * *",
		LedgerReconcileCron: "0 * * * *",
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(testConfig(), &countingSweeper{}, &countingReconciler{})
	assert.Equal(t, "Europe/Istanbul", s.loc.String())

	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.LedgerReconcileCron = "every hour"

	s := NewScheduler(cfg, &countingSweeper{}, &countingReconciler{})
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_RECONCILE_CRON")
}

func TestScheduler_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	cfg := testConfig()
	cfg.AppTimezone = "Mars/Olympus"

	s := NewScheduler(cfg, &countingSweeper{}, &countingReconciler{})
	assert.Equal(t, "UTC", s.loc.String())
}

func TestScheduler_JobsCallServices(t *testing.T) {
	sweeper := &countingSweeper{cleared: 2, err: errors.New("user 5: timeout")}
	reconciler := &countingReconciler{mismatches: []coins.Mismatch{{UserID: 1, Balance: 10, LedgerSum: 5}}}
	s := NewScheduler(testConfig(), sweeper, reconciler)
	ctx := context.Background()

	s.runSweep(ctx)
	s.runReconcile(ctx)
	reconciler.err = errors.New("db down")
	s.runReconcile(ctx)

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 2, reconciler.calls)
}
