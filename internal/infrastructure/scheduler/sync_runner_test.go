package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	appstocksync "github.com/erp/stocksync/internal/application/stocksync"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

type stepResult struct {
	outcome *appstocksync.StepOutcome
	err     error
}

// scriptedRunner replays results, repeating the last one when exhausted
type scriptedRunner struct {
	mu      sync.Mutex
	results []stepResult
	calls   int
	called  chan struct{}
}

func newScriptedRunner(results ...stepResult) *scriptedRunner {
	return &scriptedRunner{results: results, called: make(chan struct{}, 100)}
}

func (s *scriptedRunner) RunStep(ctx context.Context) (*appstocksync.StepOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.results)-1)
	s.calls++
	s.called <- struct{}{}
	return s.results[i].outcome, s.results[i].err
}

func (s *scriptedRunner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func outcome(step int, status stocksync.BatchStatus, done bool) stepResult {
	return stepResult{outcome: &appstocksync.StepOutcome{
		BatchID:     "b1",
		Step:        step,
		Status:      status,
		CurrentStep: step + 1,
		Done:        done,
	}}
}

func testConfig() SyncRunnerConfig {
	return SyncRunnerConfig{
		Interval:       time.Hour,
		MaxStepsPerRun: 10,
		StepTimeout:    time.Second,
	}
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestSyncRunnerConfig_Validate(t *testing.T) {
	cfg := DefaultSyncRunnerConfig()
	assert.NoError(t, cfg.Validate())

	cfg.MaxStepsPerRun = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	_, err := NewSyncRunner(SyncRunnerConfig{}, newScriptedRunner(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// ---------------------------------------------------------------------------
// RunOnce Tests
// ---------------------------------------------------------------------------

func TestSyncRunner_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("steps until done", func(t *testing.T) {
		runner := newScriptedRunner(
			outcome(0, stocksync.BatchStatusSyncing, false),
			outcome(1, stocksync.BatchStatusSyncing, false),
			outcome(2, stocksync.BatchStatusCompleted, true),
		)
		r, err := NewSyncRunner(testConfig(), runner, zaptest.NewLogger(t))
		require.NoError(t, err)

		summary := r.RunOnce(ctx, "manual")
		assert.Equal(t, 3, summary.Steps)
		assert.Equal(t, StopReasonDone, summary.StopReason)
		assert.Equal(t, "b1", summary.BatchID)
		assert.Equal(t, string(stocksync.BatchStatusCompleted), summary.LastStatus)
		assert.Equal(t, "manual", summary.Trigger)
	})

	t.Run("stops on error", func(t *testing.T) {
		runner := newScriptedRunner(
			outcome(0, stocksync.BatchStatusSyncing, false),
			stepResult{err: errors.New("db down")},
		)
		r, _ := NewSyncRunner(testConfig(), runner, nil)

		summary := r.RunOnce(ctx, "manual")
		assert.Equal(t, 2, summary.Steps)
		assert.Equal(t, StopReasonError, summary.StopReason)
		assert.Equal(t, "db down", summary.Error)
	})

	t.Run("stops when busy", func(t *testing.T) {
		r, _ := NewSyncRunner(testConfig(), newScriptedRunner(stepResult{err: appstocksync.ErrBatchBusy}), nil)
		assert.Equal(t, StopReasonBusy, r.RunOnce(ctx, "manual").StopReason)
	})

	t.Run("stops without progress", func(t *testing.T) {
		stuck := outcome(0, stocksync.BatchStatusFetching, false)
		r, _ := NewSyncRunner(testConfig(), newScriptedRunner(stuck), nil)

		summary := r.RunOnce(ctx, "manual")
		assert.Equal(t, 2, summary.Steps)
		assert.Equal(t, StopReasonNoProgress, summary.StopReason)
	})

	t.Run("respects step budget", func(t *testing.T) {
		results := make([]stepResult, 0, 20)
		for i := 0; i < 20; i++ {
			results = append(results, outcome(i, stocksync.BatchStatusSyncing, false))
		}
		cfg := testConfig()
		cfg.MaxStepsPerRun = 4
		r, _ := NewSyncRunner(cfg, newScriptedRunner(results...), nil)

		summary := r.RunOnce(ctx, "manual")
		assert.Equal(t, 4, summary.Steps)
		assert.Equal(t, StopReasonMaxSteps, summary.StopReason)
	})

	t.Run("records history newest first", func(t *testing.T) {
		r, _ := NewSyncRunner(testConfig(), newScriptedRunner(outcome(0, stocksync.BatchStatusCompleted, true)), nil)
		r.RunOnce(ctx, "first")
		r.RunOnce(ctx, "second")

		history := r.History(10)
		require.Len(t, history, 2)
		assert.Equal(t, "second", history[0].Trigger)
		assert.Len(t, r.History(1), 1)
	})
}

// ---------------------------------------------------------------------------
// Lifecycle Tests
// ---------------------------------------------------------------------------

func TestSyncRunner_Lifecycle(t *testing.T) {
	runner := newScriptedRunner(outcome(0, stocksync.BatchStatusCompleted, true))
	cfg := testConfig()
	cfg.RunOnStart = true
	r, err := NewSyncRunner(cfg, runner, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = r.Trigger("api")
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	require.NoError(t, r.Start(context.Background()))
	assert.True(t, r.IsRunning())

	select {
	case <-runner.called:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not happen")
	}

	_, err = r.Trigger("api")
	require.NoError(t, err)
	select {
	case <-runner.called:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered run did not happen")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(stopCtx))
	assert.False(t, r.IsRunning())
	assert.GreaterOrEqual(t, runner.Calls(), 2)
}

func TestSyncRunner_TriggerCoalesces(t *testing.T) {
	r, err := NewSyncRunner(testConfig(), newScriptedRunner(outcome(0, stocksync.BatchStatusCompleted, true)), nil)
	require.NoError(t, err)

	// running without the loop so queued triggers stay pending
	r.mu.Lock()
	r.isRunning = true
	r.mu.Unlock()

	queued, err := r.Trigger("a")
	require.NoError(t, err)
	assert.True(t, queued)

	queued, err = r.Trigger("b")
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestSyncRunner_Ticker(t *testing.T) {
	runner := newScriptedRunner(outcome(0, stocksync.BatchStatusCompleted, true))
	cfg := testConfig()
	cfg.Interval = 20 * time.Millisecond
	r, err := NewSyncRunner(cfg, runner, nil)
	require.NoError(t, err)

	require.NoError(t, r.Start(context.Background()))
	defer func() { _ = r.Stop(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case <-runner.called:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduled run did not happen")
		}
	}
}
