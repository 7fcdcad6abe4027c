package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	appstocksync "github.com/erp/stocksync/internal/application/stocksync"
)

// StepRunner executes one persisted sync step
type StepRunner interface {
	RunStep(ctx context.Context) (*appstocksync.StepOutcome, error)
}

// ---------------------------------------------------------------------------
// SyncRunnerConfig
// ---------------------------------------------------------------------------

// SyncRunnerConfig holds configuration for the sync runner
type SyncRunnerConfig struct {
	// Interval between scheduled wake-ups
	Interval time.Duration
	// MaxStepsPerRun bounds the steps executed back-to-back per wake-up
	MaxStepsPerRun int
	// StepTimeout bounds a single step
	StepTimeout time.Duration
	// RunOnStart triggers a wake-up as soon as the runner starts
	RunOnStart bool
}

// DefaultSyncRunnerConfig returns default configuration
func DefaultSyncRunnerConfig() SyncRunnerConfig {
	return SyncRunnerConfig{
		Interval:       5 * time.Minute,
		MaxStepsPerRun: 100,
		StepTimeout:    15 * time.Minute,
		RunOnStart:     true,
	}
}

// Validate validates the configuration
func (c *SyncRunnerConfig) Validate() error {
	if c.Interval <= 0 || c.MaxStepsPerRun <= 0 || c.StepTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// RunSummary
// ---------------------------------------------------------------------------

// StopReason explains why a wake-up stopped stepping
type StopReason string

const (
	StopReasonDone       StopReason = "done"
	StopReasonError      StopReason = "error"
	StopReasonNoProgress StopReason = "no_progress"
	StopReasonMaxSteps   StopReason = "max_steps"
	StopReasonBusy       StopReason = "busy"
	StopReasonCancelled  StopReason = "cancelled"
)

// RunSummary records one wake-up
type RunSummary struct {
	Trigger    string        `json:"trigger"`
	BatchID    string        `json:"batch_id,omitempty"`
	Steps      int           `json:"steps"`
	LastStatus string        `json:"last_status,omitempty"`
	StopReason StopReason    `json:"stop_reason"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// SyncRunner
// ---------------------------------------------------------------------------

// SyncRunner wakes up on a ticker or an explicit trigger and runs sync steps
// until the batch finishes, stops progressing or the step budget is spent.
// Triggers arriving while a run is in flight coalesce into one follow-up run.
type SyncRunner struct {
	config SyncRunnerConfig
	runner StepRunner
	logger *zap.Logger

	trigger   chan string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	historyMu  sync.RWMutex
	history    []RunSummary
	maxHistory int
}

// NewSyncRunner creates a sync runner
func NewSyncRunner(config SyncRunnerConfig, runner StepRunner, logger *zap.Logger) (*SyncRunner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncRunner{
		config:     config,
		runner:     runner,
		logger:     logger,
		trigger:    make(chan string, 1),
		maxHistory: 50,
	}, nil
}

// Start launches the background loop
func (r *SyncRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return nil
	}
	r.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	if r.config.RunOnStart {
		r.enqueue("startup")
	}

	r.wg.Add(1)
	go r.loop(ctx)

	r.logger.Info("Sync runner started",
		zap.Duration("interval", r.config.Interval),
		zap.Int("max_steps_per_run", r.config.MaxStepsPerRun),
	)
	return nil
}

// Stop cancels the loop and waits for the in-flight step to return
func (r *SyncRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Sync runner stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Sync runner stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (r *SyncRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunning
}

// Trigger requests a wake-up without blocking. It returns
// ErrSchedulerNotRunning when stopped; a pending trigger absorbs new ones.
func (r *SyncRunner) Trigger(source string) (queued bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isRunning {
		return false, ErrSchedulerNotRunning
	}
	return r.enqueue(source), nil
}

func (r *SyncRunner) enqueue(source string) bool {
	select {
	case r.trigger <- source:
		return true
	default:
		return false
	}
}

func (r *SyncRunner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx, "schedule")
		case source := <-r.trigger:
			r.RunOnce(ctx, source)
		}
	}
}

// RunOnce steps the active batch until a stop condition and records the run
func (r *SyncRunner) RunOnce(ctx context.Context, source string) RunSummary {
	summary := RunSummary{Trigger: source, StartedAt: time.Now()}
	var last *appstocksync.StepOutcome

	for {
		if summary.Steps >= r.config.MaxStepsPerRun {
			summary.StopReason = StopReasonMaxSteps
			break
		}
		if ctx.Err() != nil {
			summary.StopReason = StopReasonCancelled
			break
		}

		stepCtx, cancel := context.WithTimeout(ctx, r.config.StepTimeout)
		outcome, err := r.runner.RunStep(stepCtx)
		cancel()
		summary.Steps++

		if outcome != nil {
			summary.BatchID = outcome.BatchID
			summary.LastStatus = string(outcome.Status)
		}
		if err != nil {
			summary.Error = err.Error()
			switch {
			case errors.Is(err, appstocksync.ErrBatchBusy):
				summary.StopReason = StopReasonBusy
			case ctx.Err() != nil:
				summary.StopReason = StopReasonCancelled
			default:
				summary.StopReason = StopReasonError
			}
			break
		}
		if outcome.Done {
			summary.StopReason = StopReasonDone
			break
		}
		if last != nil && last.BatchID == outcome.BatchID &&
			last.CurrentStep == outcome.CurrentStep && last.Status == outcome.Status {
			summary.StopReason = StopReasonNoProgress
			break
		}
		last = outcome
	}

	summary.Duration = time.Since(summary.StartedAt)
	r.addToHistory(summary)

	fields := []zap.Field{
		zap.String("trigger", source),
		zap.String("batch_id", summary.BatchID),
		zap.Int("steps", summary.Steps),
		zap.String("stop_reason", string(summary.StopReason)),
		zap.Duration("duration", summary.Duration),
	}
	if summary.StopReason == StopReasonError {
		r.logger.Warn("Sync run stopped on error", append(fields, zap.String("error", summary.Error))...)
	} else {
		r.logger.Info("Sync run finished", fields...)
	}
	return summary
}

func (r *SyncRunner) addToHistory(s RunSummary) {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()

	r.history = append([]RunSummary{s}, r.history...)
	if len(r.history) > r.maxHistory {
		r.history = r.history[:r.maxHistory]
	}
}

// History returns the most recent runs, newest first
func (r *SyncRunner) History(limit int) []RunSummary {
	r.historyMu.RLock()
	defer r.historyMu.RUnlock()

	if limit <= 0 || limit > len(r.history) {
		limit = len(r.history)
	}
	out := make([]RunSummary, limit)
	copy(out, r.history[:limit])
	return out
}
