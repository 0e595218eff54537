// Package scheduler drives reconciliation cycles on a fixed interval.
//
// One cycle runs to completion before the next wait begins, so cycles never
// overlap. Cancellation is honoured before each cycle and during the wait.
// A failed or aborted cycle is logged and retried at the next interval; it
// never stops the loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/dhdnssync/internal/reconciler"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 15 * time.Minute

// ErrNotRun is returned by LastRun before the first cycle has completed.
var ErrNotRun = errors.New("no reconciliation cycle has completed yet")

// Cycle runs one reconciliation. *reconciler.Reconciler satisfies it.
type Cycle interface {
	Reconcile(ctx context.Context) (*reconciler.Result, error)
}

// Config holds scheduler configuration.
type Config struct {
	// Interval is the delay between the end of one cycle and the start
	// of the next.
	Interval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

// Scheduler runs a Cycle repeatedly.
type Scheduler struct {
	cycle  Cycle
	config Config
	logger *slog.Logger

	mu         sync.Mutex
	lastRun    time.Time
	lastErr    error
	lastResult *reconciler.Result
	cycles     int
}

// Option is a functional option for configuring the Scheduler.
type Option func(*Scheduler)

// WithConfig sets the scheduler configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		if cfg.Interval > 0 {
			s.config = cfg
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scheduler for the given cycle.
func New(cycle Cycle, opts ...Option) *Scheduler {
	s := &Scheduler{
		cycle:  cycle,
		config: DefaultConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Interval returns the configured delay between cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.config.Interval
}

// Run executes cycles until ctx is cancelled. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", slog.Duration("interval", s.config.Interval))

	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}

		_, _ = s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-time.After(s.config.Interval):
		}
	}
}

// RunOnce executes a single cycle and records its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (*reconciler.Result, error) {
	result, err := s.cycle.Reconcile(ctx)

	s.mu.Lock()
	s.cycles++
	s.lastRun = time.Now()
	s.lastErr = err
	s.lastResult = result
	s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.Error("reconciliation cycle failed",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", s.config.Interval),
		)
	case result.HasErrors():
		s.logger.Warn("reconciliation cycle completed with failures",
			slog.Int("failed", result.FailedCount()),
			slog.Duration("next_in", s.config.Interval),
		)
	default:
		s.logger.Debug("reconciliation cycle completed",
			slog.Duration("next_in", s.config.Interval),
		)
	}

	return result, err
}

// LastRun returns when the most recent cycle finished and the error it
// returned. Before any cycle has finished it returns ErrNotRun.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cycles == 0 {
		return time.Time{}, ErrNotRun
	}
	return s.lastRun, s.lastErr
}

// LastResult returns the result of the most recent cycle that got as far
// as evaluating records, or nil.
func (s *Scheduler) LastResult() *reconciler.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// Cycles returns how many cycles have run.
func (s *Scheduler) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// Ready reports an error until the first cycle has finished.
func (s *Scheduler) Ready() error {
	_, err := s.LastRun()
	if errors.Is(err, ErrNotRun) {
		return err
	}
	return nil
}

// Healthy reports the state of the last cycle: an error if it failed or
// aborted, or if any of its actions failed.
func (s *Scheduler) Healthy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cycles == 0 {
		return nil
	}
	if s.lastErr != nil {
		return s.lastErr
	}
	if s.lastResult != nil && s.lastResult.HasErrors() {
		return fmt.Errorf("last cycle had %d failed actions", s.lastResult.FailedCount())
	}
	return nil
}
