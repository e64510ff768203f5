package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner is one unit of periodic work, a collection or a backfill pass.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

// NewScheduler creates a scheduler running runner every interval. Each run is
// bounded by runTimeout; zero means no bound beyond the parent context.
func NewScheduler(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start runs immediately and then on every tick until ctx is done. A failed
// run is logged and the next tick proceeds.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "run_timeout", s.runTimeout)

	_ = s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single bounded run.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	if err := s.runner.Run(runCtx); err != nil {
		s.logger.Error("run failed", "error", err)
		return err
	}
	return nil
}
