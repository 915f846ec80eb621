package docstore

import (
	"context"
	"errors"
	"time"
)

// RunFunc executes one migration run. The app layer wraps MigrationPolicy.Run
// with run bookkeeping.
type RunFunc func(ctx context.Context) (*MigrationResult, error)

// Scheduler triggers the migration policy on a fixed interval, bounding each
// run with a timeout so a stuck backend call cannot wedge the loop.
type Scheduler struct {
	run      RunFunc
	interval time.Duration
	timeout  time.Duration
	logger   Logger
}

// NewScheduler creates a Scheduler. A zero timeout leaves runs unbounded.
func NewScheduler(run RunFunc, interval, timeout time.Duration, logger Logger) *Scheduler {
	return &Scheduler{
		run:      run,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start runs the policy immediately and then on every tick until ctx is done.
// It blocks; callers typically run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.interval.String(), "timeout", s.timeout.String())

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single bounded run. Overlapping runs are refused by the
// policy and logged here.
func (s *Scheduler) RunOnce(ctx context.Context) *MigrationResult {
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.run(runCtx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("skipping tick, previous migration run still active")
		return nil
	case err != nil:
		s.logger.Error("migration run failed", "error", err)
		return nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("migration run hit its timeout, remaining candidates deferred",
			"skipped", result.SkippedCount,
		)
	}
	return result
}
