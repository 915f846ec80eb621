package docstore_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"docstore/internal/docstore"
)

func TestScheduler_RunOnce(t *testing.T) {
	t.Run("returns the run result", func(t *testing.T) {
		want := &docstore.MigrationResult{Candidates: 2, SuccessCount: 2}
		s := docstore.NewScheduler(func(context.Context) (*docstore.MigrationResult, error) {
			return want, nil
		}, time.Hour, 0, docstore.NewNopLogger())

		if got := s.RunOnce(context.Background()); got != want {
			t.Errorf("RunOnce() = %+v, want %+v", got, want)
		}
	})

	t.Run("bounds the run with the timeout", func(t *testing.T) {
		var hadDeadline bool
		s := docstore.NewScheduler(func(ctx context.Context) (*docstore.MigrationResult, error) {
			_, hadDeadline = ctx.Deadline()
			<-ctx.Done()
			return &docstore.MigrationResult{Candidates: 3, SkippedCount: 3}, nil
		}, time.Hour, 10*time.Millisecond, docstore.NewNopLogger())

		got := s.RunOnce(context.Background())
		if !hadDeadline {
			t.Error("run context has no deadline")
		}
		if got == nil || got.SkippedCount != 3 {
			t.Errorf("RunOnce() = %+v, want the deferred result", got)
		}
	})

	t.Run("swallows overlapping and failed runs", func(t *testing.T) {
		for _, err := range []error{docstore.ErrRunInProgress, errors.New("scan failed")} {
			s := docstore.NewScheduler(func(context.Context) (*docstore.MigrationResult, error) {
				return nil, err
			}, time.Hour, 0, docstore.NewNopLogger())

			if got := s.RunOnce(context.Background()); got != nil {
				t.Errorf("RunOnce() with %v = %+v, want nil", err, got)
			}
		}
	})
}

func TestScheduler_Start(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s := docstore.NewScheduler(func(context.Context) (*docstore.MigrationResult, error) {
		if runs.Add(1) == 3 {
			cancel()
		}
		return &docstore.MigrationResult{}, nil
	}, 5*time.Millisecond, 0, docstore.NewNopLogger())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Start() did not return after cancellation")
	}
	if n := runs.Load(); n < 3 {
		t.Errorf("runs = %d, want at least 3 (immediate run plus ticks)", n)
	}
}
