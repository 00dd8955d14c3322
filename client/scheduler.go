package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// scheduler launches logical requests on their own goroutines. With a
// connection limit it hands out permits; a request that cannot get one
// within wait fails with ErrTooManyConnections.
type scheduler struct {
	sem      *semaphore.Weighted
	max      int
	wait     time.Duration
	inFlight atomic.Int64
	shutdown atomic.Bool
}

// newScheduler creates a scheduler. If maxConcurrent <= 0, concurrency is
// unlimited.
func newScheduler(maxConcurrent int, wait time.Duration) *scheduler {
	s := &scheduler{max: maxConcurrent, wait: wait}
	if maxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return s
}

// start runs fn in a new goroutine once a permit is held. fail receives
// the reason when fn never runs.
func (s *scheduler) start(ctx context.Context, fn func(ctx context.Context), fail func(err error)) {
	go func() {
		if s.shutdown.Load() {
			fail(ErrClientClosed)
			return
		}

		if s.sem != nil {
			if err := s.acquire(ctx); err != nil {
				fail(err)
				return
			}
			defer s.sem.Release(1)
		}

		s.inFlight.Add(1)
		defer s.inFlight.Add(-1)

		fn(ctx)
	}()
}

func (s *scheduler) acquire(ctx context.Context) error {
	if s.wait <= 0 {
		if s.sem.TryAcquire(1) {
			return nil
		}
		return fmt.Errorf("%w: limit %d reached", ErrTooManyConnections, s.max)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	if err := s.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: no permit within %s, limit %d", ErrTooManyConnections, s.wait, s.max)
		}
		return err
	}
	return nil
}

// running reports requests currently holding a permit.
func (s *scheduler) running() int64 { return s.inFlight.Load() }
