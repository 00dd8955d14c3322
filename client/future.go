package client

import (
	"context"
	"sync/atomic"
)

const (
	futurePending int32 = iota
	futureCompleting
	futureDone
	futureCancelled
)

// Future is the outcome of one logical request. It makes exactly one
// terminal transition: completed with a value, failed, or cancelled.
type Future[T any] struct {
	id     string
	state  atomic.Int32
	done   chan struct{}
	value  T
	err    error
	cancel context.CancelCauseFunc
}

func newFuture[T any](id string, cancel context.CancelCauseFunc) *Future[T] {
	return &Future[T]{id: id, done: make(chan struct{}), cancel: cancel}
}

// ID identifies the request in logs and traces.
func (f *Future[T]) ID() string { return f.id }

// Done returns a channel that is closed when the request reaches a
// terminal state.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Get blocks until the request finishes or ctx ends. Giving up on ctx does
// not cancel the request.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err blocks until the request finishes and returns its error.
func (f *Future[T]) Err() error {
	<-f.done
	return f.err
}

// Cancel stops the request unless its handler has already been invoked.
// Resources are released at the engine's next suspension point. It reports
// whether this call cancelled the request.
func (f *Future[T]) Cancel() bool {
	if !f.state.CompareAndSwap(futurePending, futureCancelled) {
		return false
	}
	f.err = ErrCancelled
	f.cancel(ErrCancelled)
	close(f.done)
	return true
}

func (f *Future[T]) IsCancelled() bool { return f.state.Load() == futureCancelled }

// IsDone reports whether the request reached any terminal state.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// claim reserves the terminal transition for the engine. Once claimed,
// Cancel has no effect.
func (f *Future[T]) claim() bool {
	return f.state.CompareAndSwap(futurePending, futureCompleting)
}

func (f *Future[T]) complete(v T, err error) {
	f.value, f.err = v, err
	f.state.Store(futureDone)
	f.cancel(nil)
	close(f.done)
}
