// Package timer provides the shared timer that drives request timeouts and
// idle-connection reclaim for a client.
package timer

import (
	"errors"
	"sync"
	"time"
)

// ErrStopped is reported by Timeout.Err for timeouts scheduled after Stop.
var ErrStopped = errors.New("timer stopped")

// Timer schedules callbacks. Implementations must be safe for concurrent use.
type Timer interface {
	// AfterFunc runs fn in its own goroutine once d has elapsed, unless the
	// returned Timeout is cancelled first.
	AfterFunc(d time.Duration, fn func()) Timeout
	// Stop cancels every pending timeout. Later calls are no-ops.
	Stop()
}

// Timeout is a single scheduled callback.
type Timeout interface {
	// Cancel prevents the callback from running. It reports false when the
	// callback already ran or was already cancelled.
	Cancel() bool
}

// Wheel is the default Timer, backed by the runtime timers.
type Wheel struct {
	mu      sync.Mutex
	pending map[*timeout]struct{}
	stopped bool
}

// New returns a running Wheel.
func New() *Wheel {
	return &Wheel{pending: make(map[*timeout]struct{})}
}

func (w *Wheel) AfterFunc(d time.Duration, fn func()) Timeout {
	w.mu.Lock()
	defer w.mu.Unlock()

	t := &timeout{wheel: w}
	if w.stopped {
		t.err = ErrStopped
		return t
	}

	w.pending[t] = struct{}{}
	t.t = time.AfterFunc(d, func() {
		if w.forget(t) {
			fn()
		}
	})
	return t
}

// Pending returns the number of scheduled callbacks that have neither run
// nor been cancelled.
func (w *Wheel) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Wheel) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	for t := range w.pending {
		t.t.Stop()
	}
	clear(w.pending)
}

// Stopped reports whether Stop has been called.
func (w *Wheel) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

func (w *Wheel) forget(t *timeout) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[t]; !ok {
		return false
	}
	delete(w.pending, t)
	return true
}

type timeout struct {
	wheel *Wheel
	t     *time.Timer
	err   error
}

func (t *timeout) Cancel() bool {
	if t.t == nil {
		return false
	}
	if !t.wheel.forget(t) {
		return false
	}
	t.t.Stop()
	return true
}

// Err reports why the timeout will never fire, nil for scheduled timeouts.
func (t *timeout) Err() error { return t.err }

// Shared lazily creates a Wheel on first use, or wraps a Timer supplied by
// the caller. Close stops the timer exactly once, and only if Shared created
// it.
type Shared struct {
	once     sync.Once
	supplied Timer
	timer    Timer
	owned    bool

	closeOnce sync.Once
}

// NewShared wraps supplied, which may be nil.
func NewShared(supplied Timer) *Shared {
	return &Shared{supplied: supplied}
}

// Get returns the timer, creating it on first call.
func (s *Shared) Get() Timer {
	s.once.Do(func() {
		if s.supplied != nil {
			s.timer = s.supplied
			return
		}
		s.timer = New()
		s.owned = true
	})
	return s.timer
}

// Owned reports whether Close will stop the timer.
func (s *Shared) Owned() bool {
	s.Get()
	return s.owned
}

// Close stops an owned timer. A supplied timer is left running.
func (s *Shared) Close() {
	s.closeOnce.Do(func() {
		used := true
		s.once.Do(func() {
			// Never used. Later Gets see a stopped timer instead of
			// starting a fresh one.
			used = false
			if s.supplied != nil {
				s.timer = s.supplied
				return
			}
			w := New()
			w.Stop()
			s.timer = w
			s.owned = true
		})
		if used && s.owned {
			s.timer.Stop()
		}
	})
}
