package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/adamwoolhether/asynchttp/client/filter"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config defines the throttler's
// Requests Per Second and Burst Rate
type Config struct {
	RPS   int `json:"rps" validate:"gt=0"`
	Burst int `json:"burst" validate:"gt=0"`
}

// Filter is a filter.RequestFilter, using the time/rate token
// bucket limiter to restrict outbound requests.
type Filter struct {
	limiter *rate.Limiter
	rps     int
	burst   int
	logFn   func() *slog.Logger
}

// New returns a request filter that throttles outbound requests using a
// token bucket rate limiter. logFn lazily resolves the logger at request
// time, making option ordering irrelevant. A nil-returning logFn skips the
// calls to *Limiter.Allow().
func New(cfg Config, logFn func() *slog.Logger) (*Filter, error) {
	if cfg.RPS <= 0 || cfg.Burst <= 0 {
		return nil, fmt.Errorf("rps[%d] and burst[%d] %w", cfg.RPS, cfg.Burst, ErrMustNotBeZero)
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := &Filter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		rps:     cfg.RPS,
		burst:   cfg.Burst,
		logFn:   logFn,
	}

	return t, nil
}

// FilterRequest blocks until a token is available or ctx ends. The filter
// context passes through unchanged.
func (t *Filter) FilterRequest(ctx context.Context, fc *filter.Context) (*filter.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	var waited time.Duration
	logger := t.logFn()
	if logger != nil && !t.limiter.Allow() {
		logger.Info("throttle tokens exhausted", "rate", t.rps, "burst", t.burst, "uri", fc.Request().URL())

		defer func() {
			logger.Info("throttle wait complete", "waited", waited.String(), "rate", t.rps, "burst", t.burst)
		}()
	}

	start := time.Now()

	err := t.limiter.Wait(ctx)
	waited = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil { // Check context hasn't expired again.
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return fc, nil
}
