package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/asynchttp/client/body"
	"github.com/adamwoolhether/asynchttp/client/filter"
	"github.com/adamwoolhether/asynchttp/client/message"
	"github.com/adamwoolhether/asynchttp/client/pool"
	"github.com/adamwoolhether/asynchttp/client/realm"
)

// Execute sends req and delivers its outcome to h. It returns at once;
// the request runs on its own goroutine. Cancelling ctx fails the request
// through h.OnThrowable, while [Future.Cancel] ends it without invoking h.
func Execute[T any](ctx context.Context, c *Client, req *message.Request, h AsyncHandler[T]) *Future[T] {
	id := uuid.NewString()
	ctx, cancel := context.WithCancelCause(ctx)

	e := &execution[T]{
		c:       c,
		f:       newFuture[T](id, cancel),
		user:    h,
		handler: typedHandler[T]{h: h},
		req:     req,
		logger:  c.logger.With("request_id", id),
		start:   time.Now(),
		span:    trace.SpanFromContext(ctx),
	}

	if c.closed.Load() {
		e.fail(ctx, ErrClientClosed)
		return e.f
	}

	if d := e.timeout(); d > 0 {
		to := c.timer.Get().AfterFunc(d, func() {
			cancel(&TimeoutError{Kind: TimeoutRequest, Limit: d, Elapsed: time.Since(e.start)})
		})
		context.AfterFunc(ctx, func() { to.Cancel() })
	}

	e.logger.Debug("request accepted", "method", req.Method(), "uri", req.URL())

	c.sched.start(ctx, e.run, func(err error) { e.fail(ctx, err) })

	return e.f
}

// execution is the state of one logical request. Its transitions run on a
// single goroutine.
type execution[T any] struct {
	c       *Client
	f       *Future[T]
	user    AsyncHandler[T]
	handler filter.Handler
	req     *message.Request
	logger  *slog.Logger
	span    trace.Span
	start   time.Time
	state   state

	// credentials is the caller's realm and origin the host it belongs to.
	// prototype is the realm challenges derive from on the current host;
	// it is nil while a redirect has left that host.
	credentials    *realm.Realm
	origin         *url.URL
	prototype      *realm.Realm
	proxyRealm     *realm.Realm
	authTried      bool
	proxyAuthTried bool
	redirects      int
	attempts       int
}

func (e *execution[T]) run(ctx context.Context) {
	ctx, e.span = e.c.tracer.Start(ctx, "asynchttp.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("request_id", e.f.ID()),
			attribute.String("http.method", e.req.Method()),
			attribute.String("url", e.req.URL()),
		),
	)
	defer e.span.End()

	req, err := e.preFilter(ctx)
	if err != nil {
		e.fail(ctx, err)
		return
	}

	for {
		if err := ctx.Err(); err != nil {
			e.fail(ctx, err)
			return
		}

		resp, err := e.attempt(ctx, req)
		if err != nil {
			e.fail(ctx, err)
			return
		}

		e.transition(statePostFilter)

		next, answered, err := e.challenge(req, resp)
		if err != nil {
			e.fail(ctx, err)
			return
		}

		fc, err := filter.ApplyResponse(ctx, e.c.responseFilters, filter.NewContext(req, e.handler).WithResponse(resp))
		if err != nil {
			e.fail(ctx, err)
			return
		}
		e.handler = fc.Handler()

		// An answered challenge wins over a filter replay.
		if answered {
			e.transition(stateReplaying)
			req = next
			continue
		}
		if fc.ShouldReplay() {
			e.transition(stateReplaying)
			req = fc.Request()
			continue
		}

		if e.followRedirect(req) && resp.IsRedirect() {
			next, err := e.redirect(req, resp)
			if err != nil {
				e.fail(ctx, err)
				return
			}
			if next != nil {
				e.transition(stateRedirecting)
				req = next
				continue
			}
		}

		e.succeed(ctx, resp)
		return
	}
}

// preFilter resolves the realm, lets a resumable handler adjust the range,
// runs the request filters and injects the Range header.
func (e *execution[T]) preFilter(ctx context.Context) (*message.Request, error) {
	e.transition(statePreFilter)

	req := e.req
	if req.Realm() == nil && e.c.realm != nil {
		r, err := req.ToBuilder().Realm(e.c.realm).Build()
		if err != nil {
			return nil, err
		}
		req = r
	}
	e.credentials = req.Realm()
	e.prototype = e.credentials
	e.origin = req.URI()
	e.proxyRealm = e.c.proxyRealm

	if rh, ok := e.user.(ResumableHandler); ok {
		adjusted, err := rh.AdjustRequestRange(req)
		if err != nil {
			return nil, fmt.Errorf("adjusting request range: %w", err)
		}
		req = adjusted
	}

	fc, err := filter.ApplyRequest(ctx, e.c.requestFilters, filter.NewContext(req, e.handler))
	if err != nil {
		return nil, err
	}
	req, e.handler = fc.Request(), fc.Handler()

	if off := req.RangeOffset(); off > 0 {
		ranged, err := req.ToBuilder().SetHeader("Range", fmt.Sprintf("bytes=%d-", off)).Build()
		if err != nil {
			return nil, err
		}
		req = ranged
	}

	return req, nil
}

// attempt performs one send/receive cycle on a leased connection.
func (e *execution[T]) attempt(ctx context.Context, req *message.Request) (*message.Response, error) {
	e.attempts++
	ctx, span := e.c.tracer.Start(ctx, "asynchttp.attempt", trace.WithAttributes(
		attribute.Int("attempt", e.attempts),
		attribute.String("url", req.URL()),
	))
	defer span.End()

	req, err := e.sign(req)
	if err != nil {
		return nil, err
	}

	hr, producer, err := e.httpRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if producer != nil {
		defer func() {
			if err := producer.Release(); err != nil {
				e.logger.Warn("releasing request body", "error", err)
			}
		}()
	}

	e.transition(stateConnecting)
	conn, err := e.c.pool.Lease(ctx, pool.TargetFor(hr.URL), req.VirtualHost())
	if err != nil {
		return nil, fmt.Errorf("leasing connection: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// Nothing was written, so the connection is fit for reuse.
		e.c.pool.Release(conn)
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	resp, reusable, err := e.exchange(conn, req, hr)
	if !stop() {
		e.c.pool.Discard(conn)
		return nil, context.Cause(ctx)
	}
	if err != nil || !reusable {
		e.c.pool.Discard(conn)
	} else {
		e.c.pool.Release(conn)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	e.logger.Debug("response received", "status", resp.StatusCode, "attempt", e.attempts, "reused", conn.Reused())

	return resp, nil
}

func (e *execution[T]) exchange(conn pool.Conn, req *message.Request, hr *http.Request) (*message.Response, bool, error) {
	conn.SetReadIdleTimeout(e.c.cfg.ReadIdleTimeout)

	e.transition(stateSending)
	if err := conn.WriteRequest(hr); err != nil {
		return nil, false, fmt.Errorf("writing request: %w", e.ioErr(err))
	}

	e.transition(stateAwaitingResponse)
	res, err := conn.ReadResponse(hr)
	if err != nil {
		return nil, false, fmt.Errorf("reading response: %w", e.ioErr(err))
	}
	b, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if err != nil {
		return nil, false, fmt.Errorf("reading response body: %w", e.ioErr(err))
	}

	resp := &message.Response{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Proto:      res.Proto,
		Header:     res.Header,
		Body:       b,
		URI:        req.URI(),
	}

	return resp, !res.Close, nil
}

// ioErr converts a read deadline expiry into a read idle timeout.
func (e *execution[T]) ioErr(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() && e.c.cfg.ReadIdleTimeout > 0 {
		return &TimeoutError{Kind: TimeoutIdle, Limit: e.c.cfg.ReadIdleTimeout, Elapsed: time.Since(e.start)}
	}
	return err
}

func (e *execution[T]) sign(req *message.Request) (*message.Request, error) {
	s := req.SignatureCalculator()
	if s == nil {
		s = e.c.signer
	}
	if s == nil {
		return req, nil
	}

	signed, err := s.Sign(req)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}
	return signed, nil
}

// httpRequest renders req for the wire, opening a fresh body producer.
func (e *execution[T]) httpRequest(ctx context.Context, req *message.Request) (*http.Request, body.Producer, error) {
	u := req.URI()
	hr := (&http.Request{
		Method:     req.Method(),
		URL:        u,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     req.Headers().HTTPHeader(),
		Host:       u.Host,
	}).WithContext(ctx)

	if vh := req.VirtualHost(); vh != "" {
		hr.Host = vh
	}
	if _, ok := hr.Header["User-Agent"]; !ok {
		hr.Header.Set("User-Agent", e.c.cfg.UserAgent)
	}

	if v, err := authorization(req.Realm()); err != nil {
		return nil, nil, err
	} else if v != "" {
		hr.Header.Set("Authorization", v)
	}
	if e.viaHTTPProxy(u.Scheme) {
		if v, err := authorization(e.proxyRealm); err != nil {
			return nil, nil, err
		} else if v != "" {
			hr.Header.Set("Proxy-Authorization", v)
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(hr.Header))

	src := req.Body()
	if src == nil {
		return hr, nil, nil
	}

	p, err := src.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("opening request body: %w", err)
	}
	switch n := p.Length(); {
	case n == 0:
		hr.Body = http.NoBody
	case n > 0:
		hr.ContentLength = n
		hr.Body = io.NopCloser(body.NewStream(ctx, p))
	default:
		hr.ContentLength = -1
		hr.Body = io.NopCloser(body.NewStream(ctx, p))
	}

	return hr, p, nil
}

func (e *execution[T]) viaHTTPProxy(scheme string) bool {
	p := e.c.cfg.Proxy
	return p != nil && p.Type == pool.ProxyHTTP && scheme == "http"
}

func (e *execution[T]) followRedirect(req *message.Request) bool {
	if follow, ok := req.FollowRedirect(); ok {
		return follow
	}
	return e.c.cfg.FollowRedirects
}

func (e *execution[T]) timeout() time.Duration {
	if d := e.req.Timeout(); d > 0 {
		return d
	}
	return e.c.cfg.RequestTimeout
}

func (e *execution[T]) transition(s state) {
	e.state = s
	e.span.AddEvent(s.String())
	e.logger.Debug("request state", "state", s.String())
}

// succeed hands resp to the handler unless the request was cancelled.
func (e *execution[T]) succeed(ctx context.Context, resp *message.Response) {
	if !e.f.claim() {
		e.logger.Debug("request cancelled before completion", "status", resp.StatusCode)
		return
	}
	e.transition(stateCompleted)

	var zero T
	out, err := e.invokeCompleted(resp)
	if err != nil {
		e.logger.Warn("completion handler failed", "status", resp.StatusCode, "error", err)
		e.span.SetStatus(codes.Error, err.Error())
		e.f.complete(zero, err)
		return
	}

	v, err := asType[T](out)
	if err != nil {
		e.span.SetStatus(codes.Error, err.Error())
		e.f.complete(zero, err)
		return
	}

	e.logger.Info("request completed",
		"method", e.req.Method(),
		"uri", resp.URI.String(),
		"status", resp.StatusCode,
		"attempts", e.attempts,
		"elapsed", time.Since(e.start).Round(time.Millisecond),
	)
	e.f.complete(v, nil)
}

// fail reports err through the handler. A cancelled or timed out context
// replaces err with its cause.
func (e *execution[T]) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = cause
		}
	}

	if e.f.IsCancelled() || errors.Is(err, ErrCancelled) {
		e.state = stateCancelled
		e.logger.Debug("request cancelled")
		return
	}
	if !e.f.claim() {
		return
	}
	e.transition(stateFailed)

	e.logger.Warn("request failed", "method", e.req.Method(), "uri", e.req.URL(), "error", err, "attempts", e.attempts)
	e.span.RecordError(err)
	e.span.SetStatus(codes.Error, err.Error())

	e.invokeThrowable(err)

	var zero T
	e.f.complete(zero, err)
}

func (e *execution[T]) invokeCompleted(resp *message.Response) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("completion handler panicked: %v", r)
		}
	}()
	return e.handler.OnCompleted(resp)
}

func (e *execution[T]) invokeThrowable(err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("failure handler panicked", "panic", r)
		}
	}()
	e.handler.OnThrowable(err)
}
