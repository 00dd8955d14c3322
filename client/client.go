package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/asynchttp/client/body"
	"github.com/adamwoolhether/asynchttp/client/download"
	"github.com/adamwoolhether/asynchttp/client/filter"
	"github.com/adamwoolhether/asynchttp/client/message"
	"github.com/adamwoolhether/asynchttp/client/pool"
	"github.com/adamwoolhether/asynchttp/client/realm"
	"github.com/adamwoolhether/asynchttp/client/throttle"
	"github.com/adamwoolhether/asynchttp/client/timer"
)

// Client executes requests asynchronously over pooled connections.
// It is safe for concurrent use.
type Client struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer

	pool  pool.Pool
	timer *timer.Shared
	sched *scheduler

	requestFilters  []filter.RequestFilter
	responseFilters []filter.ResponseFilter

	realm      *realm.Realm
	proxyRealm *realm.Realm
	signer     message.SignatureCalculator

	closed atomic.Bool
}

func Build(optFns ...Option) (*Client, error) {
	opts := options{cfg: DefaultConfig()}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if err := opts.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client := &Client{
		cfg:        opts.cfg,
		logger:     slog.Default(),
		tracer:     noop.NewTracerProvider().Tracer("asynchttp"),
		timer:      timer.NewShared(opts.timer),
		sched:      newScheduler(opts.cfg.MaxConnections, opts.cfg.MaxConnectionsWait),
		realm:      opts.realm,
		proxyRealm: opts.proxyRealm,
		signer:     opts.signer,
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}
	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	if t := opts.cfg.Throttle; t != nil {
		f, err := throttle.New(*t, func() *slog.Logger { return client.logger })
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		client.requestFilters = append(client.requestFilters, f)
	}
	client.requestFilters = append(client.requestFilters, opts.requestFilters...)
	client.responseFilters = opts.responseFilters

	switch {
	case opts.pool != nil:
		client.pool = opts.pool
	default:
		p, err := pool.NewManager(pool.Config{
			ConnectTimeout: opts.cfg.ConnectTimeout,
			IdleTimeout:    opts.cfg.PooledIdleTimeout,
			MaxIdlePerHost: opts.cfg.MaxIdlePerHost,
			TLSConfig:      opts.tlsConfig,
			Proxy:          opts.cfg.Proxy,
			Timer:          client.timer.Get,
			Logger:         client.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring pool: %w", err)
		}
		client.pool = p
	}

	return client, nil
}

// Close rejects new requests, closes the pool and stops the timer unless it
// was supplied through [WithTimer]. It is safe to call more than once.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.sched.shutdown.Store(true)

	if err := c.pool.Close(); err != nil {
		c.logger.Warn("closing connection pool", "error", err)
	}
	c.timer.Close()

	c.logger.Debug("client closed", "in_flight", c.sched.running())
}

func (c *Client) IsClosed() bool { return c.closed.Load() }

// Config returns the validated configuration.
func (c *Client) Config() Config { return c.cfg }

// ExecuteRequest runs req and resolves to the final response.
func (c *Client) ExecuteRequest(ctx context.Context, req *message.Request) *Future[*message.Response] {
	return Execute[*message.Response](ctx, c, req, responseHandler{})
}

// Do will fire the request and wait for it, and write the response to the
// given dest object if any.
func (c *Client) Do(ctx context.Context, req *message.Request, expCode int, opts ...DoOption) error {
	var settings doOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return err
		}
	}

	resp, err := c.ExecuteRequest(ctx, req).Get(ctx)
	if err != nil {
		return fmt.Errorf("exec request: %w", err)
	}

	if resp.StatusCode != expCode {
		return unexpectedStatus(resp)
	}

	if settings.responseBody != nil {
		d := json.NewDecoder(bytes.NewReader(resp.Body))

		if settings.useJSONNum {
			d.UseNumber()
		}

		if err := d.Decode(settings.responseBody); err != nil {
			return fmt.Errorf("decoding body: %w", err)
		}
	}

	return nil
}

// DownloadAsync streams the response body of req to destPath. A resumed
// download also accepts 206 Partial Content and 416 for a file that is
// already complete. When WithSkipExisting applies, the returned Future is
// already resolved.
func (c *Client) DownloadAsync(ctx context.Context, req *message.Request, expCode int, destPath string, opts ...DownloadOption) (*Future[*DownloadResult], error) {
	h, err := download.New(destPath, c.logger, opts...)
	if err != nil {
		return nil, err
	}

	if h.Skip() {
		f := newFuture[*DownloadResult](uuid.NewString(), func(error) {})
		f.claim()
		f.complete(&DownloadResult{Path: destPath, Skipped: true}, nil)
		return f, nil
	}

	return Execute[*DownloadResult](ctx, c, req, &downloadHandler{Handler: h, expCode: expCode}), nil
}

// Download executes a request that's intended to stream the response body
// to destPath and waits for it.
func (c *Client) Download(ctx context.Context, req *message.Request, expCode int, destPath string, opts ...DownloadOption) (*DownloadResult, error) {
	f, err := c.DownloadAsync(ctx, req, expCode, destPath, opts...)
	if err != nil {
		return nil, err
	}

	res, err := f.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	return res, nil
}

// Request builds a *message.Request with the provided information.
// Content-Type defaults to `application/json` when the request has a body.
func (c *Client) Request(reqURL *url.URL, method string, opts ...RequestOption) (*message.Request, error) {
	return Request(reqURL, method, opts...)
}

// URL creates a url.URL for use in Request.
// It's just a convenience method that wraps the public URL func.
func (c *Client) URL(scheme, host, path string, opts ...URLOption) *url.URL {
	return URL(scheme, host, path, opts...)
}

// downloadHandler checks the status before handing the response to the
// download handler.
type downloadHandler struct {
	*download.Handler
	expCode int
}

func (h *downloadHandler) OnCompleted(resp *message.Response) (*DownloadResult, error) {
	accepted := resp.StatusCode == h.expCode
	if h.Offset() > 0 {
		accepted = accepted ||
			resp.StatusCode == http.StatusPartialContent ||
			resp.StatusCode == http.StatusRequestedRangeNotSatisfiable
	}
	if !accepted {
		return nil, unexpectedStatus(resp)
	}

	return h.Handler.OnCompleted(resp)
}

func unexpectedStatus(resp *message.Response) error {
	b := resp.Body
	if len(b) > maxErrBodySize {
		b = b[:maxErrBodySize]
	}

	err := ErrUnexpectedStatusCode
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusProxyAuthRequired {
		err = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		Body:       string(b),
		Err:        err,
	}
}

// Request instantiates a *message.Request with the provided information.
// Content-Type defaults to `application/json` if unspecified via
// WithContentType and the request has a body.
func Request(reqURL *url.URL, method string, opts ...RequestOption) (*message.Request, error) {
	var settings requestOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return nil, err
		}
	}

	b := message.NewBuilderURL(method, reqURL)

	switch {
	case settings.body != nil:
		b.Body(settings.body)
	case settings.payload != nil:
		var payload bytes.Buffer
		if err := json.NewEncoder(&payload).Encode(settings.payload); err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		b.Body(body.NewBytes(payload.Bytes()))
	}

	for _, cookie := range settings.cookies {
		b.Cookie(cookie)
	}

	if settings.body != nil || settings.payload != nil {
		contentType := "application/json"
		if settings.contentType != nil {
			contentType = *settings.contentType
		}
		b.SetHeader("Content-Type", contentType)
	} else if settings.contentType != nil {
		b.SetHeader("Content-Type", *settings.contentType)
	}

	for k, v := range settings.headers {
		for _, element := range v {
			b.AddHeader(k, element)
		}
	}

	if settings.realm != nil {
		b.Realm(settings.realm)
	}
	if settings.virtualHost != "" {
		b.VirtualHost(settings.virtualHost)
	}
	if settings.rangeOffset > 0 {
		b.RangeOffset(settings.rangeOffset)
	}
	if settings.followRedirect != nil {
		b.FollowRedirect(*settings.followRedirect)
	}
	if settings.timeout > 0 {
		b.Timeout(settings.timeout)
	}

	req, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	return req, nil
}

// URL creates a url.URL for use in Request.
func URL(scheme, host, path string, opts ...URLOption) *url.URL {
	var settings urlOpts
	for _, opt := range opts {
		opt(&settings)
	}

	if settings.port != nil {
		host = fmt.Sprintf("%s:%d", host, *settings.port)
	}

	endpoint := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   path,
	}

	if settings.queryStrings != nil {
		queryParams := url.Values{}
		for k, v := range settings.queryStrings {
			queryParams.Add(k, v)
		}

		endpoint.RawQuery = queryParams.Encode()
	}

	return &endpoint
}
