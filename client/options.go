package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/asynchttp/client/body"
	"github.com/adamwoolhether/asynchttp/client/filter"
	"github.com/adamwoolhether/asynchttp/client/message"
	"github.com/adamwoolhether/asynchttp/client/pool"
	"github.com/adamwoolhether/asynchttp/client/realm"
	"github.com/adamwoolhether/asynchttp/client/throttle"
	"github.com/adamwoolhether/asynchttp/client/timer"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	cfg Config

	logger          *slog.Logger
	requestFilters  []filter.RequestFilter
	responseFilters []filter.ResponseFilter
	pool            pool.Pool
	timer           timer.Timer
	tlsConfig       *tls.Config
	realm           *realm.Realm
	proxyRealm      *realm.Realm
	signer          message.SignatureCalculator
	tracer          trace.Tracer
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithRequestTimeout bounds every logical request, redirects and replays
// included. Zero disables the timeout. [message.Builder.Timeout] overrides
// it per request.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.cfg.RequestTimeout = d
		return nil
	}
}

// WithReadIdleTimeout fails a request when no response bytes arrive for d.
func WithReadIdleTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.cfg.ReadIdleTimeout = d
		return nil
	}
}

// WithConnectTimeout bounds dialing a new connection.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.cfg.ConnectTimeout = d
		return nil
	}
}

// WithPooledIdleTimeout closes pooled connections that stay unused for d.
// It never affects in-flight requests.
func WithPooledIdleTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.cfg.PooledIdleTimeout = d
		return nil
	}
}

// WithMaxIdlePerHost caps pooled connections per target.
func WithMaxIdlePerHost(n int) Option {
	return func(o *options) error {
		o.cfg.MaxIdlePerHost = n
		return nil
	}
}

// WithFollowRedirects enables or disables following redirects. It is
// enabled by default.
func WithFollowRedirects(follow bool) Option {
	return func(o *options) error {
		o.cfg.FollowRedirects = follow
		return nil
	}
}

// WithMaxRedirects sets how many redirects a request may follow.
func WithMaxRedirects(n int) Option {
	return func(o *options) error {
		o.cfg.MaxRedirects = n
		return nil
	}
}

// WithStrict302 keeps the method of a non-GET request on 301 and 302
// instead of switching to GET.
func WithStrict302() Option {
	return func(o *options) error {
		o.cfg.Strict302 = true
		return nil
	}
}

// WithCrossHostCredentials keeps credentials and cookies when a redirect
// points at another host.
func WithCrossHostCredentials() Option {
	return func(o *options) error {
		o.cfg.CrossHostCredentials = true
		return nil
	}
}

// WithRequestFilters appends request filters, run in order before the
// first attempt of every request.
func WithRequestFilters(filters ...filter.RequestFilter) Option {
	return func(o *options) error {
		for i, f := range filters {
			if f == nil {
				return fmt.Errorf("request filter %d must not be nil", i)
			}
		}
		o.requestFilters = append(o.requestFilters, filters...)
		return nil
	}
}

// WithResponseFilters appends response filters, run in order after every
// response.
func WithResponseFilters(filters ...filter.ResponseFilter) Option {
	return func(o *options) error {
		for i, f := range filters {
			if f == nil {
				return fmt.Errorf("response filter %d must not be nil", i)
			}
		}
		o.responseFilters = append(o.responseFilters, filters...)
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.cfg.Throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithMaxConnections caps concurrent requests at max. A request waits up
// to wait for a permit and then fails with [ErrTooManyConnections].
func WithMaxConnections(max int, wait time.Duration) Option {
	return func(o *options) error {
		o.cfg.MaxConnections = max
		o.cfg.MaxConnectionsWait = wait
		return nil
	}
}

// WithPool replaces the default connection pool. The client closes it on
// [Client.Close].
func WithPool(p pool.Pool) Option {
	return func(o *options) error {
		if p == nil {
			return errors.New("pool must not be nil")
		}
		o.pool = p
		return nil
	}
}

// WithTimer supplies the timer driving timeouts. The client never stops a
// supplied timer.
func WithTimer(t timer.Timer) Option {
	return func(o *options) error {
		if t == nil {
			return errors.New("timer must not be nil")
		}
		o.timer = t
		return nil
	}
}

// WithProxy routes connections through p.
func WithProxy(p pool.Proxy) Option {
	return func(o *options) error {
		o.cfg.Proxy = &p
		return nil
	}
}

// WithProxyRealm answers 407 challenges from an HTTP proxy.
func WithProxyRealm(r *realm.Realm) Option {
	return func(o *options) error {
		if r == nil {
			return errors.New("proxy realm must not be nil")
		}
		o.proxyRealm = r
		return nil
	}
}

// WithTLSConfig sets the TLS configuration for https targets.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) error {
		o.tlsConfig = cfg
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.cfg.UserAgent = header
		return nil
	}
}

// WithRealm sets the realm used by requests that carry none.
func WithRealm(r *realm.Realm) Option {
	return func(o *options) error {
		if r == nil {
			return errors.New("realm must not be nil")
		}
		o.realm = r
		return nil
	}
}

// WithSignatureCalculator signs every attempt of requests that carry no
// calculator of their own.
func WithSignatureCalculator(s message.SignatureCalculator) Option {
	return func(o *options) error {
		if s == nil {
			return errors.New("signature calculator must not be nil")
		}
		o.signer = s
		return nil
	}
}

// WithTracer sets the tracer for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// DoOption is a functional option for [Client.Do].
type DoOption func(options *doOpts) error

type doOpts struct {
	responseBody any
	useJSONNum   bool
}

// WithDestination decodes the HTTP response body into bodyTemplate.
// bodyTemplate must be a pointer.
func WithDestination[T any](bodyTemplate *T) DoOption {
	return func(opts *doOpts) error {
		opts.responseBody = bodyTemplate

		return nil
	}
}

// WithJSONNumb tells the JSON decoder to use [json.Decoder.UseNumber],
// preserving number precision as [json.Number] instead of float64.
func WithJSONNumb() DoOption {
	return func(opts *doOpts) error {
		opts.useJSONNum = true

		return nil
	}
}

// RequestOption is a functional option for [Request].
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	payload        any
	body           body.Source
	contentType    *string
	cookies        []*http.Cookie
	headers        map[string][]string
	realm          *realm.Realm
	virtualHost    string
	rangeOffset    int64
	followRedirect *bool
	timeout        time.Duration
}

// WithPayload sets the JSON-encoded request body.
func WithPayload(body any) RequestOption {
	return func(opts *requestOpts) error {
		opts.payload = body

		return nil
	}
}

// WithBody streams the request body from src instead of a JSON payload.
func WithBody(src body.Source) RequestOption {
	return func(opts *requestOpts) error {
		if src == nil {
			return errors.New("body source must not be nil")
		}
		opts.body = src

		return nil
	}
}

// WithContentType overrides the default "application/json" Content-Type header.
func WithContentType(contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}

		opts.contentType = &contentType

		return nil
	}
}

// WithHeaders adds custom headers to the outgoing request.
func WithHeaders(headers map[string][]string) RequestOption {
	return func(opts *requestOpts) error {
		opts.headers = headers

		return nil
	}
}

// WithCookies attaches the given cookies to the outgoing request.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(opts *requestOpts) error {
		opts.cookies = cookies

		return nil
	}
}

// WithRequestRealm authenticates the request with r.
func WithRequestRealm(r *realm.Realm) RequestOption {
	return func(opts *requestOpts) error {
		opts.realm = r

		return nil
	}
}

// WithVirtualHost overrides the Host header and TLS server name.
func WithVirtualHost(host string) RequestOption {
	return func(opts *requestOpts) error {
		opts.virtualHost = host

		return nil
	}
}

// WithRangeOffset resumes the response at offset.
func WithRangeOffset(offset int64) RequestOption {
	return func(opts *requestOpts) error {
		if offset < 0 {
			return errors.New("range offset must not be negative")
		}
		opts.rangeOffset = offset

		return nil
	}
}

// WithRequestFollowRedirect overrides the client's redirect policy.
func WithRequestFollowRedirect(follow bool) RequestOption {
	return func(opts *requestOpts) error {
		opts.followRedirect = &follow

		return nil
	}
}

// WithTimeout overrides the client's request timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(opts *requestOpts) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		opts.timeout = d

		return nil
	}
}

// URLOption is a functional option for [URL].
type URLOption func(options *urlOpts)

type urlOpts struct {
	queryStrings map[string]string
	port         *int
}

// WithQueryStrings appends query parameters to the URL.
func WithQueryStrings(queryKV map[string]string) URLOption {
	return func(opts *urlOpts) {
		opts.queryStrings = queryKV
	}
}

// WithPort sets the port number on the URL's host.
func WithPort(port int) URLOption {
	return func(opts *urlOpts) {
		opts.port = &port
	}
}
