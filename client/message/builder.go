package message

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/adamwoolhether/asynchttp/client/body"
	"github.com/adamwoolhether/asynchttp/client/realm"
)

var (
	ErrInvalidMethod = errors.New("invalid method")
	ErrInvalidURL    = errors.New("invalid url")
	ErrInvalidHeader = errors.New("invalid header")
)

// Builder accumulates the fields of a [Request]. Setters chain; the first
// invalid input is remembered and reported by Build. A Builder is not safe
// for concurrent use.
type Builder struct {
	method         string
	uri            *url.URL
	headers        Headers
	body           body.Source
	rangeOffset    int64
	virtualHost    string
	realm          *realm.Realm
	signer         SignatureCalculator
	followRedirect *bool
	timeout        time.Duration

	err error
}

// NewBuilder starts a request for method and rawURL.
func NewBuilder(method, rawURL string) *Builder {
	b := &Builder{method: method}
	u, err := url.Parse(rawURL)
	if err != nil {
		b.err = fmt.Errorf("%w: %w", ErrInvalidURL, err)
		return b
	}
	b.uri = u
	return b
}

// NewBuilderURL starts a request for method and u. The URL is copied.
func NewBuilderURL(method string, u *url.URL) *Builder {
	b := &Builder{method: method}
	if u == nil {
		b.err = fmt.Errorf("%w: nil url", ErrInvalidURL)
		return b
	}
	cpy := *u
	b.uri = &cpy
	return b
}

func (b *Builder) Method(method string) *Builder {
	b.method = method
	return b
}

// URL replaces the request target.
func (b *Builder) URL(rawURL string) *Builder {
	u, err := url.Parse(rawURL)
	if err != nil {
		b.fail(fmt.Errorf("%w: %w", ErrInvalidURL, err))
		return b
	}
	b.uri = u
	return b
}

// URI replaces the request target. The URL is copied.
func (b *Builder) URI(u *url.URL) *Builder {
	if u == nil {
		b.fail(fmt.Errorf("%w: nil url", ErrInvalidURL))
		return b
	}
	cpy := *u
	b.uri = &cpy
	return b
}

// AddHeader appends a value for name.
func (b *Builder) AddHeader(name, value string) *Builder {
	if b.checkHeader(name, value) {
		b.headers.add(name, value)
	}
	return b
}

// SetHeader replaces every value for name.
func (b *Builder) SetHeader(name, value string) *Builder {
	if b.checkHeader(name, value) {
		b.headers.set(name, value)
	}
	return b
}

// RemoveHeader drops every value for name.
func (b *Builder) RemoveHeader(name string) *Builder {
	b.headers.del(name)
	return b
}

// Headers appends every value of h.
func (b *Builder) Headers(h http.Header) *Builder {
	for name, vals := range h {
		for _, v := range vals {
			b.AddHeader(name, v)
		}
	}
	return b
}

// Cookie appends a cookie to the Cookie header.
func (b *Builder) Cookie(c *http.Cookie) *Builder {
	s := c.String()
	if s == "" {
		b.fail(fmt.Errorf("%w: invalid cookie %q", ErrInvalidHeader, c.Name))
		return b
	}
	// Cookie carries name=value only.
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	if existing := b.headers.Get("Cookie"); existing != "" {
		b.headers.set("Cookie", existing+"; "+s)
	} else {
		b.headers.add("Cookie", s)
	}
	return b
}

// Body sets the body source; nil removes the body.
func (b *Builder) Body(src body.Source) *Builder {
	b.body = src
	return b
}

// RangeOffset sets the offset a resumed transfer starts at.
func (b *Builder) RangeOffset(offset int64) *Builder {
	if offset < 0 {
		b.fail(fmt.Errorf("range offset %d must not be negative", offset))
		return b
	}
	b.rangeOffset = offset
	return b
}

func (b *Builder) VirtualHost(host string) *Builder {
	b.virtualHost = host
	return b
}

func (b *Builder) Realm(r *realm.Realm) *Builder {
	b.realm = r
	return b
}

func (b *Builder) SignatureCalculator(s SignatureCalculator) *Builder {
	b.signer = s
	return b
}

// FollowRedirect overrides the client's redirect policy for this request.
func (b *Builder) FollowRedirect(follow bool) *Builder {
	b.followRedirect = &follow
	return b
}

// Timeout overrides the client's request timeout for this request.
func (b *Builder) Timeout(d time.Duration) *Builder {
	if d < 0 {
		b.fail(fmt.Errorf("timeout %s must not be negative", d))
		return b
	}
	b.timeout = d
	return b
}

// Build returns the immutable request or the first recorded error.
func (b *Builder) Build() (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.method == "" {
		b.method = http.MethodGet
	}
	if !httpguts.ValidHeaderFieldName(b.method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, b.method)
	}
	if b.uri == nil {
		return nil, fmt.Errorf("%w: missing url", ErrInvalidURL)
	}
	if b.uri.Scheme != "http" && b.uri.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, b.uri.Scheme)
	}
	if b.uri.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, b.uri)
	}

	u := *b.uri
	r := &Request{
		method:      b.method,
		uri:         &u,
		headers:     b.headers.clone(),
		body:        b.body,
		rangeOffset: b.rangeOffset,
		virtualHost: b.virtualHost,
		realm:       b.realm,
		signer:      b.signer,
		timeout:     b.timeout,
	}
	if b.followRedirect != nil {
		v := *b.followRedirect
		r.followRedirect = &v
	}

	return r, nil
}

func (b *Builder) checkHeader(name, value string) bool {
	if !httpguts.ValidHeaderFieldName(name) {
		b.fail(fmt.Errorf("%w: name %q", ErrInvalidHeader, name))
		return false
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		b.fail(fmt.Errorf("%w: value for %q", ErrInvalidHeader, name))
		return false
	}
	return true
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
