// Package message holds the immutable request and response values that
// flow through the client's execution engine and filter pipeline.
package message

import (
	"fmt"
	"net/url"
	"time"

	"github.com/adamwoolhether/asynchttp/client/body"
	"github.com/adamwoolhether/asynchttp/client/realm"
)

// SignatureCalculator signs a request before each network attempt. It
// returns a new request; the input is never modified.
type SignatureCalculator interface {
	Sign(req *Request) (*Request, error)
}

// SignatureFunc adapts a function to SignatureCalculator.
type SignatureFunc func(req *Request) (*Request, error)

func (f SignatureFunc) Sign(req *Request) (*Request, error) { return f(req) }

// Request is an immutable request description. Every transformation
// (filters, redirects, auth retries, range resumes) builds a new Request
// through [Request.ToBuilder].
type Request struct {
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
}

func (r *Request) Method() string { return r.method }

// URI returns a copy of the request target.
func (r *Request) URI() *url.URL {
	u := *r.uri
	return &u
}

// URL is the request target as a string.
func (r *Request) URL() string { return r.uri.String() }

// Headers returns the request headers. The value shares nothing with the
// request and can be read freely.
func (r *Request) Headers() Headers { return r.headers.clone() }

// Header returns the first value of the named header.
func (r *Request) Header(name string) string { return r.headers.Get(name) }

// Body is the body source, nil for requests without a body.
func (r *Request) Body() body.Source { return r.body }

// RangeOffset is the byte offset a resumed download starts at.
func (r *Request) RangeOffset() int64 { return r.rangeOffset }

// VirtualHost overrides the Host header and TLS server name when non-empty.
func (r *Request) VirtualHost() string { return r.virtualHost }

func (r *Request) Realm() *realm.Realm { return r.realm }

func (r *Request) SignatureCalculator() SignatureCalculator { return r.signer }

// FollowRedirect reports the per-request redirect override, if one is set.
func (r *Request) FollowRedirect() (follow bool, ok bool) {
	if r.followRedirect == nil {
		return false, false
	}
	return *r.followRedirect, true
}

// Timeout is the per-request timeout override, zero when unset.
func (r *Request) Timeout() time.Duration { return r.timeout }

func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.method, r.uri)
}

// ToBuilder starts a new request from r.
func (r *Request) ToBuilder() *Builder {
	b := &Builder{
		method:      r.method,
		uri:         r.URI(),
		headers:     r.headers.clone(),
		body:        r.body,
		rangeOffset: r.rangeOffset,
		virtualHost: r.virtualHost,
		realm:       r.realm,
		signer:      r.signer,
		timeout:     r.timeout,
	}
	if r.followRedirect != nil {
		v := *r.followRedirect
		b.followRedirect = &v
	}
	return b
}
