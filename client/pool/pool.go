// Package pool leases HTTP/1.1 connections to the execution engine.
//
// The engine only sees the [Pool] and [Conn] interfaces: it leases a
// connection for a target, writes one request, reads one response, then
// either releases the connection for reuse or discards it. [Manager] is the
// default implementation, dialing TCP or TLS directly, through an HTTP proxy,
// or through a SOCKS5 proxy.
package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrPoolClosed       = errors.New("pool closed")
	ErrUnsupportedProxy = errors.New("unsupported proxy type")
	ErrProxyConnect     = errors.New("proxy connect failed")
)

// Pool hands out connections. Lease must never give the same connection to
// two callers at once.
type Pool interface {
	Lease(ctx context.Context, target Target, virtualHost string) (Conn, error)
	// Release returns a connection that is fit for reuse.
	Release(c Conn)
	// Discard closes a connection that must not be reused.
	Discard(c Conn)
	Close() error
}

// Conn is one leased connection.
type Conn interface {
	WriteRequest(req *http.Request) error
	ReadResponse(req *http.Request) (*http.Response, error)
	// SetReadIdleTimeout bounds the wait for each read. Zero disables it.
	SetReadIdleTimeout(d time.Duration)
	// Reused reports whether the connection served an earlier request.
	Reused() bool
	Close() error
}

// Target identifies the origin a connection talks to.
type Target struct {
	Scheme string
	// Addr is host:port.
	Addr string
}

// TargetFor derives the Target of u, filling in the default port.
func TargetFor(u *url.URL) Target {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return Target{Scheme: u.Scheme, Addr: net.JoinHostPort(host, port)}
}

func (t Target) String() string { return t.Scheme + "://" + t.Addr }

// ProxyType selects how the Manager reaches a proxy.
type ProxyType int

const (
	ProxyHTTP ProxyType = iota + 1
	ProxySOCKS5
)

func (p ProxyType) String() string {
	switch p {
	case ProxyHTTP:
		return "http"
	case ProxySOCKS5:
		return "socks5"
	default:
		return fmt.Sprintf("ProxyType(%d)", int(p))
	}
}

// Proxy configures an outbound proxy. Username and Password are sent as
// Basic credentials on HTTP CONNECT and as SOCKS5 user/password auth.
type Proxy struct {
	Type     ProxyType `json:"type" validate:"oneof=1 2"`
	Addr     string    `json:"addr" validate:"required,hostname_port"`
	Username string    `json:"username"`
	Password string    `json:"-"`
}
