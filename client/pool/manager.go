package pool

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/adamwoolhether/asynchttp/client/timer"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultMaxIdlePerHost = 8
)

// Config tunes a Manager. Zero values select the defaults.
type Config struct {
	ConnectTimeout time.Duration
	// IdleTimeout closes pooled connections left unused this long.
	// Negative disables reclaim.
	IdleTimeout time.Duration
	// MaxIdlePerHost caps pooled connections per target. Negative disables
	// pooling.
	MaxIdlePerHost int
	TLSConfig      *tls.Config
	Proxy          *Proxy
	// Timer schedules idle reclaim. It is resolved lazily on first release.
	Timer  func() timer.Timer
	Logger *slog.Logger
}

// Manager is the default Pool.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	dialer *net.Dialer

	mu     sync.Mutex
	idle   map[string][]*conn
	closed bool
}

// NewManager returns a Manager for cfg.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.MaxIdlePerHost == 0 {
		cfg.MaxIdlePerHost = defaultMaxIdlePerHost
	}
	if cfg.Timer == nil {
		shared := timer.NewShared(nil)
		cfg.Timer = shared.Get
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if p := cfg.Proxy; p != nil {
		if p.Type != ProxyHTTP && p.Type != ProxySOCKS5 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedProxy, p.Type)
		}
		if p.Addr == "" {
			return nil, errors.New("proxy address must not be empty")
		}
	}

	m := &Manager{
		cfg:    cfg,
		logger: cfg.Logger,
		dialer: &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second},
		idle:   make(map[string][]*conn),
	}

	return m, nil
}

// Lease returns a pooled connection for target, or dials a new one.
func (m *Manager) Lease(ctx context.Context, target Target, virtualHost string) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := m.key(target, virtualHost)
	if c := m.takeIdle(key); c != nil {
		m.logger.Debug("pool: reusing connection", "target", target.String())
		return c, nil
	}

	return m.dial(ctx, key, target, virtualHost)
}

// Release pools c for reuse, or closes it when the pool is full or closed.
func (m *Manager) Release(c Conn) {
	pc, ok := c.(*conn)
	if !ok {
		_ = c.Close()
		return
	}
	pc.SetReadIdleTimeout(0)

	m.mu.Lock()
	if m.closed || m.cfg.MaxIdlePerHost < 0 || len(m.idle[pc.key]) >= m.cfg.MaxIdlePerHost {
		m.mu.Unlock()
		m.closeConn(pc)
		return
	}
	pc.reclaim = nil
	if m.cfg.IdleTimeout > 0 {
		pc.reclaim = m.cfg.Timer().AfterFunc(m.cfg.IdleTimeout, func() { m.reclaim(pc) })
	}
	m.idle[pc.key] = append(m.idle[pc.key], pc)
	m.mu.Unlock()
}

func (m *Manager) Discard(c Conn) {
	if pc, ok := c.(*conn); ok {
		m.closeConn(pc)
		return
	}
	_ = c.Close()
}

// Idle returns the number of pooled connections.
func (m *Manager) Idle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, conns := range m.idle {
		n += len(conns)
	}
	return n
}

// Close closes every pooled connection. Leased connections are closed when
// they come back.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	idle := m.idle
	m.idle = make(map[string][]*conn)
	m.mu.Unlock()

	var errs []error
	for _, conns := range idle {
		for _, c := range conns {
			if c.reclaim != nil {
				c.reclaim.Cancel()
			}
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) key(target Target, virtualHost string) string {
	return target.String() + "|" + virtualHost
}

func (m *Manager) takeIdle(key string) *conn {
	var expired []*conn
	defer func() {
		for _, c := range expired {
			m.closeConn(c)
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	conns := m.idle[key]
	for len(conns) > 0 {
		c := conns[len(conns)-1]
		conns = conns[:len(conns)-1]
		m.idle[key] = conns
		if c.reclaim != nil && !c.reclaim.Cancel() {
			// Its reclaim already fired; it will not find c in the pool.
			expired = append(expired, c)
			continue
		}
		return c
	}
	return nil
}

// reclaim closes pc if it is still sitting in the pool.
func (m *Manager) reclaim(pc *conn) {
	m.mu.Lock()
	conns := m.idle[pc.key]
	found := false
	for i, c := range conns {
		if c == pc {
			m.idle[pc.key] = append(conns[:i], conns[i+1:]...)
			found = true
			break
		}
	}
	m.mu.Unlock()

	if found {
		m.logger.Debug("pool: reclaiming idle connection", "key", pc.key)
		m.closeConn(pc)
	}
}

func (m *Manager) closeConn(pc *conn) {
	if err := pc.Close(); err != nil {
		m.logger.Debug("pool: closing connection", "key", pc.key, "error", err)
	}
}

func (m *Manager) dial(ctx context.Context, key string, target Target, virtualHost string) (*conn, error) {
	p := m.cfg.Proxy

	var (
		nc      net.Conn
		err     error
		proxied bool
	)
	switch {
	case p == nil:
		nc, err = m.dialer.DialContext(ctx, "tcp", target.Addr)
	case p.Type == ProxySOCKS5:
		nc, err = m.dialSOCKS5(ctx, p, target.Addr)
	default:
		nc, err = m.dialer.DialContext(ctx, "tcp", p.Addr)
		if err == nil && target.Scheme == "https" {
			err = m.connect(ctx, nc, p, target.Addr)
		}
		proxied = target.Scheme != "https"
	}
	if err != nil {
		if nc != nil {
			_ = nc.Close()
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	if target.Scheme == "https" {
		tc, err := m.handshake(ctx, nc, target, virtualHost)
		if err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("tls handshake %s: %w", target, err)
		}
		nc = tc
	}

	m.logger.Debug("pool: dialed connection", "target", target.String(), "proxy", p != nil)

	return newConn(key, nc, proxied), nil
}

func (m *Manager) dialSOCKS5(ctx context.Context, p *Proxy, addr string) (net.Conn, error) {
	var auth *proxy.Auth
	if p.Username != "" || p.Password != "" {
		auth = &proxy.Auth{User: p.Username, Password: p.Password}
	}

	d, err := proxy.SOCKS5("tcp", p.Addr, auth, m.dialer)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", addr)
	}
	return d.Dial("tcp", addr)
}

// connect opens a CONNECT tunnel to addr through an HTTP proxy.
func (m *Manager) connect(ctx context.Context, nc net.Conn, p *Proxy, addr string) error {
	stop := context.AfterFunc(ctx, func() { _ = nc.SetDeadline(time.Now()) })
	defer stop()

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if p.Username != "" || p.Password != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(p.Username + ":" + p.Password))
		req.Header.Set("Proxy-Authorization", "Basic "+cred)
	}
	if err := req.Write(nc); err != nil {
		return fmt.Errorf("%w: %w", ErrProxyConnect, err)
	}

	br := bufio.NewReader(nc)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProxyConnect, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrProxyConnect, resp.Status)
	}
	if br.Buffered() > 0 {
		return fmt.Errorf("%w: unexpected data after CONNECT response", ErrProxyConnect)
	}

	return ctx.Err()
}

func (m *Manager) handshake(ctx context.Context, nc net.Conn, target Target, virtualHost string) (*tls.Conn, error) {
	var cfg *tls.Config
	if m.cfg.TLSConfig != nil {
		cfg = m.cfg.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	cfg.NextProtos = []string{"http/1.1"}
	if cfg.ServerName == "" {
		host := virtualHost
		if host == "" {
			host = target.Addr
		}
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		cfg.ServerName = host
	}

	tc := tls.Client(nc, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tc, nil
}
