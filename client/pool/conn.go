package pool

import (
	"bufio"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/adamwoolhether/asynchttp/client/timer"
)

// conn is an HTTP/1.1 connection owned by a Manager.
type conn struct {
	key     string
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	// proxied marks plain-HTTP requests sent through an HTTP proxy, which
	// need the absolute request form.
	proxied bool

	idle   atomic.Int64 // read idle timeout in nanoseconds
	uses   atomic.Int32
	closed atomic.Bool

	// reclaim is the pending idle-reclaim timeout while pooled.
	reclaim timer.Timeout
}

func newConn(key string, nc net.Conn, proxied bool) *conn {
	c := &conn{key: key, netConn: nc, proxied: proxied}
	c.br = bufio.NewReader(deadlineReader{c})
	c.bw = bufio.NewWriter(nc)
	return c
}

func (c *conn) WriteRequest(req *http.Request) error {
	c.uses.Add(1)

	var err error
	if c.proxied {
		err = req.WriteProxy(c.bw)
	} else {
		err = req.Write(c.bw)
	}
	if err != nil {
		return err
	}
	return c.bw.Flush()
}

func (c *conn) ReadResponse(req *http.Request) (*http.Response, error) {
	return http.ReadResponse(c.br, req)
}

func (c *conn) SetReadIdleTimeout(d time.Duration) {
	c.idle.Store(int64(d))
	if d <= 0 {
		_ = c.netConn.SetReadDeadline(time.Time{})
	}
}

func (c *conn) Reused() bool { return c.uses.Load() > 1 }

func (c *conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

// deadlineReader pushes the read deadline forward before every read, so the
// idle timeout bounds the gap between bytes rather than the whole response.
type deadlineReader struct{ c *conn }

func (r deadlineReader) Read(p []byte) (int, error) {
	if d := time.Duration(r.c.idle.Load()); d > 0 {
		if err := r.c.netConn.SetReadDeadline(time.Now().Add(d)); err != nil {
			return 0, err
		}
	}
	return r.c.netConn.Read(p)
}
