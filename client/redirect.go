package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/adamwoolhether/asynchttp/client/message"
)

// redirect builds the request that follows resp. A nil request with a nil
// error means resp carries no Location and is final.
func (e *execution[T]) redirect(req *message.Request, resp *message.Response) (*message.Request, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, nil
	}

	e.redirects++
	if e.redirects > e.c.cfg.MaxRedirects {
		return nil, fmt.Errorf("%w: %d", ErrMaxRedirectsExceeded, e.c.cfg.MaxRedirects)
	}

	cur := req.URI()
	target, err := cur.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidLocation, loc, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocation, loc)
	}

	b := req.ToBuilder().URI(target)

	if method := redirectMethod(resp.StatusCode, req.Method(), e.c.cfg.Strict302); method != req.Method() {
		b.Method(method).
			Body(nil).
			RemoveHeader("Content-Type").
			RemoveHeader("Content-Length").
			RemoveHeader("Transfer-Encoding")
	}

	if isSameHost(e.origin, target) || e.c.cfg.CrossHostCredentials {
		e.prototype = e.credentials
		b.Realm(e.prototype)
	} else {
		// Challenges from the new host must not be answered either.
		e.prototype = nil
		b.Realm(nil).
			VirtualHost("").
			RemoveHeader("Authorization").
			RemoveHeader("Cookie")
	}

	next, err := b.Build()
	if err != nil {
		return nil, err
	}
	e.authTried = false

	e.logger.Debug("following redirect", "status", resp.StatusCode, "from", cur.String(), "to", target.String(), "count", e.redirects)

	return next, nil
}

// redirectMethod applies the method rewrite rules: 303 always becomes GET,
// 301/302 become GET unless strict, 307/308 keep the method.
func redirectMethod(status int, method string, strict302 bool) string {
	switch status {
	case http.StatusSeeOther:
		if method != http.MethodHead {
			return http.MethodGet
		}
	case http.StatusMovedPermanently, http.StatusFound:
		if !strict302 && method != http.MethodGet && method != http.MethodHead {
			return http.MethodGet
		}
	}
	return method
}

func isSameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname()) &&
		effectivePort(a) == effectivePort(b)
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}
