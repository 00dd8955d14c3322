package client

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/adamwoolhether/asynchttp/client/message"
	"github.com/adamwoolhether/asynchttp/client/realm"
)

// authorization renders the header value a realm contributes to an
// attempt. Basic credentials go out only when preemptive; Digest only once
// a challenge has been answered.
func authorization(r *realm.Realm) (string, error) {
	if r == nil {
		return "", nil
	}
	if r.Scheme() == realm.SchemeBasic && !r.UsePreemptiveAuth() {
		return "", nil
	}
	return realm.AuthorizationHeader(r)
}

// challenge answers a 401 or 407 with a replayed request. It reports false
// when resp is not an answerable challenge, leaving it to the response
// filters and the caller.
func (e *execution[T]) challenge(req *message.Request, resp *message.Response) (*message.Request, bool, error) {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if e.authTried || e.prototype == nil {
			return nil, false, nil
		}
		line := pickChallenge(resp.Header.Values("WWW-Authenticate"))
		if line == "" {
			return nil, false, nil
		}

		r, err := realm.NewFrom(e.prototype).
			ParseWWWAuthenticate(line).
			URI(req.URI()).
			Method(req.Method()).
			UsePreemptiveAuth(true).
			Build()
		if err != nil {
			return nil, false, fmt.Errorf("answering challenge: %w", err)
		}

		next, err := req.ToBuilder().Realm(r).Build()
		if err != nil {
			return nil, false, err
		}
		e.authTried = true
		e.logger.Debug("answering auth challenge", "scheme", r.Scheme().String(), "realm", r.RealmName())

		return next, true, nil

	case http.StatusProxyAuthRequired:
		if e.proxyAuthTried || e.c.proxyRealm == nil {
			return nil, false, nil
		}
		line := pickChallenge(resp.Header.Values("Proxy-Authenticate"))
		if line == "" {
			return nil, false, nil
		}

		r, err := realm.NewFrom(e.c.proxyRealm).
			ParseProxyAuthenticate(line).
			URI(req.URI()).
			Method(req.Method()).
			UseAbsoluteURI(true).
			UsePreemptiveAuth(true).
			Build()
		if err != nil {
			return nil, false, fmt.Errorf("answering proxy challenge: %w", err)
		}
		e.proxyRealm = r
		e.proxyAuthTried = true
		e.logger.Debug("answering proxy auth challenge", "scheme", r.Scheme().String(), "realm", r.RealmName())

		return req, true, nil
	}

	return nil, false, nil
}

// pickChallenge prefers a Digest challenge over a Basic one. Other schemes
// are not answered.
func pickChallenge(lines []string) string {
	var basic string
	for _, l := range lines {
		scheme, _, _ := strings.Cut(strings.TrimSpace(l), " ")
		switch {
		case strings.EqualFold(scheme, "Digest"):
			return l
		case strings.EqualFold(scheme, "Basic") && basic == "":
			basic = l
		}
	}
	return basic
}
