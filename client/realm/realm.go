// Package realm computes HTTP authentication credentials for the client.
//
// A prototype [Realm] carries the caller's principal, password and scheme.
// When a server answers with a 401 or 407 challenge, the engine derives a
// new Realm from the prototype plus the challenge parameters through a
// [Builder]; for Digest challenges the builder computes the RFC 2617
// response value once, at build time.
package realm

import (
	"fmt"
	"net/url"
)

// Scheme identifies an HTTP authentication scheme.
type Scheme int

const (
	SchemeBasic Scheme = iota + 1
	SchemeDigest
	SchemeNTLM
	SchemeSPNEGO
	SchemeKerberos
)

func (s Scheme) String() string {
	switch s {
	case SchemeBasic:
		return "Basic"
	case SchemeDigest:
		return "Digest"
	case SchemeNTLM:
		return "NTLM"
	case SchemeSPNEGO:
		return "Negotiate"
	case SchemeKerberos:
		return "Kerberos"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

const (
	// DefaultNC is the nonce-count sent with every digest response.
	// It is never incremented across requests sharing a nonce.
	DefaultNC = "00000001"

	defaultMethod   = "GET"
	defaultNTLMHost = "localhost"
)

// Realm is the resolved authentication context attached to a request.
// It is immutable; use [NewFrom] to derive a modified copy.
type Realm struct {
	principal      string
	password       string
	scheme         Scheme
	realmName      string
	nonce          string
	algorithm      string
	response       string
	opaque         string
	qop            string
	nc             string
	cnonce         string
	uri            *url.URL
	method         string
	preemptive     bool
	ntlmDomain     string
	ntlmHost       string
	useAbsoluteURI bool
	omitQuery      bool
}

func (r *Realm) Principal() string { return r.principal }
func (r *Realm) Password() string  { return r.password }
func (r *Realm) Scheme() Scheme    { return r.scheme }
func (r *Realm) RealmName() string { return r.realmName }
func (r *Realm) Nonce() string     { return r.nonce }
func (r *Realm) Algorithm() string { return r.algorithm }
func (r *Realm) Opaque() string    { return r.opaque }
func (r *Realm) QOP() string       { return r.qop }
func (r *Realm) NC() string        { return r.nc }
func (r *Realm) Method() string    { return r.method }

// Response is the computed digest response, empty unless the realm is resolved.
func (r *Realm) Response() string { return r.response }

// CNonce is the client nonce the response was computed with.
func (r *Realm) CNonce() string { return r.cnonce }

// URI returns a copy of the target URI the digest was computed for.
func (r *Realm) URI() *url.URL {
	if r.uri == nil {
		return nil
	}
	u := *r.uri
	return &u
}

func (r *Realm) UsePreemptiveAuth() bool { return r.preemptive }
func (r *Realm) NTLMDomain() string      { return r.ntlmDomain }
func (r *Realm) NTLMHost() string        { return r.ntlmHost }
func (r *Realm) UseAbsoluteURI() bool    { return r.useAbsoluteURI }
func (r *Realm) OmitQuery() bool         { return r.omitQuery }

// Resolved reports whether the realm carries server challenge material,
// in which case its digest fields are frozen.
func (r *Realm) Resolved() bool { return r.nonce != "" }

// String omits the password.
func (r *Realm) String() string {
	return fmt.Sprintf("Realm{principal=%q, scheme=%s, realm=%q, nonce=%q, algorithm=%q, response=%q, qop=%q, nc=%q, cnonce=%q, uri=%v, method=%q, useAbsoluteURI=%t, omitQuery=%t}",
		r.principal, r.scheme, r.realmName, r.nonce, r.algorithm, r.response, r.qop, r.nc, r.cnonce, r.uri, r.method, r.useAbsoluteURI, r.omitQuery)
}
