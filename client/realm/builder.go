package realm

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"net/url"
	"strings"
)

// emptyEntityMD5 is the hex MD5 of an empty entity body, used for qop=auth-int.
const emptyEntityMD5 = "d41d8cd98f00b204e9800998ecf8427e"

// Builder collects the fields of a [Realm]. A Builder is not safe for
// concurrent use; the Realm it builds is.
type Builder struct {
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

// New starts a prototype realm for the given credentials.
func New(scheme Scheme, principal, password string) *Builder {
	return &Builder{
		scheme:    scheme,
		principal: principal,
		password:  password,
		nc:        DefaultNC,
		method:    defaultMethod,
		ntlmHost:  defaultNTLMHost,
	}
}

// NewBasic starts a Basic prototype realm.
func NewBasic(principal, password string) *Builder {
	return New(SchemeBasic, principal, password)
}

// NewDigest starts a Digest prototype realm.
func NewDigest(principal, password string) *Builder {
	return New(SchemeDigest, principal, password)
}

// NewNTLM starts an NTLM prototype realm.
func NewNTLM(principal, password string) *Builder {
	return New(SchemeNTLM, principal, password)
}

// NewFrom copies every field of prototype except the computed response
// and client nonce, which are regenerated on Build when a nonce is present.
func NewFrom(prototype *Realm) *Builder {
	return &Builder{
		principal:      prototype.principal,
		password:       prototype.password,
		scheme:         prototype.scheme,
		realmName:      prototype.realmName,
		nonce:          prototype.nonce,
		algorithm:      prototype.algorithm,
		opaque:         prototype.opaque,
		qop:            prototype.qop,
		nc:             prototype.nc,
		uri:            prototype.URI(),
		method:         prototype.method,
		preemptive:     prototype.preemptive,
		ntlmDomain:     prototype.ntlmDomain,
		ntlmHost:       prototype.ntlmHost,
		useAbsoluteURI: prototype.useAbsoluteURI,
		omitQuery:      prototype.omitQuery,
	}
}

func (b *Builder) Principal(principal string) *Builder { b.principal = principal; return b }
func (b *Builder) Password(password string) *Builder   { b.password = password; return b }
func (b *Builder) Scheme(scheme Scheme) *Builder       { b.scheme = scheme; return b }
func (b *Builder) RealmName(name string) *Builder      { b.realmName = name; return b }
func (b *Builder) Nonce(nonce string) *Builder         { b.nonce = nonce; return b }
func (b *Builder) Algorithm(algorithm string) *Builder { b.algorithm = algorithm; return b }
func (b *Builder) Response(response string) *Builder   { b.response = response; return b }
func (b *Builder) Opaque(opaque string) *Builder       { b.opaque = opaque; return b }
func (b *Builder) NC(nc string) *Builder               { b.nc = nc; return b }
func (b *Builder) Method(method string) *Builder       { b.method = method; return b }

// QOP sets the quality of protection. Empty values are ignored.
func (b *Builder) QOP(qop string) *Builder {
	if qop != "" {
		b.qop = qop
	}
	return b
}

// CNonce pins the client nonce instead of generating a random one on Build.
func (b *Builder) CNonce(cnonce string) *Builder {
	b.cnonce = cnonce
	return b
}

// URI sets the target the digest is computed for. The URL is copied.
func (b *Builder) URI(u *url.URL) *Builder {
	if u == nil {
		b.uri = nil
		return b
	}
	cpy := *u
	b.uri = &cpy
	return b
}

func (b *Builder) UsePreemptiveAuth(v bool) *Builder { b.preemptive = v; return b }
func (b *Builder) UseAbsoluteURI(v bool) *Builder    { b.useAbsoluteURI = v; return b }
func (b *Builder) OmitQuery(v bool) *Builder         { b.omitQuery = v; return b }
func (b *Builder) NTLMDomain(domain string) *Builder { b.ntlmDomain = domain; return b }
func (b *Builder) NTLMHost(host string) *Builder     { b.ntlmHost = host; return b }

// ParseWWWAuthenticate applies the directives of a WWW-Authenticate header
// line. A non-empty nonce selects Digest, its absence Basic. When the server
// offers several qop values, auth is preferred over auth-int.
func (b *Builder) ParseWWWAuthenticate(headerLine string) *Builder {
	d := parseDirectives(headerLine)
	b.applyChallenge(d)
	if raw, ok := d["qop"]; ok {
		b.QOP(selectQOP(raw))
	}
	return b
}

// ParseProxyAuthenticate applies the directives of a Proxy-Authenticate
// header line. The qop directive is taken as sent.
func (b *Builder) ParseProxyAuthenticate(headerLine string) *Builder {
	d := parseDirectives(headerLine)
	b.applyChallenge(d)
	b.QOP(d["qop"])
	return b
}

func (b *Builder) applyChallenge(d map[string]string) {
	b.realmName = d["realm"]
	b.nonce = d["nonce"]
	b.opaque = d["opaque"]
	if b.nonce != "" {
		b.scheme = SchemeDigest
	} else {
		b.scheme = SchemeBasic
	}
	if alg := d["algorithm"]; alg != "" {
		b.algorithm = alg
	}
}

// Build validates the collected fields and, when a nonce is present,
// computes the client nonce and digest response.
func (b *Builder) Build() (*Realm, error) {
	if b.scheme == 0 {
		return nil, ErrUnknownScheme
	}

	r := &Realm{
		principal:      b.principal,
		password:       b.password,
		scheme:         b.scheme,
		realmName:      b.realmName,
		nonce:          b.nonce,
		algorithm:      b.algorithm,
		response:       b.response,
		opaque:         b.opaque,
		qop:            b.qop,
		nc:             b.nc,
		cnonce:         b.cnonce,
		uri:            b.uri,
		method:         b.method,
		preemptive:     b.preemptive,
		ntlmDomain:     b.ntlmDomain,
		ntlmHost:       b.ntlmHost,
		useAbsoluteURI: b.useAbsoluteURI,
		omitQuery:      b.omitQuery,
	}
	if r.nc == "" {
		r.nc = DefaultNC
	}
	if r.method == "" {
		r.method = defaultMethod
	}

	if r.nonce == "" {
		return r, nil
	}

	if r.cnonce == "" {
		cnonce, err := newCNonce()
		if err != nil {
			return nil, err
		}
		r.cnonce = cnonce
	}

	response, err := computeResponse(r)
	if err != nil {
		return nil, err
	}
	r.response = response

	return r, nil
}

// newCNonce hashes 8 random bytes through MD5.
func newCNonce() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}

// computeResponse is a pure function of the realm's credentials, challenge
// material, client nonce, method and digest URI.
func computeResponse(r *Realm) (string, error) {
	digestURI := DigestURI(r.uri, r.useAbsoluteURI, r.omitQuery)

	ha1, err := secretDigest(r)
	if err != nil {
		return "", err
	}
	ha2, err := dataDigest(r, digestURI)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(ha1)
	sb.WriteByte(':')
	sb.WriteString(r.nonce)
	sb.WriteByte(':')
	if r.qop == "auth" || r.qop == "auth-int" {
		sb.WriteString(r.nc)
		sb.WriteByte(':')
		sb.WriteString(r.cnonce)
		sb.WriteByte(':')
		sb.WriteString(r.qop)
		sb.WriteByte(':')
	}
	sb.WriteString(ha2)

	return md5Hex(sb.String()), nil
}

func secretDigest(r *Realm) (string, error) {
	ha1 := md5Hex(r.principal + ":" + r.realmName + ":" + r.password)

	switch r.algorithm {
	case "", "MD5":
		return ha1, nil
	case "MD5-sess":
		return md5Hex(ha1 + ":" + r.nonce + ":" + r.cnonce), nil
	default:
		return "", &UnsupportedAuthParameterError{Param: "algorithm", Value: r.algorithm}
	}
}

func dataDigest(r *Realm, digestURI string) (string, error) {
	switch r.qop {
	case "", "auth":
		return md5Hex(r.method + ":" + digestURI), nil
	case "auth-int":
		return md5Hex(r.method + ":" + digestURI + ":" + emptyEntityMD5), nil
	default:
		return "", &UnsupportedAuthParameterError{Param: "qop", Value: r.qop}
	}
}

// md5Hex digests the ISO-8859-1 encoding of s. Runes outside Latin-1 are
// replaced with '?'.
func md5Hex(s string) string {
	buf := make([]byte, 0, len(s))
	for _, c := range s {
		if c > 0xff {
			c = '?'
		}
		buf = append(buf, byte(c))
	}
	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:])
}

// selectQOP picks auth over auth-int from a comma separated server offer.
func selectQOP(raw string) string {
	var hasAuthInt bool
	for _, q := range strings.Split(raw, ",") {
		switch strings.TrimSpace(q) {
		case "auth":
			return "auth"
		case "auth-int":
			hasAuthInt = true
		}
	}
	if hasAuthInt {
		return "auth-int"
	}
	return ""
}
