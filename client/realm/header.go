package realm

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// AuthorizationHeader renders the Authorization (or Proxy-Authorization)
// value for r. Digest realms must be resolved; an unresolved Digest realm
// yields an empty value since no challenge has been answered yet.
func AuthorizationHeader(r *Realm) (string, error) {
	switch r.scheme {
	case SchemeBasic:
		return basicHeader(r), nil
	case SchemeDigest:
		if !r.Resolved() {
			return "", nil
		}
		return digestHeader(r), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownScheme, r.scheme)
	}
}

func basicHeader(r *Realm) string {
	cred := r.principal + ":" + r.password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(cred))
}

func digestHeader(r *Realm) string {
	var sb strings.Builder
	sb.WriteString("Digest ")
	appendQuoted(&sb, "username", r.principal, false)
	appendQuoted(&sb, "realm", r.realmName, true)
	appendQuoted(&sb, "nonce", r.nonce, true)
	appendQuoted(&sb, "uri", DigestURI(r.uri, r.useAbsoluteURI, r.omitQuery), true)
	if r.algorithm != "" {
		appendToken(&sb, "algorithm", r.algorithm)
	}
	appendQuoted(&sb, "response", r.response, true)
	if r.qop != "" {
		appendToken(&sb, "qop", r.qop)
		appendToken(&sb, "nc", r.nc)
		appendQuoted(&sb, "cnonce", r.cnonce, true)
	}
	if r.opaque != "" {
		appendQuoted(&sb, "opaque", r.opaque, true)
	}
	return sb.String()
}

func appendQuoted(sb *strings.Builder, name, value string, sep bool) {
	if sep {
		sb.WriteString(", ")
	}
	sb.WriteString(name)
	sb.WriteString(`="`)
	sb.WriteString(strings.ReplaceAll(value, `"`, `\"`))
	sb.WriteByte('"')
}

func appendToken(sb *strings.Builder, name, value string) {
	sb.WriteString(", ")
	sb.WriteString(name)
	sb.WriteByte('=')
	sb.WriteString(value)
}
