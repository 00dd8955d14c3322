package realm

import (
	"net/url"
	"strings"
)

// parseDirectives splits a challenge line such as
//
//	Digest realm="api", nonce="abc", qop="auth,auth-int"
//
// into lower-cased directive names and unquoted values. Commas inside
// quoted strings do not terminate a value. A leading scheme token is skipped.
func parseDirectives(line string) map[string]string {
	d := make(map[string]string)
	line = strings.TrimSpace(line)
	if line == "" {
		return d
	}

	// Skip the scheme token when it is not itself a directive.
	if sp := strings.IndexAny(line, " \t"); sp > 0 && !strings.Contains(line[:sp], "=") {
		line = line[sp+1:]
	}

	for _, part := range splitTopLevel(line) {
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(part[:eq]))
		d[name] = unquote(strings.TrimSpace(part[eq+1:]))
	}

	return d
}

// splitTopLevel splits s on commas that are not inside a quoted string.
func splitTopLevel(s string) []string {
	var (
		parts   []string
		start   int
		quoted  bool
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
		if strings.Contains(v, `\`) {
			var sb strings.Builder
			for i := 0; i < len(v); i++ {
				if v[i] == '\\' && i+1 < len(v) {
					i++
				}
				sb.WriteByte(v[i])
			}
			v = sb.String()
		}
		return v
	}
	return strings.Trim(v, `"`)
}

// DigestURI renders the digest-uri directive for u. The absolute form is
// used for proxy digests; omitQuery strips the query before digesting.
func DigestURI(u *url.URL, useAbsoluteURI, omitQuery bool) string {
	if u == nil {
		return "/"
	}

	if useAbsoluteURI {
		cpy := *u
		cpy.Fragment = ""
		cpy.RawFragment = ""
		if omitQuery {
			cpy.RawQuery = ""
			cpy.ForceQuery = false
		}
		return cpy.String()
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if omitQuery || u.RawQuery == "" {
		return path
	}
	return path + "?" + u.RawQuery
}
