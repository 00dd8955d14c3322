package message

import (
	"net/http"
	"net/textproto"
	"strings"
)

// Headers is an ordered, multi-valued header list. Names are canonicalized
// and lookups are case-insensitive; insertion order is preserved when the
// headers are written. The zero value is empty and ready to read.
type Headers struct {
	fields []field
}

type field struct {
	name  string
	value string
}

// Get returns the first value for name.
func (h Headers) Get(name string) string {
	name = textproto.CanonicalMIMEHeaderKey(name)
	for _, f := range h.fields {
		if f.name == name {
			return f.value
		}
	}
	return ""
}

// Values returns every value for name in insertion order.
func (h Headers) Values(name string) []string {
	name = textproto.CanonicalMIMEHeaderKey(name)
	var vals []string
	for _, f := range h.fields {
		if f.name == name {
			vals = append(vals, f.value)
		}
	}
	return vals
}

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	name = textproto.CanonicalMIMEHeaderKey(name)
	for _, f := range h.fields {
		if f.name == name {
			return true
		}
	}
	return false
}

// Len is the number of name/value pairs.
func (h Headers) Len() int { return len(h.fields) }

// Each calls fn for every pair in insertion order.
func (h Headers) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// HTTPHeader converts to an http.Header. Values for a name keep their order.
func (h Headers) HTTPHeader() http.Header {
	hh := make(http.Header, len(h.fields))
	for _, f := range h.fields {
		hh[f.name] = append(hh[f.name], f.value)
	}
	return hh
}

func (h Headers) String() string {
	var sb strings.Builder
	for _, f := range h.fields {
		sb.WriteString(f.name)
		sb.WriteString(": ")
		sb.WriteString(f.value)
		sb.WriteString("\r\n")
	}
	return sb.String()
}

func (h Headers) clone() Headers {
	if h.fields == nil {
		return Headers{}
	}
	return Headers{fields: append([]field(nil), h.fields...)}
}

func (h *Headers) add(name, value string) {
	h.fields = append(h.fields, field{name: textproto.CanonicalMIMEHeaderKey(name), value: value})
}

// set replaces all values of name, keeping the position of the first one.
func (h *Headers) set(name, value string) {
	name = textproto.CanonicalMIMEHeaderKey(name)
	out := h.fields[:0:0]
	replaced := false
	for _, f := range h.fields {
		if f.name != name {
			out = append(out, f)
			continue
		}
		if !replaced {
			out = append(out, field{name: name, value: value})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, field{name: name, value: value})
	}
	h.fields = out
}

func (h *Headers) del(name string) {
	name = textproto.CanonicalMIMEHeaderKey(name)
	out := h.fields[:0:0]
	for _, f := range h.fields {
		if f.name != name {
			out = append(out, f)
		}
	}
	h.fields = out
}
