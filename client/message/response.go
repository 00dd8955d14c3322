package message

import (
	"net/http"
	"net/url"
)

// Response is a completed HTTP response with its body fully read.
type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Header     http.Header
	Body       []byte
	// URI is the target that produced this response, after redirects.
	URI *url.URL
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// IsRedirect reports whether the status is a followable redirect.
func (r *Response) IsRedirect() bool {
	switch r.StatusCode {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}
