// Package filter defines the request and response filter pipeline.
//
// Request filters run once, in registration order, before the first network
// attempt of a logical request. Response filters run, in registration order,
// after every completed response; a response filter may ask the engine to
// replay a (possibly rewritten) request by returning a context built with
// [Context.Replay].
//
// A filter aborts the request by returning an error. The engine delivers
// that exact error to the caller's completion handler and never retries it.
package filter

import (
	"context"
	"errors"
	"fmt"

	"github.com/adamwoolhether/asynchttp/client/message"
)

var (
	// ErrNilContext is returned when a filter hands back a nil Context.
	// It signals a programming error in the filter.
	ErrNilContext = errors.New("filter returned a nil context")
	// ErrPanic wraps a panic raised inside a filter.
	ErrPanic = errors.New("filter panicked")
)

// Handler is the type-erased completion contract of a logical request.
// Filters may decorate it; the engine invokes exactly one of its methods
// once, unless the request is cancelled first.
type Handler interface {
	OnCompleted(resp *message.Response) (any, error)
	OnThrowable(err error)
}

// Context carries the state of one attempt through the pipeline. Contexts
// are values: the With and Replay methods return modified copies.
type Context struct {
	request  *message.Request
	handler  Handler
	response *message.Response
	replay   bool
}

// NewContext starts the pipeline for req.
func NewContext(req *message.Request, h Handler) *Context {
	return &Context{request: req, handler: h}
}

func (c *Context) Request() *message.Request { return c.request }
func (c *Context) Handler() Handler          { return c.handler }

// Response is the response the pipeline is running for, nil for request filters.
func (c *Context) Response() *message.Response { return c.response }

// ShouldReplay reports whether the engine must resend Request.
func (c *Context) ShouldReplay() bool { return c.replay }

// WithRequest returns a copy carrying req.
func (c *Context) WithRequest(req *message.Request) *Context {
	cpy := *c
	cpy.request = req
	return &cpy
}

// WithHandler returns a copy carrying h.
func (c *Context) WithHandler(h Handler) *Context {
	cpy := *c
	cpy.handler = h
	return &cpy
}

// WithResponse returns a copy carrying resp with the replay flag cleared.
func (c *Context) WithResponse(resp *message.Response) *Context {
	cpy := *c
	cpy.response = resp
	cpy.replay = false
	return &cpy
}

// Replay returns a copy asking the engine to abandon the current response
// and send req instead.
func (c *Context) Replay(req *message.Request) *Context {
	cpy := *c
	cpy.request = req
	cpy.replay = true
	return &cpy
}

// RequestFilter inspects or rewrites a request before it is sent.
type RequestFilter interface {
	FilterRequest(ctx context.Context, fc *Context) (*Context, error)
}

// ResponseFilter inspects a response and may ask for a replay.
type ResponseFilter interface {
	FilterResponse(ctx context.Context, fc *Context) (*Context, error)
}

// RequestFunc adapts a function to RequestFilter.
type RequestFunc func(ctx context.Context, fc *Context) (*Context, error)

func (f RequestFunc) FilterRequest(ctx context.Context, fc *Context) (*Context, error) {
	return f(ctx, fc)
}

// ResponseFunc adapts a function to ResponseFilter.
type ResponseFunc func(ctx context.Context, fc *Context) (*Context, error)

func (f ResponseFunc) FilterResponse(ctx context.Context, fc *Context) (*Context, error) {
	return f(ctx, fc)
}

// ApplyRequest runs filters in order. The first error stops the chain.
func ApplyRequest(ctx context.Context, filters []RequestFilter, fc *Context) (*Context, error) {
	for i, f := range filters {
		next, err := guard(i, func() (*Context, error) { return f.FilterRequest(ctx, fc) })
		if err != nil {
			return nil, err
		}
		fc = next
	}
	return fc, nil
}

// ApplyResponse runs filters in order. The first error stops the chain.
// Each filter sees the context returned by the previous one.
func ApplyResponse(ctx context.Context, filters []ResponseFilter, fc *Context) (*Context, error) {
	for i, f := range filters {
		next, err := guard(i, func() (*Context, error) { return f.FilterResponse(ctx, fc) })
		if err != nil {
			return nil, err
		}
		fc = next
	}
	return fc, nil
}

func guard(index int, fn func() (*Context, error)) (fc *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			fc, err = nil, fmt.Errorf("%w: filter %d: %v", ErrPanic, index, r)
		}
	}()

	fc, err = fn()
	if err != nil {
		return nil, err
	}
	if fc == nil {
		return nil, fmt.Errorf("%w: filter %d", ErrNilContext, index)
	}
	return fc, nil
}
