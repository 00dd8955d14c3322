package client

import (
	"fmt"

	"github.com/adamwoolhether/asynchttp/client/message"
)

// AsyncHandler receives the outcome of a logical request. Exactly one of
// its methods is invoked, once, after every replay and redirect has
// resolved, unless the request's Future is cancelled first.
//
// An error returned from OnCompleted fails the Future; OnThrowable is not
// called for it.
type AsyncHandler[T any] interface {
	OnCompleted(resp *message.Response) (T, error)
	OnThrowable(err error)
}

// ResumableHandler is implemented by handlers that resume an earlier
// transfer. AdjustRequestRange runs before any request filter and returns
// the request to send, usually with a range offset set.
type ResumableHandler interface {
	AdjustRequestRange(req *message.Request) (*message.Request, error)
}

// HandlerFuncs adapts a pair of functions to AsyncHandler. Nil funcs are
// skipped; a nil Completed yields the zero T.
type HandlerFuncs[T any] struct {
	Completed func(resp *message.Response) (T, error)
	Throwable func(err error)
}

func (h HandlerFuncs[T]) OnCompleted(resp *message.Response) (T, error) {
	if h.Completed == nil {
		var zero T
		return zero, nil
	}
	return h.Completed(resp)
}

func (h HandlerFuncs[T]) OnThrowable(err error) {
	if h.Throwable != nil {
		h.Throwable(err)
	}
}

// responseHandler hands back the response itself.
type responseHandler struct{}

func (responseHandler) OnCompleted(resp *message.Response) (*message.Response, error) {
	return resp, nil
}

func (responseHandler) OnThrowable(error) {}

// typedHandler erases T so filters can see and decorate the handler.
type typedHandler[T any] struct {
	h AsyncHandler[T]
}

func (t typedHandler[T]) OnCompleted(resp *message.Response) (any, error) {
	return t.h.OnCompleted(resp)
}

func (t typedHandler[T]) OnThrowable(err error) { t.h.OnThrowable(err) }

// asType converts a value produced by a possibly filter-decorated handler
// back to T.
func asType[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("handler produced %T, expected %T", v, zero)
	}
	return out, nil
}
