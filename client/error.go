package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/adamwoolhether/asynchttp/client/body"
	"github.com/adamwoolhether/asynchttp/client/throttle"
)

var (
	// ErrClientClosed fails requests executed after [Client.Close].
	ErrClientClosed = errors.New("client closed")
	// ErrMaxRedirectsExceeded fails a request that redirected more often
	// than the configured maximum.
	ErrMaxRedirectsExceeded = errors.New("maximum redirects exceeded")
	// ErrCancelled is reported by [Future.Get] and [Future.Err] after
	// [Future.Cancel]. Cancellation is a terminal outcome of its own: no
	// handler method is invoked.
	ErrCancelled = errors.New("request cancelled")
	// ErrTooManyConnections fails a request that waited longer than the
	// configured wait for a connection permit.
	ErrTooManyConnections = errors.New("too many connections")
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 407 Proxy Authentication Required.
	ErrAuthFailure = errors.New("auth failure")
	// ErrBodyNotReplayable fails a replay, redirect or auth retry whose body
	// source can only be read once.
	ErrBodyNotReplayable = body.ErrNotReplayable
	// ErrInvalidLocation fails a redirect whose Location cannot be followed.
	ErrInvalidLocation = errors.New("invalid redirect location")

	// Re-exported throttle errors.
	ErrThrottleWaitingFailed = throttle.ErrWaitingFailed
	ErrThrottleContextEnded  = throttle.ErrContextEnded
)

// UnexpectedStatusError is returned when the HTTP response status code
// does not match the expected value.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// TimeoutKind tells a whole-request timeout from a read idle timeout.
type TimeoutKind int

const (
	// TimeoutRequest is the deadline for the whole logical request,
	// started when the request is accepted.
	TimeoutRequest TimeoutKind = iota + 1
	// TimeoutIdle is the longest gap allowed between response reads.
	TimeoutIdle
)

func (k TimeoutKind) String() string {
	switch k {
	case TimeoutRequest:
		return "request"
	case TimeoutIdle:
		return "read idle"
	default:
		return fmt.Sprintf("TimeoutKind(%d)", int(k))
	}
}

// TimeoutError fails a request whose timeout expired.
type TimeoutError struct {
	Kind    TimeoutKind
	Limit   time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout of %s exceeded after %s", e.Kind, e.Limit, e.Elapsed.Round(time.Millisecond))
}

// Timeout reports true, matching net.Error.
func (e *TimeoutError) Timeout() bool { return true }
