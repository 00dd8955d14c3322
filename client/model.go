package client

import "time"

// maxErrBodySize caps the amount of response body kept when
// building an error for an unexpected status code. This prevents
// unbounded memory usage when a large response arrives with a
// wrong status.
const maxErrBodySize = 4 << 10 // 4KB

const (
	defaultMaxRedirects   = 5
	defaultRequestTimeout = 60 * time.Second
	defaultUserAgent      = "asynchttp/1.0"
)

// state is a step of a logical request's execution.
type state int

const (
	stateCreated state = iota
	statePreFilter
	stateConnecting
	stateSending
	stateAwaitingResponse
	statePostFilter
	stateReplaying
	stateRedirecting
	stateCompleted
	stateFailed
	stateCancelled
)

var stateNames = [...]string{
	stateCreated:          "created",
	statePreFilter:        "pre-filter",
	stateConnecting:       "connecting",
	stateSending:          "sending",
	stateAwaitingResponse: "awaiting-response",
	statePostFilter:       "post-filter",
	stateReplaying:        "replaying",
	stateRedirecting:      "redirecting",
	stateCompleted:        "completed",
	stateFailed:           "failed",
	stateCancelled:        "cancelled",
}

func (s state) String() string { return stateNames[s] }
