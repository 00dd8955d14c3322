// Package body defines the pull-based contract the execution engine uses
// to stream request bodies, along with sources for readers, byte slices
// and files.
//
// The engine opens a [Producer] from a [Source] once per network attempt,
// calls [Producer.Fill] until it reports [Stop], and then calls
// [Producer.Release] exactly once, whatever the outcome of the attempt.
package body

import "errors"

// UnknownLength is reported by producers that cannot size their content
// in advance. Such bodies are sent with chunked transfer encoding.
const UnknownLength int64 = -1

// GuardMargin is the number of bytes of every fill buffer a reader
// producer leaves untouched for the caller's framing.
const GuardMargin = 10

var (
	// ErrNotReplayable is returned by one-shot sources asked to produce
	// their content a second time, e.g. for a redirect or auth retry.
	ErrNotReplayable = errors.New("body source cannot be replayed")
	// ErrReleased is returned when a released producer is released again.
	ErrReleased = errors.New("producer already released")
)

// State is the producer's report after a fill attempt.
type State int

const (
	// Continue means at least one byte was written and more may follow.
	Continue State = iota
	// Stop means the source is exhausted.
	Stop
)

func (s State) String() string {
	switch s {
	case Continue:
		return "Continue"
	case Stop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// Producer streams a request body into caller supplied buffers.
type Producer interface {
	// Length is the declared total size or UnknownLength.
	Length() int64
	// Fill copies the next bytes into p and reports how many were written.
	// Fill is never called again after it returns Stop.
	Fill(p []byte) (int, State)
	// Release frees the underlying source.
	Release() error
}

// Source creates producers. Each network attempt opens its own producer.
type Source interface {
	Open() (Producer, error)
}
