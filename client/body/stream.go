package body

import (
	"context"
	"io"
)

// scratchSize is the fill buffer used when draining a producer as a stream.
const scratchSize = 16 << 10

// Stream adapts a producer to an io.Reader for the transport. The context
// is checked before every fill, so cancellation is observed between chunks.
// Stream never releases the producer.
type Stream struct {
	ctx     context.Context
	p       Producer
	scratch []byte
	pending []byte
	done    bool
	written int64
}

// NewStream drains p on demand.
func NewStream(ctx context.Context, p Producer) *Stream {
	return &Stream{ctx: ctx, p: p}
}

func (s *Stream) Read(b []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(b, s.pending)
		s.pending = s.pending[n:]
		s.written += int64(n)
		return n, nil
	}
	if s.done {
		return 0, io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		return 0, context.Cause(s.ctx)
	}

	if s.scratch == nil {
		s.scratch = make([]byte, scratchSize)
	}

	n, state := s.p.Fill(s.scratch)
	if state == Stop {
		s.done = true
	}
	if n == 0 {
		if s.done {
			return 0, io.EOF
		}
		return 0, nil
	}

	c := copy(b, s.scratch[:n])
	s.pending = s.scratch[c:n]
	s.written += int64(c)
	return c, nil
}

// Written is the number of bytes handed to the transport so far.
func (s *Stream) Written() int64 { return s.written }
