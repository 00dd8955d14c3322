package body

import "sync/atomic"

// BytesSource produces an in-memory body. It can be replayed any number
// of times.
type BytesSource struct {
	b []byte
}

// NewBytes wraps b. The slice must not be modified afterwards.
func NewBytes(b []byte) *BytesSource {
	return &BytesSource{b: b}
}

// NewString wraps s.
func NewString(s string) *BytesSource {
	return &BytesSource{b: []byte(s)}
}

// Bytes returns the wrapped content.
func (s *BytesSource) Bytes() []byte { return s.b }

func (s *BytesSource) Open() (Producer, error) {
	return &bytesProducer{b: s.b}, nil
}

type bytesProducer struct {
	b        []byte
	off      int
	released atomic.Bool
}

func (p *bytesProducer) Length() int64 { return int64(len(p.b)) }

func (p *bytesProducer) Fill(buf []byte) (int, State) {
	if p.off >= len(p.b) {
		return 0, Stop
	}
	n := copy(buf, p.b[p.off:])
	p.off += n
	return n, Continue
}

func (p *bytesProducer) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	return nil
}
