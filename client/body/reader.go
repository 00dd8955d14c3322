package body

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Option configures a reader source.
type Option func(*readerOpts)

type readerOpts struct {
	logger *slog.Logger
	length int64
}

// WithLogger sets the logger read failures are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *readerOpts) {
		o.logger = logger
	}
}

// WithLength declares the size of the stream when the caller knows it.
func WithLength(n int64) Option {
	return func(o *readerOpts) {
		o.length = n
	}
}

// ReaderSource produces the content of a non-seekable stream. It can be
// opened once; a second Open fails with ErrNotReplayable rather than
// sending whatever is left of the stream.
type ReaderSource struct {
	r      io.Reader
	opts   readerOpts
	opened atomic.Bool

	mu      sync.Mutex
	readErr error
}

// NewReader wraps r. If r is an io.Closer it is closed on Release.
func NewReader(r io.Reader, optFns ...Option) *ReaderSource {
	opts := readerOpts{logger: slog.Default(), length: UnknownLength}
	for _, opt := range optFns {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	return &ReaderSource{r: r, opts: opts}
}

func (s *ReaderSource) Open() (Producer, error) {
	if !s.opened.CompareAndSwap(false, true) {
		return nil, ErrNotReplayable
	}
	return &readerProducer{src: s}, nil
}

// Err returns the read failure absorbed into a clean Stop, if any.
// Callers needing strict failure propagation check it after the request
// completes.
func (s *ReaderSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readErr
}

func (s *ReaderSource) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

type readerProducer struct {
	src      *ReaderSource
	chunk    []byte
	released atomic.Bool
}

func (p *readerProducer) Length() int64 { return p.src.opts.length }

// maxEmptyReads bounds consecutive zero-byte reads before Fill gives up.
const maxEmptyReads = 100

// Fill reads up to len(buf)-GuardMargin bytes. Buffers no larger than the
// margin still receive one byte so the body always makes progress. A read
// failure is logged and reported as Stop.
func (p *readerProducer) Fill(buf []byte) (int, State) {
	if len(buf) == 0 {
		return 0, Continue
	}
	room := max(len(buf)-GuardMargin, 1)

	if cap(p.chunk) < room {
		p.chunk = make([]byte, room)
	}
	chunk := p.chunk[:room]

	for range maxEmptyReads {
		n, err := p.src.r.Read(chunk)
		if n > 0 {
			copy(buf, chunk[:n])
			if err != nil && !errors.Is(err, io.EOF) {
				p.fail(err)
			}
			return n, Continue
		}
		if errors.Is(err, io.EOF) {
			return 0, Stop
		}
		if err != nil {
			p.fail(err)
			return 0, Stop
		}
	}

	p.fail(io.ErrNoProgress)
	return 0, Stop
}

func (p *readerProducer) fail(err error) {
	p.src.opts.logger.Warn("unable to read request body", "error", err)
	p.src.recordErr(err)
}

func (p *readerProducer) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	if c, ok := p.src.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
