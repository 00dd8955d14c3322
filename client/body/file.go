package body

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// FileSource produces the content of a file, opening it anew for every
// attempt so redirects and auth retries resend the whole file.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// NewFile returns a source for the file at path. Only WithLogger applies.
func NewFile(path string, optFns ...Option) *FileSource {
	opts := readerOpts{logger: slog.Default()}
	for _, opt := range optFns {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	return &FileSource{path: path, logger: opts.logger}
}

func (s *FileSource) Open() (Producer, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening body file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat body file: %w", err)
	}

	return &fileProducer{f: f, length: info.Size(), logger: s.logger}, nil
}

type fileProducer struct {
	f        *os.File
	length   int64
	logger   *slog.Logger
	released atomic.Bool
}

func (p *fileProducer) Length() int64 { return p.length }

func (p *fileProducer) Fill(buf []byte) (int, State) {
	n, err := p.f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		p.logger.Warn("unable to read request body file", "path", p.f.Name(), "error", err)
	}
	if n > 0 {
		return n, Continue
	}
	return 0, Stop
}

func (p *fileProducer) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	return p.f.Close()
}
