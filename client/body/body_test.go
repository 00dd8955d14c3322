package body

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type closeCounter struct {
	io.Reader
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

type failingReader struct {
	served bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.served {
		f.served = true
		return copy(p, "abc"), nil
	}
	return 0, errors.New("disk on fire")
}

func drain(t *testing.T, p Producer, bufSize int) ([]byte, int) {
	t.Helper()

	var (
		out       []byte
		continues int
	)
	buf := make([]byte, bufSize)
	for i := 0; ; i++ {
		if i > 10_000 {
			t.Fatal("producer never reached Stop")
		}
		n, state := p.Fill(buf)
		if state == Stop {
			if n != 0 {
				t.Errorf("Stop carried %d bytes", n)
			}
			return out, continues
		}
		if n < 1 {
			t.Fatalf("Continue with %d bytes", n)
		}
		continues++
		out = append(out, buf[:n]...)
	}
}

func TestReaderProducer_SmallBuffers(t *testing.T) {
	src := bytes.Repeat([]byte{'x'}, 100)

	testCases := []struct {
		name    string
		bufSize int
	}{
		{name: "below guard", bufSize: 4},
		{name: "just above guard", bufSize: 11},
		{name: "small", bufSize: 16},
		{name: "larger than source", bufSize: 512},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewReader(bytes.NewReader(src)).Open()
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer p.Release()

			if p.Length() != UnknownLength {
				t.Errorf("length = %d, exp unknown", p.Length())
			}

			got, continues := drain(t, p, tc.bufSize)
			if len(got) != 100 {
				t.Errorf("delivered %d bytes, exp 100", len(got))
			}
			if !bytes.Equal(got, src) {
				t.Error("delivered content differs from source")
			}
			if tc.bufSize > GuardMargin {
				if maxPer := tc.bufSize - GuardMargin; continues < 100/maxPer {
					t.Errorf("%d continues for %d-byte chunks, exp at least %d", continues, maxPer, 100/maxPer)
				}
			}
		})
	}
}

func TestReaderProducer_GuardMargin(t *testing.T) {
	p, err := NewReader(strings.NewReader(strings.Repeat("y", 64))).Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	buf := make([]byte, 32)
	n, state := p.Fill(buf)
	if state != Continue {
		t.Fatalf("state = %s, exp Continue", state)
	}
	if n > len(buf)-GuardMargin {
		t.Errorf("filled %d bytes, exp at most %d", n, len(buf)-GuardMargin)
	}
}

// Read failures are absorbed into a clean Stop rather than failing the
// request; the error is still visible through ReaderSource.Err.
func TestReaderProducer_ReadFailureBecomesStop(t *testing.T) {
	src := NewReader(&failingReader{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	p, err := src.Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	got, _ := drain(t, p, 64)
	if string(got) != "abc" {
		t.Errorf("delivered %q, exp %q", got, "abc")
	}
	if src.Err() == nil {
		t.Error("exp the absorbed read error to be recorded")
	}
}

func TestReaderSource_OneShot(t *testing.T) {
	src := NewReader(strings.NewReader("once"))
	if _, err := src.Open(); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := src.Open(); !errors.Is(err, ErrNotReplayable) {
		t.Errorf("second open err = %v, exp ErrNotReplayable", err)
	}
}

func TestReaderProducer_ReleaseOnce(t *testing.T) {
	rc := &closeCounter{Reader: strings.NewReader("body")}
	p, err := NewReader(rc).Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := p.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := p.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("second release err = %v, exp ErrReleased", err)
	}
	if rc.closed != 1 {
		t.Errorf("closed %d times, exp 1", rc.closed)
	}
}

func TestBytesSource_Replayable(t *testing.T) {
	src := NewString("hello world")

	for i := range 3 {
		p, err := src.Open()
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if p.Length() != 11 {
			t.Errorf("length = %d, exp 11", p.Length())
		}
		got, _ := drain(t, p, 4)
		if string(got) != "hello world" {
			t.Errorf("attempt %d delivered %q", i, got)
		}
		if err := p.Release(); err != nil {
			t.Errorf("release %d: %v", i, err)
		}
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	content := bytes.Repeat([]byte("0123456789"), 50)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	src := NewFile(path)
	for i := range 2 {
		p, err := src.Open()
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if p.Length() != int64(len(content)) {
			t.Errorf("length = %d, exp %d", p.Length(), len(content))
		}
		got, _ := drain(t, p, 64)
		if !bytes.Equal(got, content) {
			t.Errorf("attempt %d content mismatch", i)
		}
		if err := p.Release(); err != nil {
			t.Errorf("release: %v", err)
		}
	}

	if _, err := NewFile(filepath.Join(t.TempDir(), "missing")).Open(); err == nil {
		t.Error("exp error opening a missing file")
	}
}

func TestFileSource_ReadFailureBecomesStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	var logs bytes.Buffer
	p, err := NewFile(path, WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))).Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Reads on a closed file fail with os.ErrClosed.
	if err := p.(*fileProducer).f.Close(); err != nil {
		t.Fatalf("closing file: %v", err)
	}

	n, state := p.Fill(make([]byte, 64))
	if n != 0 || state != Stop {
		t.Errorf("fill = (%d, %s), exp (0, %s)", n, state, Stop)
	}
	if !strings.Contains(logs.String(), "unable to read request body file") {
		t.Errorf("exp the read failure to be logged, got %q", logs.String())
	}
}

func TestStream(t *testing.T) {
	p, err := NewReader(strings.NewReader(strings.Repeat("z", 40000))).Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	s := NewStream(t.Context(), p)
	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 40000 || s.Written() != 40000 {
		t.Errorf("read %d bytes (written %d), exp 40000", len(got), s.Written())
	}
}

func TestStream_Cancelled(t *testing.T) {
	p, err := NewString("never sent").Open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx, cancel := context.WithCancelCause(t.Context())
	stop := errors.New("stop")
	cancel(stop)

	if _, err := NewStream(ctx, p).Read(make([]byte, 8)); !errors.Is(err, stop) {
		t.Errorf("read err = %v, exp cancellation cause", err)
	}
}
