package download

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adamwoolhether/asynchttp/client/message"
)

const partSuffix = ".part"

// Handler is a resumable completion handler writing the response body to
// a destination path. It is single-use: one Handler per logical request.
type Handler struct {
	dest   string
	logger *slog.Logger
	opts   options

	mu     sync.Mutex
	offset int64
}

// New returns a Handler for destPath.
func New(destPath string, logger *slog.Logger, optFns ...Option) (*Handler, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	return &Handler{dest: destPath, logger: logger, opts: opts}, nil
}

// Skip reports whether the download can be skipped because the destination
// already exists and WithSkipExisting is set.
func (h *Handler) Skip() bool {
	if !h.opts.skipExisting {
		return false
	}
	if _, err := os.Stat(h.dest); err == nil {
		h.logger.Info("skipping existing file", "path", h.dest)
		return true
	}
	return false
}

// Offset is the resume offset chosen by AdjustRequestRange.
func (h *Handler) Offset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

// PartPath is where partial data is kept when resuming.
func (h *Handler) PartPath() string { return h.dest + partSuffix }

// AdjustRequestRange sets the request's range offset to the size of the
// partial file left by an earlier attempt. Without WithResume it returns
// req unchanged.
func (h *Handler) AdjustRequestRange(req *message.Request) (*message.Request, error) {
	if !h.opts.resume {
		return req, nil
	}

	var offset int64
	info, err := os.Stat(h.PartPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("stat partial file: %w", err)
	default:
		offset = info.Size()
	}

	h.mu.Lock()
	h.offset = offset
	h.mu.Unlock()

	if offset == 0 {
		return req, nil
	}

	h.logger.Info("resuming download", "path", h.dest, "offset", offset)

	return req.ToBuilder().RangeOffset(offset).Build()
}

// OnCompleted writes resp to disk and renames it onto the destination.
func (h *Handler) OnCompleted(resp *message.Response) (*Result, error) {
	offset := h.Offset()

	switch {
	case offset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return h.finishSatisfied(resp, offset)
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		start, _, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return nil, err
		}
		if start != offset {
			return nil, &Error{
				Err:    ErrRangeMismatch,
				Detail: fmt.Sprintf("requested offset %d, server sent %d", offset, start),
			}
		}
	default:
		// The server ignored the range; start over.
		offset = 0
	}

	if h.opts.resume {
		return h.writePart(resp, offset)
	}
	return h.writeTemp(resp)
}

// OnThrowable logs the failure. With WithResume the partial file is kept
// for the next attempt.
func (h *Handler) OnThrowable(err error) {
	h.logger.Warn("download failed", "path", h.dest, "error", err, "resume", h.opts.resume)
}

// finishSatisfied handles a 416 for a resume offset: the partial file is
// already complete when its size equals the total the server reports.
func (h *Handler) finishSatisfied(resp *message.Response, offset int64) (*Result, error) {
	_, total, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return nil, err
	}
	if total != offset {
		h.removePart()
		return nil, &Error{
			Err:    ErrRangeMismatch,
			Detail: fmt.Sprintf("partial file has %d bytes, server reports %d", offset, total),
		}
	}

	if err := h.opts.checksum.seed(h.PartPath()); err != nil {
		return nil, err
	}
	if err := h.opts.checksum.Verify(); err != nil {
		h.removePart()
		return nil, err
	}
	if err := os.Rename(h.PartPath(), h.dest); err != nil {
		return nil, fmt.Errorf("renaming partial file: %w", err)
	}

	return &Result{Path: h.dest, Offset: offset}, nil
}

// writePart appends (or, at offset zero, truncates and writes) the body
// to the partial file, then renames it onto the destination.
func (h *Handler) writePart(resp *message.Response, offset int64) (*Result, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
		if err := h.opts.checksum.seed(h.PartPath()); err != nil {
			return nil, err
		}
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(h.PartPath(), flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening partial file: %w", err)
	}

	n, err := h.write(file, resp, offset)
	if err != nil {
		if errors.Is(err, ErrChecksumMismatch) {
			h.removePart()
		}
		return nil, err
	}

	if err := os.Rename(file.Name(), h.dest); err != nil {
		return nil, fmt.Errorf("renaming partial file: %w", err)
	}

	return &Result{Path: h.dest, Offset: offset, Written: n}, nil
}

// writeTemp streams the body to a temp file in the same directory as the
// destination, renamed on success and removed on any error.
func (h *Handler) writeTemp(resp *message.Response) (*Result, error) {
	file, err := os.CreateTemp(filepath.Dir(h.dest), ".asynchttp-dl-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	n, err := h.write(file, resp, 0)
	if err != nil {
		if err := os.Remove(file.Name()); err != nil {
			h.logger.Error("failed to remove temp file", "error", err)
		}
		return nil, err
	}

	if err := os.Rename(file.Name(), h.dest); err != nil {
		return nil, fmt.Errorf("renaming temp file: %w", err)
	}

	return &Result{Path: h.dest, Written: n}, nil
}

// write copies the body into file and closes it.
func (h *Handler) write(file *os.File, resp *message.Response, offset int64) (int64, error) {
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			h.logger.Error("defer closing file", "error", err)
		}
	}()

	contentLength := int64(-1)
	if v := resp.Header.Get("Content-Length"); v != "" {
		if cl, err := strconv.ParseInt(v, 10, 64); err == nil {
			contentLength = cl
		}
	}

	var writer io.Writer = file
	if h.opts.checksum != nil {
		writer = io.MultiWriter(writer, h.opts.checksum)
	}

	if h.opts.progress {
		total := int64(-1)
		if contentLength >= 0 {
			total = offset + contentLength
		}
		writer = &progressWriter{
			w:           writer,
			logger:      h.logger,
			path:        h.dest,
			offset:      offset,
			transferred: offset,
			total:       total,
			startTime:   time.Now(),
		}
	}

	n, err := io.Copy(writer, bytes.NewReader(resp.Body))
	if err != nil {
		return n, fmt.Errorf("copying file body: %w", err)
	}

	if contentLength >= 0 && n != contentLength {
		return n, &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	if err := h.opts.checksum.Verify(); err != nil {
		return n, err
	}

	if err := file.Sync(); err != nil {
		return n, fmt.Errorf("syncing file: %w", err)
	}
	if err := file.Close(); err != nil {
		return n, fmt.Errorf("closing file: %w", err)
	}

	return n, nil
}

func (h *Handler) removePart() {
	if err := os.Remove(h.PartPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.logger.Error("failed to remove partial file", "error", err)
	}
}

// parseContentRange reads "bytes start-end/total" or "bytes */total".
// An unknown total is reported as -1.
func parseContentRange(v string) (start, total int64, err error) {
	bad := &Error{Err: ErrRangeMismatch, Detail: fmt.Sprintf("malformed Content-Range %q", v)}

	ranges, ok := strings.CutPrefix(v, "bytes ")
	if !ok {
		return 0, 0, bad
	}
	rng, size, ok := strings.Cut(ranges, "/")
	if !ok {
		return 0, 0, bad
	}

	total = -1
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, bad
		}
	}

	if rng == "*" {
		return -1, total, nil
	}
	first, _, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, bad
	}
	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, bad
	}

	return start, total, nil
}
