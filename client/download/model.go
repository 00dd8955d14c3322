package download

import (
	"errors"
	"fmt"
)

var (
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	// ErrRangeMismatch is returned when a 206 response does not start at
	// the requested resume offset.
	ErrRangeMismatch = errors.New("content range mismatch")
)

type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result describes a finished download.
type Result struct {
	Path string
	// Offset is the byte offset the transfer resumed from.
	Offset int64
	// Written is the number of bytes received in this transfer.
	Written int64
	// Skipped is set when the destination already existed.
	Skipped bool
}
