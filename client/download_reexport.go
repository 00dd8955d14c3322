package client

import (
	"hash"

	"github.com/adamwoolhether/asynchttp/client/download"
)

// -------------------------------------------------------------------------
// Type aliases - re-export user-facing types from [download].
// -------------------------------------------------------------------------

type (
	// DownloadError wraps a sentinel error with additional detail.
	DownloadError = download.Error

	// DownloadResult describes a finished download.
	DownloadResult = download.Result

	// DownloadOption is a functional option for [Client.Download].
	DownloadOption = download.Option
)

// -------------------------------------------------------------------------
// Sentinel errors
// -------------------------------------------------------------------------

var (
	// ErrContentLengthMismatch indicates the byte count did not match Content-Length.
	ErrContentLengthMismatch = download.ErrContentLengthMismatch

	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = download.ErrChecksumMismatch

	// ErrRangeMismatch indicates a partial response that does not continue
	// the data already on disk.
	ErrRangeMismatch = download.ErrRangeMismatch
)

// -------------------------------------------------------------------------
// Download option forwarding functions
// -------------------------------------------------------------------------

// WithChecksum enables checksum validation of the downloaded file.
// h is a [hash.Hash] instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) DownloadOption {
	return download.WithChecksum(h, expected)
}

// WithProgress enables periodic download progress logging.
func WithProgress() DownloadOption { return download.WithProgress() }

// WithSkipExisting causes a download to resolve immediately when
// the destination file already exists.
func WithSkipExisting() DownloadOption { return download.WithSkipExisting() }

// WithResume keeps partial data between attempts and continues from it
// with a Range request.
func WithResume() DownloadOption { return download.WithResume() }
