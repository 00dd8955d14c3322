package download

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// checksumVerifier enables checksum validation of the downloaded file.
type checksumVerifier struct {
	hash     hash.Hash
	expected string
}

func (v *checksumVerifier) Write(p []byte) (int, error) {
	return v.hash.Write(p)
}

// seed feeds the bytes already on disk from an earlier transfer.
func (v *checksumVerifier) seed(path string) error {
	if v == nil {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening partial file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(v.hash, f); err != nil {
		return fmt.Errorf("hashing partial file: %w", err)
	}
	return nil
}

func (v *checksumVerifier) Verify() error {
	if v == nil {
		return nil
	}

	actual := hex.EncodeToString(v.hash.Sum(nil))
	if actual != v.expected {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("expected %s, got %s", v.expected, actual),
		}
	}

	return nil
}
