//go:build integration

package client_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adamwoolhether/asynchttp/client"
	"github.com/adamwoolhether/asynchttp/client/message"
)

const versionURL = "https://go.dev/VERSION?m=text"

func remoteRequest(t *testing.T, c *client.Client, rawURL string) *message.Request {
	t.Helper()

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parsing URL: %v", err)
	}

	req, err := c.Request(u, http.MethodGet)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	return req
}

func TestIntegration_Execute_RemoteRedirect(t *testing.T) {
	c := newClient(t)

	// go.dev/dl redirects to a canonical path.
	resp, err := c.ExecuteRequest(t.Context(), remoteRequest(t, c, "https://go.dev/dl")).Get(t.Context())
	if err != nil {
		t.Fatalf("executing request: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestIntegration_Download_RemoteSmallFile(t *testing.T) {
	c := newClient(t)

	destPath := filepath.Join(t.TempDir(), "VERSION")

	res, err := c.Download(t.Context(), remoteRequest(t, c, versionURL), http.StatusOK, destPath)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}

	if int64(len(got)) != res.Written {
		t.Errorf("expected %d bytes written, file has %d", res.Written, len(got))
	}

	if !strings.HasPrefix(string(got), "go") {
		t.Errorf("expected content to start with %q, got %q", "go", string(got))
	}
}

func TestIntegration_Download_RemoteWithChecksum(t *testing.T) {
	c := newClient(t)

	firstPath := filepath.Join(t.TempDir(), "VERSION-first")
	if _, err := c.Download(t.Context(), remoteRequest(t, c, versionURL), http.StatusOK, firstPath); err != nil {
		t.Fatalf("first download failed: %v", err)
	}

	content, err := os.ReadFile(firstPath)
	if err != nil {
		t.Fatalf("reading first download: %v", err)
	}

	hash := sha256.Sum256(content)
	expChecksum := hex.EncodeToString(hash[:])

	secondPath := filepath.Join(t.TempDir(), "VERSION-verified")
	_, err = c.Download(t.Context(), remoteRequest(t, c, versionURL), http.StatusOK, secondPath,
		client.WithChecksum(sha256.New(), expChecksum),
		client.WithProgress(),
	)
	if err != nil {
		t.Fatalf("checksum-verified download failed: %v", err)
	}

	got, err := os.ReadFile(secondPath)
	if err != nil {
		t.Fatalf("reading verified download: %v", err)
	}

	if !bytes.Equal(got, content) {
		t.Error("verified download content differs from first download")
	}
}

func TestIntegration_DownloadAsync_RemoteSingle(t *testing.T) {
	c := newClient(t)

	destPath := filepath.Join(t.TempDir(), "VERSION-async")

	f, err := c.DownloadAsync(t.Context(), remoteRequest(t, c, versionURL), http.StatusOK, destPath)
	if err != nil {
		t.Fatalf("starting async download: %v", err)
	}

	if _, err := f.Get(t.Context()); err != nil {
		t.Fatalf("async download failed: %v", err)
	}

	if _, err := os.Stat(destPath); err != nil {
		t.Fatalf("stat downloaded file: %v", err)
	}
}

func TestIntegration_Download_RemoteCancelMidDownload(t *testing.T) {
	c := newClient(t)

	tmpDir := t.TempDir()
	destPath := filepath.Join(tmpDir, "cancel-me.tar.gz")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	req := remoteRequest(t, c, "https://dl.google.com/go/go1.24.0.src.tar.gz")

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Download(ctx, req, http.StatusOK, destPath)
		errCh <- err
	}()

	time.Sleep(500 * time.Millisecond)
	cancel()

	err := <-errCh
	if err == nil {
		t.Fatal("expected error after cancellation, got nil")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}

	if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
		t.Errorf("expected dest file to not exist at %s after cancellation", destPath)
	}
}
