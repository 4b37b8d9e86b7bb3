package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestDownloadFileSuccess(t *testing.T) {
	content := []byte("model weights")
	sum := sha256.Sum256(content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "models", "test.bin")

	var lastFraction float64
	err := DownloadFile(context.Background(), DownloadOptions{
		URL:            server.URL,
		Destination:    dest,
		ExpectedSHA256: hex.EncodeToString(sum[:]),
		Progress:       func(fraction float64) { lastFraction = fraction },
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	downloaded, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}

	if string(downloaded) != string(content) {
		t.Errorf("Downloaded content mismatch: got %q", string(downloaded))
	}

	if lastFraction != 1.0 {
		t.Errorf("Expected final progress fraction 1.0, got %f", lastFraction)
	}
}

func TestDownloadFileChecksumMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("corrupted"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "test.bin")

	err := DownloadFile(context.Background(), DownloadOptions{
		URL:            server.URL,
		Destination:    dest,
		ExpectedSHA256: "0000000000000000000000000000000000000000000000000000000000000000",
		Retries:        1,
	})
	if err == nil {
		t.Fatal("Expected checksum error, got nil")
	}

	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("Expected no file left behind after failed verification")
	}
}

func TestDownloadFileRetries(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "test.bin")

	err := DownloadFile(context.Background(), DownloadOptions{
		URL:         server.URL,
		Destination: dest,
		Retries:     3,
	})
	if err != nil {
		t.Fatalf("Expected download to succeed on third attempt: %v", err)
	}

	if got := attempts.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestDownloadFileRequiresURL(t *testing.T) {
	err := DownloadFile(context.Background(), DownloadOptions{Destination: "x"})
	if err == nil {
		t.Error("Expected error for missing URL, got nil")
	}
}

func TestVerifyFileChecksum(t *testing.T) {
	content := []byte("payload")
	sum := sha256.Sum256(content)

	path := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := VerifyFileChecksum(path, hex.EncodeToString(sum[:])); err != nil {
		t.Errorf("Expected checksum to verify: %v", err)
	}

	if err := VerifyFileChecksum(path, "deadbeef"); err == nil {
		t.Error("Expected checksum mismatch error, got nil")
	}
}
