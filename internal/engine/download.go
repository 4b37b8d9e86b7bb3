package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DownloadOptions configures a model file download.
type DownloadOptions struct {
	URL            string
	Destination    string
	ExpectedSHA256 string
	Retries        int
	HTTPClient     *http.Client
	Logger         *slog.Logger

	// Progress, if set, receives the download fraction in [0, 1]. It is
	// called with -1 when the total size is unknown.
	Progress func(fraction float64)
}

// DownloadFile downloads a model file to its destination, verifying the
// SHA-256 checksum when one is expected. The file is written to a temporary
// path and renamed only after verification.
func DownloadFile(ctx context.Context, opts DownloadOptions) error {
	if opts.URL == "" {
		return errors.New("download URL is required")
	}
	if opts.Destination == "" {
		return errors.New("destination path is required")
	}

	if opts.Retries <= 0 {
		opts.Retries = 3
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := os.MkdirAll(filepath.Dir(opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	expected := strings.ToLower(strings.TrimSpace(opts.ExpectedSHA256))

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		if attempt > 1 {
			opts.Logger.Warn("Retrying model download",
				slog.Int("attempt", attempt),
				slog.Int("max", opts.Retries),
				slog.String("url", opts.URL),
			)

			select {
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = downloadOnce(ctx, opts, expected)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func downloadOnce(ctx context.Context, opts DownloadOptions, expected string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d from %s", resp.StatusCode, opts.URL)
	}

	tmpPath := opts.Destination + ".partial"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	hasher := sha256.New()
	writer := io.MultiWriter(out, hasher)

	reader := io.Reader(resp.Body)
	if opts.Progress != nil {
		reader = &progressReader{
			reader:   resp.Body,
			total:    resp.ContentLength,
			progress: opts.Progress,
		}
	}

	_, copyErr := io.Copy(writer, reader)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download body: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temporary file: %w", closeErr)
	}

	if expected != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if actual != expected {
			os.Remove(tmpPath)
			return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", filepath.Base(opts.Destination), expected, actual)
		}
	}

	if err := os.Rename(tmpPath, opts.Destination); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize download: %w", err)
	}

	return nil
}

// VerifyFileChecksum checks a file against an expected SHA-256 hex digest.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := strings.ToLower(strings.TrimSpace(expectedSHA256))
	if expected == "" {
		return errors.New("expected checksum is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != expected {
		return fmt.Errorf("checksum mismatch for %s: expected %s, got %s", filepath.Base(path), expected, actual)
	}

	return nil
}

// progressReader reports cumulative read progress as a fraction of the total.
type progressReader struct {
	reader   io.Reader
	total    int64
	read     int64
	progress func(fraction float64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read += int64(n)

	if r.total > 0 {
		r.progress(float64(r.read) / float64(r.total))
	} else {
		r.progress(-1)
	}

	return n, err
}
