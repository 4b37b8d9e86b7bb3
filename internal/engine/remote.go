package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/larosafrancesco289/voiceflow/internal/audio"
)

// RemoteConfig configures the remote transcription API engine.
type RemoteConfig struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// RemoteEngine transcribes audio by uploading WAV-encoded utterances to an
// HTTP transcription API. Concurrency is bounded by a semaphore and failed
// requests are retried with exponential backoff.
type RemoteEngine struct {
	config     RemoteConfig
	logger     *slog.Logger
	httpClient *http.Client
	semaphore  chan struct{}
}

// remoteResponse is the JSON body returned by the transcription API.
type remoteResponse struct {
	Text string `json:"text"`
}

// httpStatusError carries the status code so the retry loop can distinguish
// transient server failures from permanent client errors.
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Body)
}

// NewRemoteEngine creates a remote transcription engine.
func NewRemoteEngine(cfg RemoteConfig, logger *slog.Logger) (*RemoteEngine, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &RemoteEngine{
		config:     cfg,
		logger:     logger,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Load probes the transcription endpoint so an unreachable API surfaces as a
// load failure instead of failing every utterance later.
func (e *RemoteEngine) Load(ctx context.Context, progress ProgressFunc) error {
	progress(StageLoading, 0, "connecting to transcription API")

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, e.config.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcription API unreachable: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("transcription API unhealthy: HTTP %d", resp.StatusCode)
	}

	progress(StageLoading, 1, "transcription API reachable")

	e.logger.Info("Remote engine ready",
		slog.String("endpoint", e.config.Endpoint),
		slog.Int("max_concurrent", e.config.MaxConcurrent),
	)

	return nil
}

// Transcribe uploads the utterance as a WAV file and returns the text from
// the API response.
func (e *RemoteEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	// Acquire semaphore to bound concurrent uploads
	select {
	case e.semaphore <- struct{}{}:
		defer func() { <-e.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	wavData, err := audio.EncodeFloatWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("encode audio: %w", err)
	}

	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			e.logger.Warn("Retrying transcription request",
				slog.Int("attempt", attempt),
				slog.Int("max_retries", e.config.MaxRetries),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := e.doRequest(ctx, wavData, sampleRate, len(samples))
		if err == nil {
			return text, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	return "", fmt.Errorf("transcription failed after %d attempts: %w", e.config.MaxRetries+1, lastErr)
}

// Close releases the engine's idle HTTP connections.
func (e *RemoteEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

// doRequest performs a single multipart upload to the transcription API.
func (e *RemoteEngine) doRequest(ctx context.Context, wavData []byte, sampleRate, numSamples int) (string, error) {
	body, contentType, err := createMultipartBody(wavData, sampleRate, numSamples)
	if err != nil {
		return "", fmt.Errorf("create multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "voiceflow-server/1.0")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed remoteResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response JSON: %w", err)
	}

	return parsed.Text, nil
}

func createMultipartBody(wavData []byte, sampleRate, numSamples int) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}

	if _, err := fileWriter.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := map[string]string{
		"sample_rate": fmt.Sprintf("%d", sampleRate),
		"duration":    fmt.Sprintf("%.3f", float64(numSamples)/float64(sampleRate)),
		"format":      "wav",
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// isRetryableError reports whether a request should be retried. Client
// errors (4xx) are permanent; server errors and transport failures are
// retried.
func isRetryableError(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}
