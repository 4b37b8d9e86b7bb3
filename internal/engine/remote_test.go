package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/larosafrancesco289/voiceflow/internal/audio"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopProgress(stage string, progress float64, message string) {}

func TestRemoteEngineTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		if r.FormValue("sample_rate") != "16000" {
			t.Errorf("Expected sample_rate 16000, got %q", r.FormValue("sample_rate"))
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected audio file in form: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		// The uploaded body must be a playable WAV carrying the original
		// samples, not bare PCM.
		wavData, err := io.ReadAll(file)
		if err != nil {
			t.Errorf("Failed to read uploaded file: %v", err)
			http.Error(w, "bad file", http.StatusBadRequest)
			return
		}

		samples, rate, err := audio.DecodeWAV(wavData)
		if err != nil {
			t.Errorf("Uploaded file is not valid WAV: %v", err)
		} else {
			if rate != 16000 {
				t.Errorf("Expected WAV sample rate 16000, got %d", rate)
			}
			want := []int16{0, 8192, -8192, 32767}
			if len(samples) != len(want) {
				t.Errorf("Expected %d samples in WAV, got %d", len(want), len(samples))
			} else {
				for i := range want {
					if samples[i] != want[i] {
						t.Errorf("WAV sample %d: expected %d, got %d", i, want[i], samples[i])
					}
				}
			}
		}

		json.NewEncoder(w).Encode(map[string]string{"text": "hello world"})
	}))
	defer server.Close()

	engine, err := NewRemoteEngine(RemoteConfig{Endpoint: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	text, err := engine.Transcribe(context.Background(), []float32{0, 0.25, -0.25, 1.0}, 16000)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "hello world" {
		t.Errorf("Expected text %q, got %q", "hello world", text)
	}
}

func TestRemoteEngineEmptySamples(t *testing.T) {
	engine, err := NewRemoteEngine(RemoteConfig{Endpoint: "http://localhost:1"}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	// Empty input short-circuits without touching the network.
	text, err := engine.Transcribe(context.Background(), nil, 16000)
	if err != nil {
		t.Fatalf("Expected no error for empty samples: %v", err)
	}

	if text != "" {
		t.Errorf("Expected empty text, got %q", text)
	}
}

func TestRemoteEngineRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "recovered"})
	}))
	defer server.Close()

	engine, err := NewRemoteEngine(RemoteConfig{Endpoint: server.URL, MaxRetries: 2}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	text, err := engine.Transcribe(context.Background(), []float32{0.5}, 16000)
	if err != nil {
		t.Fatalf("Expected transcription to recover: %v", err)
	}

	if text != "recovered" {
		t.Errorf("Expected text %q, got %q", "recovered", text)
	}

	if got := attempts.Load(); got != 2 {
		t.Errorf("Expected 2 attempts, got %d", got)
	}
}

func TestRemoteEngineDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	engine, err := NewRemoteEngine(RemoteConfig{Endpoint: server.URL, MaxRetries: 3}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if _, err := engine.Transcribe(context.Background(), []float32{0.5}, 16000); err == nil {
		t.Fatal("Expected error for 401 response, got nil")
	}

	if got := attempts.Load(); got != 1 {
		t.Errorf("Expected exactly 1 attempt for client error, got %d", got)
	}
}

func TestRemoteEngineLoadProbesEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	engine, err := NewRemoteEngine(RemoteConfig{Endpoint: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if err := engine.Load(context.Background(), noopProgress); err != nil {
		t.Errorf("Expected load to succeed: %v", err)
	}
}

func TestRemoteEngineLoadFailsWhenUnreachable(t *testing.T) {
	engine, err := NewRemoteEngine(RemoteConfig{
		Endpoint: "http://127.0.0.1:1",
		Timeout:  500 * time.Millisecond,
	}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if err := engine.Load(context.Background(), noopProgress); err == nil {
		t.Error("Expected load error for unreachable endpoint, got nil")
	}
}

func TestNewRemoteEngineRequiresEndpoint(t *testing.T) {
	if _, err := NewRemoteEngine(RemoteConfig{}, testLogger()); err == nil {
		t.Error("Expected error for empty endpoint, got nil")
	}
}
