package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures the WebSocket endpoint and HTTP API routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// WebSocket transcription endpoint
	mux.HandleFunc(s.config.Server.WSPath, s.handleWS)

	// Health check endpoint
	mux.HandleFunc("/health", s.withMetrics("/health", s.handleHealth))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())
}

// withMetrics wraps an HTTP handler with metrics collection
func (s *Server) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		s.metrics.RecordHTTPRequest(r.Method, endpoint, ww.statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			s.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// handleHealth implements the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	loadState := s.loader.State()

	health := map[string]any{
		"status":       "healthy",
		"model_loaded": s.loader.Ready(),
		"timestamp":    time.Now().UTC(),
		"uptime":       time.Since(s.startTime).String(),
		"connections": map[string]any{
			"active": s.registry.Count(),
		},
		"model": map[string]any{
			"stage":    string(loadState.Stage),
			"progress": loadState.Progress,
			"message":  loadState.Message,
		},
	}
	if loadState.Error != "" {
		health["model"].(map[string]any)["error"] = loadState.Error
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
