package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the VoiceFlow server.
// All recording methods are safe to call on a nil receiver so components
// can be constructed without metrics in tests.
type Metrics struct {
	// Connection metrics
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter

	// Broadcast metrics
	eventsBroadcast   prometheus.Counter
	broadcastFailures prometheus.Counter

	// Utterance and transcription metrics
	utterancesTotal        prometheus.Counter
	transcriptionSuccesses prometheus.Counter
	transcriptionFailures  prometheus.Counter
	transcriptionDuration  prometheus.Histogram
	utteranceAudioSeconds  prometheus.Histogram
	protocolErrors         prometheus.Counter

	// Model load metrics
	modelLoadSeconds prometheus.Gauge
	modelReady       prometheus.Gauge

	// HTTP API metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voiceflow_connections_active",
			Help: "Current number of open WebSocket connections",
		}),
		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),

		eventsBroadcast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_events_broadcast_total",
			Help: "Total number of events delivered via broadcast",
		}),
		broadcastFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_broadcast_failures_total",
			Help: "Total number of failed broadcast deliveries",
		}),

		utterancesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_utterances_total",
			Help: "Total number of completed utterances",
		}),
		transcriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_transcription_successes_total",
			Help: "Total number of successful transcriptions",
		}),
		transcriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_transcription_failures_total",
			Help: "Total number of failed transcriptions",
		}),
		transcriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceflow_transcription_duration_seconds",
			Help:    "Wall-clock time spent transcribing an utterance",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
		utteranceAudioSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceflow_utterance_audio_seconds",
			Help:    "Audio duration of completed utterances",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~2 minutes
		}),
		protocolErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voiceflow_protocol_errors_total",
			Help: "Total number of malformed or unrecognized client messages",
		}),

		modelLoadSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voiceflow_model_load_seconds",
			Help: "Time taken to load the transcription model",
		}),
		modelReady: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voiceflow_model_ready",
			Help: "Whether the transcription model is loaded and ready (1) or not (0)",
		}),

		httpRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceflow_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceflow_http_request_duration_seconds",
			Help:    "HTTP API request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		httpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceflow_http_errors_total",
			Help: "Total number of HTTP API errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// ConnectionOpened records a newly accepted WebSocket connection
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

// ConnectionClosed records a closed WebSocket connection
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// BroadcastDelivered records successful broadcast deliveries
func (m *Metrics) BroadcastDelivered(count int) {
	if m == nil {
		return
	}
	m.eventsBroadcast.Add(float64(count))
}

// BroadcastFailed records failed broadcast deliveries
func (m *Metrics) BroadcastFailed(count int) {
	if m == nil {
		return
	}
	m.broadcastFailures.Add(float64(count))
}

// UtteranceCompleted records a finished utterance and its audio duration
func (m *Metrics) UtteranceCompleted(audioSeconds float64) {
	if m == nil {
		return
	}
	m.utterancesTotal.Inc()
	m.utteranceAudioSeconds.Observe(audioSeconds)
}

// TranscriptionSucceeded records a successful transcription and its duration
func (m *Metrics) TranscriptionSucceeded(duration time.Duration) {
	if m == nil {
		return
	}
	m.transcriptionSuccesses.Inc()
	m.transcriptionDuration.Observe(duration.Seconds())
}

// TranscriptionFailed records a failed transcription
func (m *Metrics) TranscriptionFailed() {
	if m == nil {
		return
	}
	m.transcriptionFailures.Inc()
}

// ProtocolError records a malformed or unrecognized client message
func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}

// ModelLoaded records a successful model load and its duration
func (m *Metrics) ModelLoaded(duration time.Duration) {
	if m == nil {
		return
	}
	m.modelLoadSeconds.Set(duration.Seconds())
	m.modelReady.Set(1)
}

// ModelLoadFailed records a failed model load
func (m *Metrics) ModelLoadFailed() {
	if m == nil {
		return
	}
	m.modelReady.Set(0)
}

// RecordHTTPRequest records an HTTP API request with its outcome
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, endpoint, fmt.Sprintf("%d", statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordHTTPError records an HTTP API error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
