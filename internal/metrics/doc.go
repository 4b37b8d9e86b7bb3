// Package metrics defines the Prometheus metrics exposed by the server:
// connection and broadcast counters, transcription outcomes, model load
// state, and HTTP API instrumentation.
package metrics
