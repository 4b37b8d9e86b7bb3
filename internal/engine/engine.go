package engine

import "context"

// Load progress stages reported by engines. The loader adds its own
// warmup/ready/error stages around these.
const (
	StageDownloading = "downloading"
	StageLoading     = "loading"
)

// ProgressFunc receives staged load progress. The progress value is in [0, 1].
type ProgressFunc func(stage string, progress float64, message string)

// Engine is an opaque, fallible transcription engine. Load is expensive and
// blocking; Transcribe may be called concurrently once Load has returned.
type Engine interface {
	// Load initializes the engine, reporting staged progress through the
	// callback. It blocks until the engine is usable or returns an error.
	Load(ctx context.Context, progress ProgressFunc) error

	// Transcribe converts normalized float samples at the given sample rate
	// into text. It must only be called after a successful Load.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)

	// Close releases engine resources.
	Close() error
}
