package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/larosafrancesco289/voiceflow/internal/audio"
	"github.com/larosafrancesco289/voiceflow/internal/engine"
	"github.com/larosafrancesco289/voiceflow/internal/metrics"
)

// Stage identifies a phase of model initialization.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageDownloading Stage = "downloading"
	StageLoading     Stage = "loading"
	StageWarmup      Stage = "warmup"
	StageReady       Stage = "ready"
	StageError       Stage = "error"
)

// warmupSamples is 0.5 seconds of silence at 16 kHz, used to exercise the
// engine once before declaring it ready so the first real utterance does not
// pay cold-start latency.
const warmupSamples = 8000

// State is a snapshot of load progress. Exactly one live State exists per
// Loader; it is mutated only by the load goroutine and read by any session.
type State struct {
	Stage    Stage   `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Error    string  `json:"error,omitempty"`
}

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s.Stage == StageReady || s.Stage == StageError
}

// NotifyFunc receives every state transition. It is invoked asynchronously
// and must not be able to fail the load.
type NotifyFunc func(State)

// Loader gates the shared transcription engine behind a single-flight load.
type Loader struct {
	engine  engine.Engine
	logger  *slog.Logger
	metrics *metrics.Metrics
	notify  NotifyFunc

	once sync.Once
	done chan struct{}

	mu      sync.RWMutex
	state   State
	loadErr error
}

// New creates a loader for the given engine. notify may be nil.
func New(eng engine.Engine, logger *slog.Logger, m *metrics.Metrics, notify NotifyFunc) *Loader {
	return &Loader{
		engine:  eng,
		logger:  logger,
		metrics: m,
		notify:  notify,
		done:    make(chan struct{}),
		state:   State{Stage: StageIdle, Message: "model load not started"},
	}
}

// Start triggers the load. It is idempotent: subsequent calls are no-ops and
// concurrent callers share the single in-flight load. The blocking work runs
// on its own goroutine so connection handling is never stalled.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		go l.run(ctx)
	})
}

// AwaitReady blocks until the load reaches a terminal stage or the context is
// cancelled. It returns nil after ready and the stored load error after a
// failed load; if the load is already terminal it returns immediately.
func (l *Loader) AwaitReady(ctx context.Context) error {
	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadErr
}

// State returns a non-blocking snapshot of load progress, used to catch up
// clients that connect mid-load.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Ready reports whether the engine loaded successfully.
func (l *Loader) Ready() bool {
	select {
	case <-l.done:
	default:
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadErr == nil
}

// run performs the blocking initialization and publishes stage transitions.
func (l *Loader) run(ctx context.Context) {
	start := time.Now()

	l.logger.Info("Starting model load")

	progress := func(stage string, fraction float64, message string) {
		l.setState(State{Stage: Stage(stage), Progress: fraction, Message: message})
	}

	if err := l.engine.Load(ctx, progress); err != nil {
		l.fail(fmt.Errorf("model load failed: %w", err))
		return
	}

	// Warmup failures are logged but never fail the overall load.
	l.setState(State{Stage: StageWarmup, Progress: 1, Message: "warming up model"})
	if _, err := l.engine.Transcribe(ctx, make([]float32, warmupSamples), audio.DefaultSampleRate); err != nil {
		l.logger.Warn("Model warmup failed",
			slog.String("error", err.Error()),
		)
	}

	elapsed := time.Since(start)
	l.metrics.ModelLoaded(elapsed)

	l.mu.Lock()
	l.state = State{Stage: StageReady, Progress: 1, Message: "model ready"}
	l.mu.Unlock()
	close(l.done)

	l.publish(l.State())

	l.logger.Info("Model load complete",
		slog.Duration("elapsed", elapsed),
	)
}

// fail records a terminal load error. The error surfaces to every current
// and future AwaitReady caller; the process keeps running.
func (l *Loader) fail(err error) {
	l.metrics.ModelLoadFailed()

	l.mu.Lock()
	l.loadErr = err
	l.state = State{Stage: StageError, Progress: 0, Message: "model load failed", Error: err.Error()}
	l.mu.Unlock()
	close(l.done)

	l.publish(l.State())

	l.logger.Error("Model load failed",
		slog.String("error", err.Error()),
	)
}

// setState records a non-terminal transition and publishes it.
func (l *Loader) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()

	l.publish(s)

	l.logger.Debug("Model load progress",
		slog.String("stage", string(s.Stage)),
		slog.Float64("progress", s.Progress),
		slog.String("message", s.Message),
	)
}

// publish pushes a state to the notifier without blocking the load.
func (l *Loader) publish(s State) {
	if l.notify == nil {
		return
	}
	go l.notify(s)
}
