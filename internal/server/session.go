package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/larosafrancesco289/voiceflow/internal/audio"
	"github.com/larosafrancesco289/voiceflow/internal/engine"
	"github.com/larosafrancesco289/voiceflow/internal/loader"
	"github.com/larosafrancesco289/voiceflow/internal/metrics"
	"github.com/larosafrancesco289/voiceflow/internal/protocol"
	"github.com/larosafrancesco289/voiceflow/internal/registry"
)

// Session drives the protocol state machine for one connection. All state
// is owned by the single goroutine running Run; only the client's Send is
// shared with broadcasts.
type Session struct {
	client   *Client
	engine   engine.Engine
	loader   *loader.Loader
	registry *registry.Registry
	buffer   *audio.Buffer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	recording bool
}

func newSession(client *Client, eng engine.Engine, ldr *loader.Loader,
	reg *registry.Registry, logger *slog.Logger, m *metrics.Metrics) *Session {

	return &Session{
		client:   client,
		engine:   eng,
		loader:   ldr,
		registry: reg,
		buffer:   audio.NewBuffer(audio.DefaultSampleRate),
		logger:   logger.With(slog.String("remote_addr", client.RemoteAddr())),
		metrics:  m,
	}
}

// Run executes the session until the client disconnects or the model
// fails to load. It always leaves the registry and metrics consistent.
func (s *Session) Run(ctx context.Context) {
	s.metrics.ConnectionOpened()
	s.registry.Register(s.client)

	defer func() {
		s.registry.Deregister(s.client)
		s.metrics.ConnectionClosed()
		s.client.Close()
		s.logger.Debug("Session ended")
	}()

	s.logger.Info("Session started")

	// Catch up a client that connected mid-load before it starts receiving
	// broadcasts of further transitions.
	if state := s.loader.State(); !state.Terminal() {
		if err := s.client.Send(protocol.Loading(string(state.Stage), state.Progress, state.Message)); err != nil {
			return
		}
	}

	if err := s.loader.AwaitReady(ctx); err != nil {
		// The terminal error event was broadcast by the loader; send one
		// directly as well in case this session registered after the
		// broadcast fired.
		s.client.Send(protocol.Error(err.Error()))
		s.logger.Warn("Closing session, model unavailable",
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.client.Send(protocol.Ready()); err != nil {
		return
	}

	// The keepalive clock starts once the session begins reading; pongs
	// extend it from here on.
	s.client.refreshReadDeadline()

	for {
		msgType, data, err := s.client.Read()
		if err != nil {
			if s.recording {
				// Mid-recording disconnect: buffered audio is discarded.
				s.logger.Warn("Connection lost while recording",
					slog.Float64("discarded_seconds", s.buffer.Duration()),
				)
				s.buffer.Clear()
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.handleAudio(data)
		case websocket.TextMessage:
			s.handleControl(ctx, data)
		default:
			s.logger.Debug("Ignoring unsupported frame type",
				slog.Int("message_type", msgType),
			)
		}
	}
}

// handleAudio appends a PCM chunk while recording. Audio received while
// idle is dropped so stale chunks cannot leak into the next utterance.
func (s *Session) handleAudio(data []byte) {
	if !s.recording {
		s.logger.Debug("Dropping audio frame outside recording",
			slog.Int("bytes", len(data)),
		)
		return
	}

	if err := s.buffer.AddChunk(data); err != nil {
		s.metrics.ProtocolError()
		s.logger.Warn("Rejected malformed audio chunk",
			slog.Int("bytes", len(data)),
			slog.String("error", err.Error()),
		)
	}
}

// handleControl processes a JSON text frame. Malformed messages and
// unknown types are logged and ignored; the session keeps running.
func (s *Session) handleControl(ctx context.Context, data []byte) {
	msg, err := protocol.ParseControl(data)
	if err != nil {
		s.metrics.ProtocolError()
		s.logger.Warn("Ignoring malformed control message",
			slog.String("error", err.Error()),
		)
		return
	}

	switch msg.Type {
	case protocol.ControlStart:
		s.buffer.Clear()
		s.recording = true
		s.logger.Debug("Recording started")

	case protocol.ControlEnd:
		// A stray end while idle still completes the handshake: the buffer
		// is empty, so the client gets a final with empty text.
		s.recording = false
		s.finishUtterance(ctx)

	default:
		s.metrics.ProtocolError()
		s.logger.Warn("Ignoring unknown control message",
			slog.String("type", msg.Type),
		)
	}
}

// finishUtterance transcribes the buffered audio and emits exactly one
// final or error event. The buffer is always cleared afterwards so the
// next utterance starts fresh.
func (s *Session) finishUtterance(ctx context.Context) {
	samples := s.buffer.Samples()
	audioSeconds := s.buffer.Duration()
	sampleRate := s.buffer.SampleRate()
	s.buffer.Clear()

	s.metrics.UtteranceCompleted(audioSeconds)

	// An empty utterance still gets a final event, with empty text, so the
	// client's start/end handshake always completes.
	if len(samples) == 0 {
		s.client.Send(protocol.Final(""))
		s.logger.Debug("Empty utterance")
		return
	}

	s.logger.Info("Transcribing utterance",
		slog.Float64("audio_seconds", audioSeconds),
		slog.Int("samples", len(samples)),
	)

	start := time.Now()
	text, err := s.engine.Transcribe(ctx, samples, sampleRate)
	if err != nil {
		s.metrics.TranscriptionFailed()
		s.logger.Error("Transcription failed",
			slog.Float64("audio_seconds", audioSeconds),
			slog.String("error", err.Error()),
		)
		s.client.Send(protocol.Error(err.Error()))
		return
	}

	elapsed := time.Since(start)
	s.metrics.TranscriptionSucceeded(elapsed)

	s.logger.Info("Transcription complete",
		slog.Float64("audio_seconds", audioSeconds),
		slog.Duration("elapsed", elapsed),
		slog.Int("text_length", len(text)),
	)

	s.client.Send(protocol.Final(text))
}
