package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/larosafrancesco289/voiceflow/internal/config"
	"github.com/larosafrancesco289/voiceflow/internal/engine"
	"github.com/larosafrancesco289/voiceflow/internal/loader"
	"github.com/larosafrancesco289/voiceflow/internal/metrics"
	"github.com/larosafrancesco289/voiceflow/internal/registry"
)

// Server serves the WebSocket transcription endpoint and the HTTP
// monitoring API on a single listener.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	engine   engine.Engine
	loader   *loader.Loader
	registry *registry.Registry

	server    *http.Server
	upgrader  websocket.Upgrader
	startTime time.Time
}

// New creates the server and wires up its routes.
func New(cfg *config.Config, logger *slog.Logger, eng engine.Engine,
	ldr *loader.Loader, reg *registry.Registry, m *metrics.Metrics) *Server {

	s := &Server{
		config:   cfg,
		logger:   logger,
		metrics:  m,
		engine:   eng,
		loader:   ldr,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			// Browser clients connect from arbitrary local origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port),
		Handler:     mux,
		ReadTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start begins serving. It returns immediately; listener errors are
// logged from the serving goroutine.
func (s *Server) Start() error {
	s.logger.Info("Starting server",
		slog.String("address", s.server.Addr),
		slog.String("ws_path", s.config.Server.WSPath),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, closing the listener and waiting
// for in-flight handlers up to the context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server...")

	return s.server.Shutdown(ctx)
}

// handleWS upgrades the connection and runs a session on its own
// goroutine (the handler's), with a keepalive ping loop alongside it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	pingInterval := s.config.Server.GetPingInterval()
	// Allow two missed pongs before the read side gives up.
	readTimeout := 2 * pingInterval

	client := newClient(conn, r.RemoteAddr, s.config.Server.GetWriteTimeout(), readTimeout)
	conn.SetPongHandler(func(string) error {
		return client.refreshReadDeadline()
	})

	done := make(chan struct{})
	go s.pingLoop(client, pingInterval, done)

	session := newSession(client, s.engine, s.loader, s.registry, s.logger, s.metrics)
	session.Run(r.Context())
	close(done)
}

// pingLoop keeps the connection alive until the session ends.
func (s *Server) pingLoop(client *Client, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				s.logger.Debug("Ping failed",
					slog.String("remote_addr", client.RemoteAddr()),
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}
