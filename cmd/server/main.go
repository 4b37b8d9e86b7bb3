package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/larosafrancesco289/voiceflow/internal/config"
	"github.com/larosafrancesco289/voiceflow/internal/engine"
	"github.com/larosafrancesco289/voiceflow/internal/loader"
	"github.com/larosafrancesco289/voiceflow/internal/metrics"
	"github.com/larosafrancesco289/voiceflow/internal/registry"
	"github.com/larosafrancesco289/voiceflow/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voiceflow"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("port", cfg.Server.Port),
		slog.String("ws_path", cfg.Server.WSPath),
		slog.String("engine", cfg.Engine.Type),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Construct the transcription engine
	eng, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Error("Failed to create transcription engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer eng.Close()

	// Connection registry delivers load progress to every session
	reg := registry.New(logger, appMetrics)

	// Kick off the model load before serving. Clients that connect while
	// it runs receive progress events; the load happens exactly once.
	ldr := loader.New(eng, logger, appMetrics, server.NewLoadNotifier(reg))
	ldr.Start(ctx)
	logger.Info("Model load started",
		slog.String("engine", cfg.Engine.Type),
	)

	// Initialize and start the WebSocket/HTTP server
	srv := server.New(cfg, logger, eng, ldr, reg, appMetrics)
	if err := srv.Start(); err != nil {
		logger.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop accepting connections and wait for in-flight handlers
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping server", slog.String("error", err.Error()))
	}

	// Cancel the load if it is still running
	cancel()

	logger.Info("Final statistics",
		slog.Int("active_connections", reg.Count()),
		slog.Bool("model_loaded", ldr.Ready()),
	)

	logger.Info("Service stopped")
}

// buildEngine constructs the transcription engine selected by the
// configuration.
func buildEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	switch cfg.Engine.Type {
	case "whisper":
		return engine.NewWhisperEngine(engine.WhisperConfig{
			Model:      cfg.Engine.Whisper.Model,
			ModelDir:   cfg.Engine.Whisper.ModelDir,
			BinaryPath: cfg.Engine.Whisper.BinaryPath,
			Language:   cfg.Engine.Whisper.Language,
		}, logger), nil

	case "remote":
		return engine.NewRemoteEngine(engine.RemoteConfig{
			Endpoint:      cfg.Engine.Remote.Endpoint,
			APIKey:        cfg.Engine.Remote.APIKey,
			Timeout:       cfg.Engine.Remote.GetTimeoutDuration(),
			MaxRetries:    cfg.Engine.Remote.MaxRetries,
			MaxConcurrent: cfg.Engine.Remote.MaxConcurrent,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Engine.Type)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
