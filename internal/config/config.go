package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains WebSocket and HTTP server configuration
type ServerConfig struct {
	BindAddress     string  `yaml:"bind_address"`
	Port            int     `yaml:"port"`
	WSPath          string  `yaml:"ws_path"`
	PingInterval    float64 `yaml:"ping_interval"`    // seconds
	WriteTimeout    float64 `yaml:"write_timeout"`    // seconds
	ShutdownTimeout float64 `yaml:"shutdown_timeout"` // seconds
}

// EngineConfig selects and configures the transcription engine
type EngineConfig struct {
	Type    string              `yaml:"type"` // "whisper" or "remote"
	Whisper WhisperEngineConfig `yaml:"whisper"`
	Remote  RemoteEngineConfig  `yaml:"remote"`
}

// WhisperEngineConfig configures the local whisper.cpp engine
type WhisperEngineConfig struct {
	Model      string `yaml:"model"` // registry name or path to a .bin file
	ModelDir   string `yaml:"model_dir"`
	BinaryPath string `yaml:"binary_path"`
	Language   string `yaml:"language"`
}

// RemoteEngineConfig configures the remote transcription API engine
type RemoteEngineConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	APIKey        string  `yaml:"api_key"`
	Timeout       float64 `yaml:"timeout"` // seconds
	MaxRetries    int     `yaml:"max_retries"`
	MaxConcurrent int     `yaml:"max_concurrent"`
}

// AudioConfig contains audio format parameters
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when the file omits a field.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:     "127.0.0.1",
			Port:            8765,
			WSPath:          "/ws",
			PingInterval:    20,
			WriteTimeout:    10,
			ShutdownTimeout: 10,
		},
		Engine: EngineConfig{
			Type: "whisper",
			Whisper: WhisperEngineConfig{
				Model:      "small",
				ModelDir:   "models",
				BinaryPath: "whisper-cli",
			},
			Remote: RemoteEngineConfig{
				Timeout:       30,
				MaxRetries:    3,
				MaxConcurrent: 4,
			},
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			BitDepth:   16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.WSPath == "" || s.WSPath[0] != '/' {
		return fmt.Errorf("ws_path must start with '/', got '%s'", s.WSPath)
	}

	if s.PingInterval <= 0 {
		return fmt.Errorf("ping_interval must be positive, got %f", s.PingInterval)
	}

	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got %f", s.WriteTimeout)
	}

	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %f", s.ShutdownTimeout)
	}

	return nil
}

// Validate validates engine configuration
func (e *EngineConfig) Validate() error {
	switch e.Type {
	case "whisper":
		if e.Whisper.Model == "" {
			return fmt.Errorf("whisper model cannot be empty")
		}
		if e.Whisper.BinaryPath == "" {
			return fmt.Errorf("whisper binary_path cannot be empty")
		}
	case "remote":
		if e.Remote.Endpoint == "" {
			return fmt.Errorf("remote endpoint cannot be empty")
		}
		if e.Remote.Timeout < 1 {
			return fmt.Errorf("remote timeout must be at least 1 second, got %f", e.Remote.Timeout)
		}
		if e.Remote.MaxRetries < 0 {
			return fmt.Errorf("remote max_retries cannot be negative, got %d", e.Remote.MaxRetries)
		}
		if e.Remote.MaxConcurrent < 1 {
			return fmt.Errorf("remote max_concurrent must be at least 1, got %d", e.Remote.MaxConcurrent)
		}
	default:
		return fmt.Errorf("type must be 'whisper' or 'remote', got '%s'", e.Type)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", a.BitDepth)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetPingInterval returns the WebSocket ping interval as a time.Duration
func (s *ServerConfig) GetPingInterval() time.Duration {
	return time.Duration(s.PingInterval * float64(time.Second))
}

// GetWriteTimeout returns the per-message write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeout * float64(time.Second))
}

// GetShutdownTimeout returns the graceful shutdown timeout as a time.Duration
func (s *ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeout * float64(time.Second))
}

// GetTimeoutDuration returns the remote API timeout as a time.Duration
func (r *RemoteEngineConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(r.Timeout * float64(time.Second))
}
