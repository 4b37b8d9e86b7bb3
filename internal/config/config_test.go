package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default configuration must validate, got %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	yaml := `
server:
  bind_address: "0.0.0.0"
  port: 9000
  ping_interval: 5
engine:
  type: whisper
  whisper:
    model: tiny
logging:
  level: debug
  format: json
`
	path := writeConfig(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.BindAddress != "0.0.0.0" {
		t.Errorf("Expected bind_address 0.0.0.0, got %s", cfg.Server.BindAddress)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if got := cfg.Server.GetPingInterval(); got != 5*time.Second {
		t.Errorf("Expected ping interval 5s, got %v", got)
	}
	if cfg.Engine.Whisper.Model != "tiny" {
		t.Errorf("Expected model tiny, got %s", cfg.Engine.Whisper.Model)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level debug, got %s", cfg.Logging.Level)
	}

	// Fields not present in the file keep their defaults.
	if cfg.Server.WSPath != "/ws" {
		t.Errorf("Expected default ws_path /ws, got %s", cfg.Server.WSPath)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected default sample_rate 16000, got %d", cfg.Audio.SampleRate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "empty bind address",
			mutate:  func(c *Config) { c.Server.BindAddress = "" },
			wantErr: "bind_address",
		},
		{
			name:    "ws path without leading slash",
			mutate:  func(c *Config) { c.Server.WSPath = "ws" },
			wantErr: "ws_path",
		},
		{
			name:    "zero ping interval",
			mutate:  func(c *Config) { c.Server.PingInterval = 0 },
			wantErr: "ping_interval",
		},
		{
			name:    "unknown engine type",
			mutate:  func(c *Config) { c.Engine.Type = "cloud" },
			wantErr: "type",
		},
		{
			name: "whisper without model",
			mutate: func(c *Config) {
				c.Engine.Whisper.Model = ""
			},
			wantErr: "model",
		},
		{
			name: "remote without endpoint",
			mutate: func(c *Config) {
				c.Engine.Type = "remote"
			},
			wantErr: "endpoint",
		},
		{
			name: "remote with valid endpoint",
			mutate: func(c *Config) {
				c.Engine.Type = "remote"
				c.Engine.Remote.Endpoint = "https://api.example.com/transcribe"
			},
		},
		{
			name:    "wrong sample rate",
			mutate:  func(c *Config) { c.Audio.SampleRate = 44100 },
			wantErr: "sample_rate",
		},
		{
			name:    "stereo rejected",
			mutate:  func(c *Config) { c.Audio.Channels = 2 },
			wantErr: "channels",
		},
		{
			name:    "wrong bit depth",
			mutate:  func(c *Config) { c.Audio.BitDepth = 24 },
			wantErr: "bit_depth",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("Expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	cfg.Server.PingInterval = 2.5
	cfg.Server.WriteTimeout = 1.5
	cfg.Engine.Remote.Timeout = 30

	if got := cfg.Server.GetPingInterval(); got != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s ping interval, got %v", got)
	}
	if got := cfg.Server.GetWriteTimeout(); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s write timeout, got %v", got)
	}
	if got := cfg.Engine.Remote.GetTimeoutDuration(); got != 30*time.Second {
		t.Errorf("Expected 30s remote timeout, got %v", got)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}
