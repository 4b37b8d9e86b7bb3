package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/larosafrancesco289/voiceflow/internal/audio"
)

// WhisperConfig configures the local whisper-cli engine.
type WhisperConfig struct {
	Model      string // registry name (tiny, base, small, ...) or a model file path
	ModelDir   string // cache directory for downloaded models
	BinaryPath string // path to the whisper-cli executable
	Language   string // empty or "auto" for autodetect
}

// WhisperEngine transcribes audio by invoking the whisper-cli binary on a
// temporary WAV file. Load resolves the model against the local cache and
// downloads it when missing.
type WhisperEngine struct {
	config    WhisperConfig
	logger    *slog.Logger
	modelPath string
}

// NewWhisperEngine creates a whisper engine. The model is not resolved or
// downloaded until Load is called.
func NewWhisperEngine(cfg WhisperConfig, logger *slog.Logger) *WhisperEngine {
	return &WhisperEngine{
		config: cfg,
		logger: logger,
	}
}

// Load resolves the configured model, downloads it if it is not cached, and
// verifies the whisper-cli binary is runnable.
func (e *WhisperEngine) Load(ctx context.Context, progress ProgressFunc) error {
	progress(StageLoading, 0, "checking model cache")

	resolved, err := ResolveModel(e.config.Model, e.config.ModelDir)
	if err != nil {
		return fmt.Errorf("resolve model: %w", err)
	}

	if resolved.NeedsDownload {
		e.logger.Info("Model not cached, downloading",
			slog.String("model", resolved.Name),
			slog.String("url", resolved.URL),
			slog.String("destination", resolved.Path),
		)

		progress(StageDownloading, 0, fmt.Sprintf("downloading model %s", resolved.Name))

		err := DownloadFile(ctx, DownloadOptions{
			URL:            resolved.URL,
			Destination:    resolved.Path,
			ExpectedSHA256: resolved.SHA256,
			Logger:         e.logger,
			Progress: func(fraction float64) {
				if fraction >= 0 {
					progress(StageDownloading, fraction, fmt.Sprintf("downloading model %s", resolved.Name))
				}
			},
		})
		if err != nil {
			return fmt.Errorf("download model %s: %w", resolved.Name, err)
		}

		progress(StageDownloading, 1, fmt.Sprintf("model %s downloaded", resolved.Name))
	} else if !resolved.IsCustomPath && resolved.SHA256 != "" {
		if err := VerifyFileChecksum(resolved.Path, resolved.SHA256); err != nil {
			return fmt.Errorf("cached model %s is corrupt: %w", resolved.Name, err)
		}
	}

	progress(StageLoading, 0.5, "verifying whisper binary")

	if err := ensureExecutable(e.config.BinaryPath); err != nil {
		return fmt.Errorf("whisper binary %s is not executable: %w", e.config.BinaryPath, err)
	}

	e.modelPath = resolved.Path
	progress(StageLoading, 1, fmt.Sprintf("model %s ready", resolved.Name))

	e.logger.Info("Whisper engine loaded",
		slog.String("model", resolved.Name),
		slog.String("model_path", resolved.Path),
		slog.String("binary", e.config.BinaryPath),
	)

	return nil
}

// Transcribe writes the samples to a temporary WAV file and runs whisper-cli
// on it, returning the trimmed text output.
func (e *WhisperEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if e.modelPath == "" {
		return "", errors.New("whisper engine not loaded")
	}

	if len(samples) == 0 {
		return "", nil
	}

	wavData, err := audio.EncodeFloatWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("encode audio: %w", err)
	}

	wavFile, err := os.CreateTemp("", "voiceflow-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	wavPath := wavFile.Name()
	defer os.Remove(wavPath)

	if _, err := wavFile.Write(wavData); err != nil {
		wavFile.Close()
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	if err := wavFile.Close(); err != nil {
		return "", fmt.Errorf("close temp audio file: %w", err)
	}

	outBase := filepath.Join(os.TempDir(), fmt.Sprintf("voiceflow-%d", time.Now().UnixNano()))
	txtOut := outBase + ".txt"
	defer os.Remove(txtOut)

	args := []string{"-m", e.modelPath, "-f", wavPath, "-nt", "-otxt", "-of", outBase}
	lang := strings.TrimSpace(e.config.Language)
	if lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}

	cmd := exec.CommandContext(ctx, e.config.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	e.logger.Debug("Running whisper binary",
		slog.String("binary", e.config.BinaryPath),
		slog.Int("samples", len(samples)),
	)

	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if errText != "" {
			return "", fmt.Errorf("whisper transcribe failed: %w (%s)", err, errText)
		}
		return "", fmt.Errorf("whisper transcribe failed: %w", err)
	}

	content, err := os.ReadFile(txtOut)
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

// Close releases engine resources. The subprocess engine holds none.
func (e *WhisperEngine) Close() error {
	return nil
}

// ensureExecutable accepts both bare command names resolved against PATH
// and explicit file paths.
func ensureExecutable(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is empty")
	}

	_, err := exec.LookPath(path)
	return err
}
