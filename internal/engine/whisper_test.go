package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWhisperEngineLoadRejectsMissingBinary(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("Failed to create model file: %v", err)
	}

	engine := NewWhisperEngine(WhisperConfig{
		Model:      modelPath,
		BinaryPath: filepath.Join(dir, "missing-whisper"),
	}, testLogger())

	if err := engine.Load(context.Background(), noopProgress); err == nil {
		t.Error("Expected load error for missing binary, got nil")
	}
}

func TestWhisperEngineLoadRejectsUnknownModel(t *testing.T) {
	engine := NewWhisperEngine(WhisperConfig{
		Model:    "nonexistent-model",
		ModelDir: t.TempDir(),
	}, testLogger())

	if err := engine.Load(context.Background(), noopProgress); err == nil {
		t.Error("Expected load error for unknown model, got nil")
	}
}

func TestWhisperEngineTranscribeBeforeLoad(t *testing.T) {
	engine := NewWhisperEngine(WhisperConfig{}, testLogger())

	if _, err := engine.Transcribe(context.Background(), []float32{0.5}, 16000); err == nil {
		t.Error("Expected error when transcribing before load, got nil")
	}
}

func TestWhisperEngineLoadReportsStages(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(modelPath, []byte("model"), 0o644); err != nil {
		t.Fatalf("Failed to create model file: %v", err)
	}

	binPath := filepath.Join(dir, "whisper-cli")
	if err := os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("Failed to create fake binary: %v", err)
	}

	engine := NewWhisperEngine(WhisperConfig{
		Model:      modelPath,
		BinaryPath: binPath,
	}, testLogger())

	var stages []string
	progress := func(stage string, progress float64, message string) {
		stages = append(stages, stage)
	}

	if err := engine.Load(context.Background(), progress); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(stages) == 0 {
		t.Fatal("Expected progress callbacks during load")
	}

	for _, stage := range stages {
		if stage != StageLoading {
			t.Errorf("Expected only loading stage for cached custom model, got %q", stage)
		}
	}
}
