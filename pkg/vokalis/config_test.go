package vokalis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andrisyah/vokalis/pkg/pipeline"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "source:\n  provider: mock\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.SampleRate != 48000 {
		t.Fatalf("sample rate = %d, want 48000", cfg.Engine.SampleRate)
	}
	if cfg.Engine.WindowSamples != 1024 {
		t.Fatalf("window samples = %d, want 1024", cfg.Engine.WindowSamples)
	}
	if cfg.Engine.CentroidBins != 64 {
		t.Fatalf("centroid bins = %d, want 64", cfg.Engine.CentroidBins)
	}
	if cfg.Aggregator.MaxFrames != 2000 {
		t.Fatalf("max frames = %d, want 2000", cfg.Aggregator.MaxFrames)
	}
	if cfg.Pitch.MinHz != 60 || cfg.Pitch.MaxHz != 400 {
		t.Fatalf("pitch band = [%f, %f], want [60, 400]", cfg.Pitch.MinHz, cfg.Pitch.MaxHz)
	}
	if cfg.Pipeline.Backpressure != pipeline.BackpressureDrop {
		t.Fatalf("backpressure = %d, want drop", cfg.Pipeline.Backpressure)
	}
	if !cfg.Pipeline.Async {
		t.Fatal("pipeline must default to async")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  async: false
  backpressure: wait
engine:
  samplerate: 16000
  window_samples: 512
aggregator:
  max_frames: 100
source:
  provider: wav
  settings:
    path: /tmp/session.wav
log_level: debug
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.Async {
		t.Fatal("async override ignored")
	}
	if cfg.Pipeline.Backpressure != pipeline.BackpressureWait {
		t.Fatalf("backpressure = %d, want wait", cfg.Pipeline.Backpressure)
	}
	if cfg.Engine.SampleRate != 16000 || cfg.Engine.WindowSamples != 512 {
		t.Fatalf("engine overrides ignored: %+v", cfg.Engine)
	}
	if cfg.Aggregator.MaxFrames != 100 {
		t.Fatalf("max frames = %d, want 100", cfg.Aggregator.MaxFrames)
	}
	if cfg.Source.Provider != "wav" {
		t.Fatalf("provider = %q, want wav", cfg.Source.Provider)
	}
	if cfg.Source.Settings["path"] != "/tmp/session.wav" {
		t.Fatalf("settings path = %v", cfg.Source.Settings["path"])
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("VOKALIS_WAV", "/data/take1.wav")
	path := writeConfig(t, `
source:
  provider: wav
  settings:
    path: ${VOKALIS_WAV}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Source.Settings["path"] != "/data/take1.wav" {
		t.Fatalf("env not expanded: %v", cfg.Source.Settings["path"])
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	cfg.Source.Provider = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for blank provider")
	}

	cfg = testConfig()
	cfg.Pitch.MinHz = 500
	cfg.Pitch.MaxHz = 400
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted pitch band")
	}

	if err := testConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
