package pipeline

import (
	"context"
	"log/slog"

	"github.com/andrisyah/vokalis/pkg/frames"
	"github.com/andrisyah/vokalis/pkg/metrics"
)

// FrameProcessor is one pipeline stage. Process may return zero frames to
// absorb input (a window still filling) or several (a flush).
type FrameProcessor interface {
	Process(frames.Frame) ([]frames.Frame, error)
	Name() string
}

type BackpressureMode int

const (
	BackpressureDrop BackpressureMode = iota
	BackpressureWait
)

// Config sizes the orchestrator's queues. HighCapacity bounds control
// frames, LowCapacity audio; FairnessRatio caps consecutive high pops.
type Config struct {
	Async         bool
	StageBuffer   int
	HighCapacity  int
	LowCapacity   int
	FairnessRatio int
	Backpressure  BackpressureMode
}

type PipelineConfig struct {
	Config     Config
	Processors []FrameProcessor
}

type EngineConfig struct {
	SampleRate    int `mapstructure:"samplerate"`
	WindowSamples int `mapstructure:"window_samples"`
	CentroidBins  int `mapstructure:"centroid_bins"`
}

func LogConfiguration(cfg EngineConfig) {
	slog.Info("engine_config",
		"sample_rate", cfg.SampleRate,
		"window_samples", cfg.WindowSamples,
		"centroid_bins", cfg.CentroidBins,
	)
}

type Orchestrator interface {
	Start() error
	Stop() error
	In() chan frames.Frame
	Out() chan frames.Frame
	AddProcessor(p FrameProcessor) error
	SetContext(ctx context.Context)
	SetSink(sink func(frames.Frame))
	SetObserver(obs metrics.Observer)
}
