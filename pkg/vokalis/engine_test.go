package vokalis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/andrisyah/vokalis/pkg/errorsx"
	"github.com/andrisyah/vokalis/pkg/pipeline"
	"github.com/andrisyah/vokalis/pkg/sources"
)

func testConfig() Config {
	return Config{
		Pipeline: pipeline.Config{
			Async:         false,
			StageBuffer:   32,
			HighCapacity:  64,
			LowCapacity:   128,
			FairnessRatio: 3,
		},
		Engine: pipeline.EngineConfig{
			SampleRate:    48000,
			WindowSamples: 1024,
			CentroidBins:  64,
		},
		Aggregator: AggregatorConfig{MaxFrames: 2000},
		Pitch:      PitchConfig{MinHz: 60, MaxHz: 400, Confidence: 0.3},
		Source:     SourceConfig{Provider: "mock"},
		LogLevel:   "error",
	}
}

func sine(freq float64, rate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func TestEngineSessionEndToEnd(t *testing.T) {
	eng := NewEngine(EngineOptions{Config: testConfig()})
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	defer eng.Stop()

	if eng.Summary() != nil || eng.Labels() != nil {
		t.Fatal("summary and labels must be nil before any session")
	}

	id, err := eng.StartSession()
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if id == "" {
		t.Fatal("empty stream id")
	}
	if !eng.Running() {
		t.Fatal("engine not running after session start")
	}

	if _, err := eng.StartSession(); !errorsx.HasReason(err, errorsx.ReasonAlreadyRunning) {
		t.Fatalf("second start: got %v, want already_running", err)
	}

	mock, ok := eng.ActiveSource().(*sources.MockSource)
	if !ok {
		t.Fatalf("active source is %T, want MockSource", eng.ActiveSource())
	}
	// four full analysis windows of a clear 220 Hz tone
	mock.PushSamples(sine(220, 48000, 4*1024))
	time.Sleep(100 * time.Millisecond)

	if err := eng.StopSession(); err != nil {
		t.Fatalf("stop session: %v", err)
	}
	if eng.Running() {
		t.Fatal("engine still running after stop")
	}

	summary := eng.Summary()
	if summary == nil {
		t.Fatal("no summary after session")
	}
	if summary.FrameCount != 4 {
		t.Fatalf("frame count = %d, want 4", summary.FrameCount)
	}
	if summary.VoicedRatio != 1 {
		t.Fatalf("voiced ratio = %f, want 1", summary.VoicedRatio)
	}
	if summary.PitchAvg < 209 || summary.PitchAvg > 231 {
		t.Fatalf("pitch avg = %f, want ~220", summary.PitchAvg)
	}
	if eng.Labels() == nil {
		t.Fatal("no labels after session")
	}

	// stop is idempotent, and a fresh session can start afterwards
	if err := eng.StopSession(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	id2, err := eng.StartSession()
	if err != nil {
		t.Fatalf("restart session: %v", err)
	}
	if id2 == id {
		t.Fatal("restarted session reused stream id")
	}
	if err := eng.StopSession(); err != nil {
		t.Fatalf("stop restarted session: %v", err)
	}
}

func TestEngineSilentSessionIsNeutral(t *testing.T) {
	eng := NewEngine(EngineOptions{Config: testConfig()})
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	defer eng.Stop()

	if _, err := eng.StartSession(); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := eng.StopSession(); err != nil {
		t.Fatalf("stop session: %v", err)
	}

	summary := eng.Summary()
	if summary == nil {
		t.Fatal("no summary")
	}
	if summary.FrameCount != 0 {
		t.Fatalf("frame count = %d, want 0", summary.FrameCount)
	}
	if summary.PitchAvg != 0 || summary.Jitter != 0 || summary.Shimmer != 0 {
		t.Fatalf("non-neutral summary for empty session: %+v", summary)
	}
	if eng.Labels() == nil {
		t.Fatal("labels must still be derived for an empty session")
	}
}

func TestEngineUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Source.Provider = "carrier-pigeon"
	eng := NewEngine(EngineOptions{Config: cfg})
	if _, err := eng.StartSession(); err == nil {
		t.Fatal("expected error for unregistered provider")
	} else if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error kind: %v", err)
	}
	if eng.Running() {
		t.Fatal("engine running after failed start")
	}
}
