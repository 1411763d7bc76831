package aggregators

import (
	"math"
	"testing"

	"github.com/andrisyah/vokalis/pkg/errorsx"
	"github.com/andrisyah/vokalis/pkg/frames"
)

func featureFrame(t *testing.T, offsetMS int64, rms, pitch float64) frames.FeatureFrame {
	t.Helper()
	return frames.NewFeatureFrame("s1", offsetMS*1e6, offsetMS, rms, rms*rms*1024, 0.01, 400, pitch, nil)
}

func startedAggregator(t *testing.T, cfg AggregatorConfig) *VoiceAggregator {
	t.Helper()
	a := NewVoiceAggregator(cfg)
	if err := a.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	return a
}

func TestStartWhileRunningFails(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{})
	err := a.Start(nil)
	if !errorsx.HasReason(err, errorsx.ReasonAlreadyRunning) {
		t.Fatalf("expected already_running, got %v", err)
	}
	if err := a.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := a.Start(nil); err != nil {
		t.Fatalf("start after stop: %v", err)
	}
}

func TestStopIdempotentAndReleasesOnce(t *testing.T) {
	released := 0
	a := NewVoiceAggregator(AggregatorConfig{})
	if err := a.Stop(); err != nil {
		t.Fatalf("stop before start must be safe: %v", err)
	}
	if err := a.Start(func() error { released++; return nil }); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = a.Stop()
	_ = a.Stop()
	if released != 1 {
		t.Fatalf("release called %d times, want 1", released)
	}
}

func TestFinalizeZeroFrames(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{})
	_ = a.Stop()
	summary := a.Finalize()
	if summary.DurationSec < 0 {
		t.Fatalf("duration must be non-negative")
	}
	if summary.VolumeAvg != 0 || summary.VolumeVar != 0 || summary.PitchAvg != 0 ||
		summary.Jitter != 0 || summary.Shimmer != 0 || summary.VoicedRatio != 0 {
		t.Fatalf("zero-frame summary not neutral: %+v", summary)
	}
	if a.Summary() == nil || a.VoiceLabels() == nil {
		t.Fatalf("summary and labels must exist after finalize")
	}
}

func TestSummaryNilBeforeFinalize(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{})
	if a.Summary() != nil || a.VoiceLabels() != nil {
		t.Fatalf("summary/labels must be nil before finalize")
	}
}

func TestVoicedRatio(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{})
	pitches := []float64{200, 0, 210, 0, 205}
	for i, p := range pitches {
		a.OnFrame(featureFrame(t, int64(i*21), 0.05, p))
	}
	summary := a.Finalize()
	if math.Abs(summary.VoicedRatio-3.0/5.0) > 1e-9 {
		t.Fatalf("voiced ratio %.3f, want 0.6", summary.VoicedRatio)
	}
	if summary.PitchAvg < 200 || summary.PitchAvg > 210 {
		t.Fatalf("pitch mean %.1f should ignore unvoiced frames", summary.PitchAvg)
	}
}

func TestFrameCapKeepsOldestAndCountsAll(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{MaxFrames: 10})
	for i := 0; i < 12; i++ {
		a.OnFrame(featureFrame(t, int64(i), 0.05, 150))
	}
	summary := a.Finalize()
	if summary.StoredFrames != 10 {
		t.Fatalf("stored %d frames, want 10", summary.StoredFrames)
	}
	if summary.FrameCount != 12 {
		t.Fatalf("running stats should count all 12 frames, got %d", summary.FrameCount)
	}
	stored := a.Frames()
	if stored[0].OffsetMS() != 0 || stored[9].OffsetMS() != 9 {
		t.Fatalf("cap must retain the oldest frames")
	}
}

func TestJitterFromAlternatingPitch(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{})
	for i := 0; i < 10; i++ {
		pitch := 100.0
		if i%2 == 1 {
			pitch = 110
		}
		a.OnFrame(featureFrame(t, int64(i), 0.05, pitch))
	}
	summary := a.Finalize()
	want := 10.0 / 105.0
	if math.Abs(summary.Jitter-want) > 1e-6 {
		t.Fatalf("jitter %.4f, want %.4f", summary.Jitter, want)
	}
}

func TestUnvoicedFrameBreaksJitterChain(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{})
	for _, pitch := range []float64{100, 0, 300} {
		a.OnFrame(featureFrame(t, 0, 0.05, pitch))
	}
	summary := a.Finalize()
	if summary.Jitter != 0 {
		t.Fatalf("no consecutive voiced pair, jitter should be 0, got %f", summary.Jitter)
	}
}

func TestShimmerFromConstantVolumeIsZero(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{})
	for i := 0; i < 5; i++ {
		a.OnFrame(featureFrame(t, int64(i), 0.04, 180))
	}
	summary := a.Finalize()
	if summary.Shimmer != 0 {
		t.Fatalf("constant loudness shimmer should be 0, got %f", summary.Shimmer)
	}
	if summary.VolumeVar > 1e-12 {
		t.Fatalf("constant loudness variance should be ~0, got %g", summary.VolumeVar)
	}
}

func TestFramesIgnoredAfterStop(t *testing.T) {
	a := startedAggregator(t, AggregatorConfig{})
	_ = a.Stop()
	a.OnFrame(featureFrame(t, 0, 0.05, 150))
	if summary := a.Finalize(); summary.FrameCount != 0 {
		t.Fatalf("frames after stop must be ignored, got %d", summary.FrameCount)
	}
}
