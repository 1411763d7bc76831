package aggregators

import (
	"testing"

	"github.com/andrisyah/vokalis/pkg/frames"
	"github.com/andrisyah/vokalis/pkg/metrics"
)

func TestAggregatorEmitsSessionEvents(t *testing.T) {
	obs := metrics.NewMemoryObserver()
	a := NewVoiceAggregator(AggregatorConfig{MaxFrames: 3})
	a.SetObserver(obs)
	a.SetStreamID("s-1")
	if err := a.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 5; i++ {
		a.OnFrame(frames.NewFeatureFrame("s-1", int64(i), int64(i*21), 0.02, 0.4, 0.1, 1200, 180, nil))
	}
	a.Finalize()

	if got := obs.CountByName(metrics.EventFirstFeature); got != 1 {
		t.Fatalf("first_feature events = %d, want 1", got)
	}
	if got := obs.CountByName(metrics.EventFrameCapHit); got != 1 {
		t.Fatalf("frame_cap_hit events = %d, want exactly 1", got)
	}
	if got := obs.CountByName(metrics.EventSessionSummary); got != 1 {
		t.Fatalf("session_summary events = %d, want 1", got)
	}

	for _, ev := range obs.Snapshot() {
		if ev.Tags["stream_id"] != "s-1" {
			t.Fatalf("event %s missing stream id tag: %v", ev.Name, ev.Tags)
		}
	}
}
