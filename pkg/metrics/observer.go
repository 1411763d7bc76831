package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Event names emitted by the analysis pipeline.
const (
	EventFrameIn        = "frame_in"
	EventFrameOut       = "frame_out"
	EventFrameDrop      = "frame_drop"
	EventStageLatencyUS = "stage_latency_us"
	EventCaptureStart   = "capture_start"
	EventFirstFeature   = "first_feature"
	EventFrameCapHit    = "frame_cap_hit"
	EventSessionSummary = "session_summary"
)
