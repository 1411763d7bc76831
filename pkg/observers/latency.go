package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/andrisyah/vokalis/pkg/metrics"
)

// SessionLatencyObserver tracks the timing of one analysis session per
// stream: capture start, first emitted feature frame, and finalize. Logged
// once when the session summary lands.
type SessionLatencyObserver struct {
	mu       sync.Mutex
	sessions map[string]*sessionTrace
	log      *slog.Logger
}

type sessionTrace struct {
	captureStart time.Time
	firstFeature time.Time
	finalized    time.Time
	traceID      string
}

func NewSessionLatencyObserver(log *slog.Logger) *SessionLatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &SessionLatencyObserver{
		sessions: make(map[string]*sessionTrace),
		log:      log,
	}
}

func (o *SessionLatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	streamID := ""
	if ev.Tags != nil {
		streamID = ev.Tags["stream_id"]
	}
	if streamID == "" {
		return
	}
	o.mu.Lock()
	t := o.sessions[streamID]
	if t == nil {
		t = &sessionTrace{}
		o.sessions[streamID] = t
	}
	switch ev.Name {
	case metrics.EventCaptureStart:
		if t.captureStart.IsZero() {
			t.captureStart = ev.Time
		}
		if t.traceID == "" && ev.Tags != nil {
			t.traceID = ev.Tags["trace_id"]
		}
	case metrics.EventFirstFeature:
		if t.firstFeature.IsZero() {
			t.firstFeature = ev.Time
		}
	case metrics.EventSessionSummary:
		t.finalized = ev.Time
	}
	if !t.finalized.IsZero() {
		o.logSessionLocked(streamID, t)
		delete(o.sessions, streamID)
	}
	o.mu.Unlock()
}

func (o *SessionLatencyObserver) logSessionLocked(streamID string, t *sessionTrace) {
	o.log.Info("session_latency",
		"stream_id", streamID,
		"trace_id", t.traceID,
		"first_feature_ms", durationMs(t.captureStart, t.firstFeature),
		"session_ms", durationMs(t.captureStart, t.finalized),
	)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
