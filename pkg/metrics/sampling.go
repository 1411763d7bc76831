package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards every Nth event to the wrapped observer, with N
// derived from the requested rate. Frame-level events arrive at window
// cadence (~47/s at 48 kHz with 1024-sample windows), which would swamp a
// debug log at full volume.
type SamplingObserver struct {
	inner Observer
	every uint64
	n     atomic.Uint64
}

func NewSamplingObserver(inner Observer, rate float64) *SamplingObserver {
	var every uint64
	switch {
	case rate <= 0:
		every = 0 // forward nothing
	case rate >= 1:
		every = 1
	default:
		every = uint64(math.Round(1 / rate))
	}
	return &SamplingObserver{inner: inner, every: every}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	switch s.every {
	case 0:
	case 1:
		s.inner.RecordEvent(ev)
	default:
		if s.n.Add(1)%s.every == 0 {
			s.inner.RecordEvent(ev)
		}
	}
}
