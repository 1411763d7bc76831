// Package aggregators owns one recording session's feature frames and
// reduces them to a summary when the session ends.
package aggregators

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/andrisyah/vokalis/pkg/errorsx"
	"github.com/andrisyah/vokalis/pkg/frames"
	"github.com/andrisyah/vokalis/pkg/labels"
	"github.com/andrisyah/vokalis/pkg/metrics"
)

const meanFloor = 1e-9

// VoiceAggregator accumulates feature frames for a single session. One
// writer (the frame sink) mutates state while running; summary reads happen
// after Stop/Finalize. Storage is capped; running statistics are maintained
// incrementally on every frame, including frames dropped from storage.
type VoiceAggregator struct {
	mu       sync.Mutex
	cfg      AggregatorConfig
	streamID string
	running  bool
	startAt  time.Time
	release  func() error

	stored []frames.FeatureFrame
	stats  runningStats

	summary *labels.FeatureSummary
	voice   *labels.VoiceLabels

	obs metrics.Observer
}

type runningStats struct {
	frames int64
	voiced int64

	sumRMS, sumRMS2           float64
	sumEnergy, sumEnergy2     float64
	sumCentroid, sumCentroid2 float64
	sumPitch, sumPitch2       float64

	pitchDeltaSum float64
	pitchPairs    int64
	lastPitch     float64

	rmsDeltaSum float64
	rmsPairs    int64
	lastRMS     float64
	haveLastRMS bool

	capLogged bool
}

func NewVoiceAggregator(cfg AggregatorConfig) *VoiceAggregator {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = defaultMaxFrames
	}
	return &VoiceAggregator{cfg: cfg, obs: metrics.NoopObserver{}}
}

func (a *VoiceAggregator) Name() string { return "voice_aggregator" }

func (a *VoiceAggregator) SetObserver(obs metrics.Observer) {
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	a.obs = obs
}

func (a *VoiceAggregator) SetStreamID(id string) {
	a.mu.Lock()
	a.streamID = id
	a.mu.Unlock()
}

// Start resets session state and arms the aggregator. release is invoked by
// Stop to detach the audio source; it may be nil. Starting while a prior
// session is still attached is a caller error.
func (a *VoiceAggregator) Start(release func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return errorsx.New(errorsx.ReasonAlreadyRunning)
	}
	a.running = true
	a.startAt = time.Now()
	a.release = release
	a.stored = a.stored[:0]
	a.stats = runningStats{}
	return nil
}

// OnFrame is the pipeline sink. Only feature frames mutate state; other
// kinds are ignored (no consumer semantics, never an error).
func (a *VoiceAggregator) OnFrame(f frames.Frame) {
	if f == nil || f.Kind() != frames.KindFeature {
		return
	}
	ff, ok := f.(frames.FeatureFrame)
	if !ok {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}

	if len(a.stored) < a.cfg.MaxFrames {
		a.stored = append(a.stored, ff)
	} else if !a.stats.capLogged {
		a.stats.capLogged = true
		slog.Debug("frame_cap_hit", "max_frames", a.cfg.MaxFrames)
		a.record(metrics.EventFrameCapHit, nil)
	}

	s := &a.stats
	s.frames++
	rms := ff.RMS()
	s.sumRMS += rms
	s.sumRMS2 += rms * rms
	s.sumEnergy += ff.Energy()
	s.sumEnergy2 += ff.Energy() * ff.Energy()
	s.sumCentroid += ff.Centroid()
	s.sumCentroid2 += ff.Centroid() * ff.Centroid()

	if s.haveLastRMS {
		s.rmsDeltaSum += math.Abs(rms - s.lastRMS)
		s.rmsPairs++
	}
	s.lastRMS = rms
	s.haveLastRMS = true

	if ff.Voiced() {
		pitch := ff.Pitch()
		s.voiced++
		s.sumPitch += pitch
		s.sumPitch2 += pitch * pitch
		if s.lastPitch > 0 {
			s.pitchDeltaSum += math.Abs(pitch - s.lastPitch)
			s.pitchPairs++
		}
		s.lastPitch = pitch
	} else {
		// unvoiced frames break the jitter chain
		s.lastPitch = 0
	}

	if s.frames == 1 {
		a.record(metrics.EventFirstFeature, map[string]any{"offset_ms": ff.OffsetMS()})
	}
}

// Finalize reduces the accumulated series to a summary and derives labels.
// Zero frames yield the neutral summary; denominators are guarded, never a
// division by zero.
func (a *VoiceAggregator) Finalize() labels.FeatureSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.stats
	n := float64(maxInt64(s.frames, 1))
	voicedN := float64(maxInt64(s.voiced, 1))

	summary := labels.FeatureSummary{
		DurationSec:   durationSec(a.startAt),
		VolumeAvg:     s.sumRMS / n,
		VolumeVar:     variance(s.sumRMS, s.sumRMS2, n),
		EnergyAvg:     s.sumEnergy / n,
		EnergyVar:     variance(s.sumEnergy, s.sumEnergy2, n),
		BrightnessAvg: s.sumCentroid / n,
		BrightnessStd: math.Sqrt(variance(s.sumCentroid, s.sumCentroid2, n)),
		FrameCount:    s.frames,
		StoredFrames:  len(a.stored),
	}
	if s.frames > 0 {
		summary.VoicedRatio = float64(s.voiced) / float64(s.frames)
	}
	if s.voiced > 0 {
		summary.PitchAvg = s.sumPitch / voicedN
		summary.PitchStd = math.Sqrt(variance(s.sumPitch, s.sumPitch2, voicedN))
	}
	if s.pitchPairs > 0 && summary.PitchAvg > meanFloor {
		summary.Jitter = (s.pitchDeltaSum / float64(s.pitchPairs)) / summary.PitchAvg
	}
	if s.rmsPairs > 0 && summary.VolumeAvg > meanFloor {
		summary.Shimmer = (s.rmsDeltaSum / float64(s.rmsPairs)) / summary.VolumeAvg
	}

	voice := labels.Classify(summary)
	a.summary = &summary
	a.voice = &voice

	a.record(metrics.EventSessionSummary, map[string]any{
		"duration_sec": summary.DurationSec,
		"frame_count":  summary.FrameCount,
		"voiced_ratio": summary.VoicedRatio,
		"volume":       string(voice.Volume),
		"tone":         string(voice.Tone),
		"nervousness":  string(voice.Nervousness),
	})
	return summary
}

// Stop detaches the audio source and releases its resources. Idempotent and
// safe from teardown paths, including when Start never completed.
func (a *VoiceAggregator) Stop() error {
	a.mu.Lock()
	release := a.release
	a.release = nil
	a.running = false
	a.mu.Unlock()
	if release != nil {
		return release()
	}
	return nil
}

func (a *VoiceAggregator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Summary returns nil before a session completes.
func (a *VoiceAggregator) Summary() *labels.FeatureSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.summary == nil {
		return nil
	}
	cp := *a.summary
	return &cp
}

// VoiceLabels returns nil until a summary exists.
func (a *VoiceAggregator) VoiceLabels() *labels.VoiceLabels {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.voice == nil {
		return nil
	}
	cp := *a.voice
	return &cp
}

// FrameCount reports how many feature frames have been fed so far,
// including frames past the storage cap.
func (a *VoiceAggregator) FrameCount() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.frames
}

// Frames copies the stored (capped) frame sequence.
func (a *VoiceAggregator) Frames() []frames.FeatureFrame {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]frames.FeatureFrame, len(a.stored))
	copy(out, a.stored)
	return out
}

func (a *VoiceAggregator) record(name string, fields map[string]any) {
	tags := map[string]string{"component": "aggregator"}
	if a.streamID != "" {
		tags[frames.MetaStreamID] = a.streamID
	}
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Tags:   tags,
		Fields: fields,
	})
}

func variance(sum, sumSq, n float64) float64 {
	mean := sum / n
	v := sumSq/n - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

func durationSec(start time.Time) float64 {
	if start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
