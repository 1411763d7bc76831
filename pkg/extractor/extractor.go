// Package extractor turns raw audio frames into per-window feature frames.
package extractor

import (
	"sync"
	"time"

	"github.com/andrisyah/vokalis/pkg/dsp"
	"github.com/andrisyah/vokalis/pkg/frames"
	"github.com/andrisyah/vokalis/pkg/pipeline"
)

type Config struct {
	// WindowSamples is the non-overlapping analysis window size.
	// 1024 at 48 kHz is ~21.3 ms per frame.
	WindowSamples int
	Window        dsp.WindowConfig
}

func (c Config) withDefaults() Config {
	if c.WindowSamples <= 0 {
		c.WindowSamples = 1024
	}
	if c.Window.SampleRate <= 0 {
		c.Window.SampleRate = 48000
	}
	return c
}

// WindowExtractor accumulates PCM16 audio into a fixed-size rolling buffer
// and reduces each filled window to one FeatureFrame, synchronously, on the
// buffer-fill trigger. Windows do not overlap; the buffer resets after each
// emission.
type WindowExtractor struct {
	mu       sync.Mutex
	cfg      Config
	pending  []float64
	consumed int64
}

func New(cfg Config) *WindowExtractor {
	cfg = cfg.withDefaults()
	return &WindowExtractor{
		cfg:     cfg,
		pending: make([]float64, 0, 2*cfg.WindowSamples),
	}
}

func (e *WindowExtractor) Name() string { return "window_extractor" }

// Reset drops buffered samples and the window counter for a new session.
func (e *WindowExtractor) Reset() {
	e.mu.Lock()
	e.pending = e.pending[:0]
	e.consumed = 0
	e.mu.Unlock()
}

func (e *WindowExtractor) Process(f frames.Frame) ([]frames.Frame, error) {
	if f.Kind() != frames.KindAudio {
		return []frames.Frame{f}, nil
	}
	af := f.(frames.AudioFrame)
	meta := af.Meta()
	streamID := meta[frames.MetaStreamID]
	rate := af.Rate()
	if rate <= 0 {
		rate = e.cfg.Window.SampleRate
	}

	e.mu.Lock()
	e.pending = dsp.DecodePCM16(af.RawPayload(), e.pending)

	var out []frames.Frame
	win := e.cfg.WindowSamples
	for len(e.pending) >= win {
		windowCfg := e.cfg.Window
		windowCfg.SampleRate = rate
		feat := dsp.Analyze(e.pending[:win], windowCfg)
		offsetMS := e.consumed * 1000 / int64(rate)
		e.consumed += int64(win)
		e.pending = append(e.pending[:0], e.pending[win:]...)

		out = append(out, frames.NewFeatureFrame(
			streamID,
			time.Now().UnixNano(),
			offsetMS,
			feat.RMS, feat.Energy, feat.ZCR, feat.Centroid, feat.Pitch,
			meta,
		))
	}
	e.mu.Unlock()

	// the consumed audio frame is released here, exactly once; the batch
	// stays non-nil so the orchestrator's absorb branch never releases it
	// a second time
	frames.ReleaseAudioFrame(f)
	if out == nil {
		out = []frames.Frame{}
	}
	return out, nil
}

var _ pipeline.FrameProcessor = (*WindowExtractor)(nil)
