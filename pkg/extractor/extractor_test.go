package extractor

import (
	"math"
	"testing"
	"time"

	"github.com/andrisyah/vokalis/pkg/dsp"
	"github.com/andrisyah/vokalis/pkg/frames"
)

func pcmSine(freq float64, rate, n int) []byte {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return dsp.EncodePCM16(samples)
}

func TestProcessEmitsOneFrameNowPerFilledWindow(t *testing.T) {
	e := New(Config{WindowSamples: 1024, Window: dsp.WindowConfig{SampleRate: 48000}})
	af := frames.NewAudioFrame("s1", time.Now().UnixNano(), pcmSine(220, 48000, 2048), 48000, 1, nil)
	out, err := e.Process(af)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("2048 samples should yield 2 windows, got %d frames", len(out))
	}
	for i, f := range out {
		ff, ok := f.(frames.FeatureFrame)
		if !ok {
			t.Fatalf("frame %d is %s, want feature", i, f.Kind())
		}
		if !ff.Voiced() {
			t.Fatalf("sine window %d should be voiced", i)
		}
		wantOffset := int64(i) * 1024 * 1000 / 48000
		if ff.OffsetMS() != wantOffset {
			t.Fatalf("window %d offset %d ms, want %d", i, ff.OffsetMS(), wantOffset)
		}
		if ff.Meta()[frames.MetaStreamID] != "s1" {
			t.Fatalf("stream id not carried through")
		}
	}
}

func TestProcessBuffersPartialWindows(t *testing.T) {
	e := New(Config{WindowSamples: 1024, Window: dsp.WindowConfig{SampleRate: 48000}})
	half := pcmSine(220, 48000, 512)
	out, _ := e.Process(frames.NewAudioFrame("s1", 1, half, 48000, 1, nil))
	if len(out) != 0 {
		t.Fatalf("half window must not emit, got %d frames", len(out))
	}
	out, _ = e.Process(frames.NewAudioFrame("s1", 2, half, 48000, 1, nil))
	if len(out) != 1 {
		t.Fatalf("second half should complete exactly one window, got %d", len(out))
	}
}

func TestAbsorbedPooledFrameReleasedOnce(t *testing.T) {
	e := New(Config{WindowSamples: 1024, Window: dsp.WindowConfig{SampleRate: 48000}})
	af := frames.NewAudioFrameFromPool("s1", 1, pcmSine(220, 48000, 512), 48000, 1, nil)

	out, err := e.Process(af)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out == nil {
		t.Fatal("absorbed input must yield an empty batch, not nil")
	}
	if len(out) != 0 {
		t.Fatalf("half window must not emit, got %d frames", len(out))
	}

	// with the batch non-nil the caller never releases, so the buffer sits
	// in the pool exactly once and consecutive acquisitions stay distinct
	a := frames.AcquireAudioBuf(1024)
	b := frames.AcquireAudioBuf(1024)
	if &a[0] == &b[0] {
		t.Fatal("pool handed out the same buffer twice")
	}
	frames.ReleaseAudioBuf(a)
	frames.ReleaseAudioBuf(b)
}

func TestProcessPassesThroughNonAudio(t *testing.T) {
	e := New(Config{})
	cf := frames.NewControlFrame("s1", 1, frames.ControlSessionEnd, nil)
	out, err := e.Process(cf)
	if err != nil || len(out) != 1 || out[0].Kind() != frames.KindControl {
		t.Fatalf("control frame should pass through untouched: %v %v", out, err)
	}
}

func TestResetDropsBufferedSamples(t *testing.T) {
	e := New(Config{WindowSamples: 1024, Window: dsp.WindowConfig{SampleRate: 48000}})
	_, _ = e.Process(frames.NewAudioFrame("s1", 1, pcmSine(220, 48000, 512), 48000, 1, nil))
	e.Reset()
	out, _ := e.Process(frames.NewAudioFrame("s1", 2, pcmSine(220, 48000, 512), 48000, 1, nil))
	if len(out) != 0 {
		t.Fatalf("reset should have discarded the first half window")
	}
}

func TestSilentWindowFeatures(t *testing.T) {
	e := New(Config{WindowSamples: 1024, Window: dsp.WindowConfig{SampleRate: 48000}})
	silent := make([]byte, 2048)
	out, _ := e.Process(frames.NewAudioFrame("s1", 1, silent, 48000, 1, nil))
	if len(out) != 1 {
		t.Fatalf("expected one window, got %d", len(out))
	}
	ff := out[0].(frames.FeatureFrame)
	if ff.RMS() != 0 || ff.Energy() != 0 || ff.ZCR() != 0 || ff.Centroid() != 0 || ff.Pitch() != 0 {
		t.Fatalf("silent window should reduce to zeros, got %+v", ff)
	}
}
