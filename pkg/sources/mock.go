package sources

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andrisyah/vokalis/pkg/dsp"
	"github.com/andrisyah/vokalis/pkg/frames"
)

// MockSource is an in-memory source for local testing and integration. Frames
// are injected with Push or PushSamples; it implements Source without any
// device or network dependency.
type MockSource struct {
	streamID string
	rate     int
	out      chan frames.Frame
	done     chan struct{}
	closed   atomic.Bool
	mu       sync.Mutex
}

func NewMockSource(streamID string, sampleRate int) *MockSource {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &MockSource{
		streamID: streamID,
		rate:     sampleRate,
		out:      make(chan frames.Frame, 256),
		done:     make(chan struct{}),
	}
}

func (m *MockSource) Name() string                { return "mock" }
func (m *MockSource) SampleRate() int             { return m.rate }
func (m *MockSource) Frames() <-chan frames.Frame { return m.out }
func (m *MockSource) Done() <-chan struct{}       { return m.done }

func (m *MockSource) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = m.Close()
	}()
	return nil
}

// Push injects a frame. Dropped silently once closed or when the consumer is
// behind, matching live-source shedding.
func (m *MockSource) Push(f frames.Frame) {
	if m.closed.Load() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return
	}
	select {
	case m.out <- f:
	default:
	}
}

// PushSamples wraps float64 samples in [-1, 1] as a PCM16 audio frame.
func (m *MockSource) PushSamples(samples []float64) {
	m.Push(frames.NewAudioFrame(
		m.streamID,
		time.Now().UnixNano(),
		dsp.EncodePCM16(samples),
		m.rate,
		1,
		map[string]string{frames.MetaSource: m.Name()},
	))
}

// Finish marks the stream complete without closing the frame channel's
// consumer side first, mirroring a file source reaching EOF.
func (m *MockSource) Finish() {
	if m.closed.CompareAndSwap(false, true) {
		m.mu.Lock()
		close(m.out)
		m.mu.Unlock()
		close(m.done)
	}
}

func (m *MockSource) Close() error {
	m.Finish()
	return nil
}

var (
	_ Source = (*MockSource)(nil)
	_ Finite = (*MockSource)(nil)
)
