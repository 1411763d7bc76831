package sources

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/andrisyah/vokalis/pkg/dsp"
	"github.com/andrisyah/vokalis/pkg/errorsx"
	"github.com/andrisyah/vokalis/pkg/frames"
	"github.com/andrisyah/vokalis/pkg/resilience"
)

// PortAudio initialization is process-wide setup, done once regardless of
// how many capture sessions run.
var (
	paInitOnce sync.Once
	paInitErr  error
)

func initPortAudio() error {
	paInitOnce.Do(func() {
		paInitErr = portaudio.Initialize()
	})
	return paInitErr
}

type MicConfig struct {
	SampleRate   int    `mapstructure:"sample_rate"`
	FramesPerBuf int    `mapstructure:"frames_per_buf"`
	Device       string `mapstructure:"device"`
	OpenRetries  int    `mapstructure:"open_retries"`
}

// MicSource captures mono PCM16 from the default (or named) input device.
type MicSource struct {
	cfg      MicConfig
	streamID string
	out      chan frames.Frame
	stream   *portaudio.Stream
	cancel   context.CancelFunc
	mu       sync.Mutex
	draining atomic.Bool
	stopOnce sync.Once
	retry    resilience.RetryPolicy
}

func NewMicSource(streamID string, cfg MicConfig) *MicSource {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.FramesPerBuf <= 0 {
		cfg.FramesPerBuf = 1024
	}
	return &MicSource{
		cfg:      cfg,
		streamID: streamID,
		out:      make(chan frames.Frame, 64),
		retry:    resilience.NewRetryPolicy(cfg.OpenRetries, 250*time.Millisecond),
	}
}

func (m *MicSource) Name() string                { return "mic" }
func (m *MicSource) SampleRate() int             { return m.cfg.SampleRate }
func (m *MicSource) Frames() <-chan frames.Frame { return m.out }

// Start opens the capture stream and begins pushing audio frames. A host
// with no usable audio backend fails with unsupported_audio_pipeline;
// transient open failures are retried before giving up with capture_open.
// No partial resources remain on failure.
func (m *MicSource) Start(ctx context.Context) error {
	if err := initPortAudio(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonUnsupportedPipeline)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	dev, err := m.pickDevice()
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonUnsupportedPipeline)
	}

	buf := make([]int16, m.cfg.FramesPerBuf)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(m.cfg.SampleRate),
		FramesPerBuffer: m.cfg.FramesPerBuf,
	}

	var stream *portaudio.Stream
	err = m.retry.Do(func() error {
		s, openErr := portaudio.OpenStream(params, buf)
		if openErr != nil {
			return openErr
		}
		if startErr := s.Start(); startErr != nil {
			_ = s.Close()
			return startErr
		}
		stream = s
		return nil
	})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonCaptureOpen)
	}
	m.mu.Lock()
	m.stream = stream
	m.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	slog.Info("mic_capture_started",
		"stream_id", m.streamID,
		"device", dev.Name,
		"sample_rate", m.cfg.SampleRate,
	)

	go m.readLoop(runCtx, stream, buf, dev.Name)
	return nil
}

// readLoop takes the stream as a parameter so teardown never races it:
// Close owns the field, the loop owns its copy.
func (m *MicSource) readLoop(ctx context.Context, stream *portaudio.Stream, buf []int16, device string) {
	meta := map[string]string{
		frames.MetaSource: m.Name(),
		frames.MetaDevice: device,
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := stream.Read(); err != nil {
			slog.Debug("mic_read_error",
				"stream_id", m.streamID,
				"reason_code", string(errorsx.ReasonCaptureRead),
				"error", err.Error(),
			)
			return
		}
		samples := make([]float64, len(buf))
		for i, s := range buf {
			samples[i] = float64(s) / 32768.0
		}
		af := frames.NewAudioFrameFromPool(
			m.streamID,
			time.Now().UnixNano(),
			dsp.EncodePCM16(samples),
			m.cfg.SampleRate,
			1,
			meta,
		)
		if !m.deliver(af) {
			// consumer behind; shed rather than queue
			frames.ReleaseAudioFrame(af)
		}
	}
}

func (m *MicSource) deliver(f frames.Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining.Load() {
		return false
	}
	select {
	case m.out <- f:
		return true
	default:
		return false
	}
}

func (m *MicSource) pickDevice() (*portaudio.DeviceInfo, error) {
	if m.cfg.Device == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && dev.Name == m.cfg.Device {
			return dev, nil
		}
	}
	return portaudio.DefaultInputDevice()
}

// Close stops capture and releases the stream. Idempotent; safe when Start
// never completed.
func (m *MicSource) Close() error {
	var err error
	m.stopOnce.Do(func() {
		m.draining.Store(true)
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Lock()
		stream := m.stream
		m.stream = nil
		m.mu.Unlock()
		if stream != nil {
			_ = stream.Stop()
			err = stream.Close()
		}
		m.mu.Lock()
		close(m.out)
		m.mu.Unlock()
	})
	return err
}

var _ Source = (*MicSource)(nil)
