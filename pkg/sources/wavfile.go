package sources

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/youpy/go-wav"

	"github.com/andrisyah/vokalis/pkg/errorsx"
	"github.com/andrisyah/vokalis/pkg/frames"
)

type WAVConfig struct {
	Path         string `mapstructure:"path"`
	FramesPerBuf int    `mapstructure:"frames_per_buf"`
	// Realtime paces replay at the file's sample rate instead of reading
	// as fast as the pipeline drains.
	Realtime bool `mapstructure:"realtime"`
}

// WAVSource replays a mono PCM16 WAV file as audio frames. It is a finite
// source: Done closes after the last frame is delivered.
type WAVSource struct {
	cfg      WAVConfig
	streamID string
	out      chan frames.Frame
	done     chan struct{}
	cancel   context.CancelFunc
	mu       sync.Mutex
	draining atomic.Bool
	stopOnce sync.Once

	file *os.File
	rate int
	pts  *frames.PTSGen
}

func NewWAVSource(streamID string, cfg WAVConfig) *WAVSource {
	if cfg.FramesPerBuf <= 0 {
		cfg.FramesPerBuf = 1024
	}
	return &WAVSource{
		cfg:      cfg,
		streamID: streamID,
		out:      make(chan frames.Frame, 64),
		done:     make(chan struct{}),
		pts:      frames.NewPTSGen(),
	}
}

func (w *WAVSource) Name() string                { return "wav" }
func (w *WAVSource) SampleRate() int             { return w.rate }
func (w *WAVSource) Frames() <-chan frames.Frame { return w.out }
func (w *WAVSource) Done() <-chan struct{}       { return w.done }

// Start validates the file header and begins replay. The sample rate is only
// known after Start returns.
func (w *WAVSource) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	file, err := os.Open(w.cfg.Path)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonCaptureOpen)
	}
	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		_ = file.Close()
		return errorsx.Wrap(err, errorsx.ReasonWAVDecode)
	}
	w.file = file
	w.rate = int(format.SampleRate)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	slog.Info("wav_replay_started",
		"stream_id", w.streamID,
		"path", w.cfg.Path,
		"sample_rate", w.rate,
		"channels", format.NumChannels,
	)

	go w.replay(runCtx, reader, int(format.NumChannels))
	return nil
}

func (w *WAVSource) replay(ctx context.Context, reader *wav.Reader, channels int) {
	defer close(w.done)
	meta := map[string]string{frames.MetaSource: w.Name()}
	pacing := time.Duration(0)
	if w.cfg.Realtime && w.rate > 0 {
		pacing = time.Duration(w.cfg.FramesPerBuf) * time.Second / time.Duration(w.rate)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		samples, err := reader.ReadSamples(uint32(w.cfg.FramesPerBuf))
		if len(samples) > 0 {
			data := make([]byte, 2*len(samples))
			for i, s := range samples {
				// downmix by taking the first channel
				binary.LittleEndian.PutUint16(data[2*i:], uint16(int16(s.Values[0])))
			}
			// synthetic PTS: replay is not wall-clock paced, so frames
			// must not look stale to lag shedding
			af := frames.NewAudioFrame(w.streamID, w.pts.Next(w.streamID), data, w.rate, channels, meta)
			if !w.deliver(ctx, af) {
				return
			}
			if pacing > 0 {
				select {
				case <-time.After(pacing):
				case <-ctx.Done():
					return
				}
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			slog.Warn("wav_read_error",
				"stream_id", w.streamID,
				"reason_code", string(errorsx.ReasonWAVDecode),
				"error", err.Error(),
			)
			return
		}
	}
}

// deliver blocks until the frame is queued, replay is cancelled, or Close
// has run. File replay never sheds frames.
func (w *WAVSource) deliver(ctx context.Context, f frames.Frame) bool {
	for {
		w.mu.Lock()
		if w.draining.Load() {
			w.mu.Unlock()
			return false
		}
		select {
		case w.out <- f:
			w.mu.Unlock()
			return true
		default:
		}
		w.mu.Unlock()
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Millisecond):
		}
	}
}

// Close stops replay and releases the file. Idempotent.
func (w *WAVSource) Close() error {
	var err error
	w.stopOnce.Do(func() {
		w.draining.Store(true)
		if w.cancel != nil {
			w.cancel()
		}
		if w.file != nil {
			err = w.file.Close()
			w.file = nil
		}
		w.mu.Lock()
		close(w.out)
		w.mu.Unlock()
	})
	return err
}

var (
	_ Source = (*WAVSource)(nil)
	_ Finite = (*WAVSource)(nil)
)
