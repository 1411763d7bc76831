package sources

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zaf/g711"

	"github.com/andrisyah/vokalis/pkg/errorsx"
	"github.com/andrisyah/vokalis/pkg/frames"
)

type WSConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Path       string `mapstructure:"path"`
	SampleRate int    `mapstructure:"sample_rate"`
	// Encoding of inbound binary messages: "pcm16" (default) or "mulaw"
	// for telephony-style streams.
	Encoding string `mapstructure:"encoding"`
}

func (c WSConfig) withDefaults() WSConfig {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8787"
	}
	if c.Path == "" {
		c.Path = "/ingest"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.Encoding == "" {
		c.Encoding = "pcm16"
	}
	return c
}

// WSSource accepts a websocket connection and treats each binary message as
// raw mono PCM16 little-endian audio. One connection is live at a time; a new
// connection displaces the previous one.
type WSSource struct {
	cfg      WSConfig
	streamID string
	out      chan frames.Frame
	server   *http.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conn  *websocket.Conn
	mulaw bool

	draining atomic.Bool
	stopOnce sync.Once
}

func NewWSSource(streamID string, cfg WSConfig) *WSSource {
	cfg = cfg.withDefaults()
	return &WSSource{
		cfg:      cfg,
		mulaw:    strings.EqualFold(cfg.Encoding, "mulaw"),
		streamID: streamID,
		out:      make(chan frames.Frame, 256),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *WSSource) Name() string                { return "websocket" }
func (s *WSSource) SampleRate() int             { return s.cfg.SampleRate }
func (s *WSSource) Frames() <-chan frames.Frame { return s.out }

func (s *WSSource) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.server = &http.Server{
		Addr:              s.cfg.ListenAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = s.server.Close()
	}()
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ws_source_server_error",
				"reason_code", string(errorsx.ReasonWSAccept),
				"error", err.Error(),
			)
		}
	}()
	slog.Info("ws_source_listening",
		"stream_id", s.streamID,
		"addr", s.cfg.ListenAddr,
		"path", s.cfg.Path,
	)
	return nil
}

func (s *WSSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws_upgrade_failed",
			"reason_code", string(errorsx.ReasonWSAccept),
			"error", err.Error(),
		)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	if prev := s.conn; prev != nil {
		_ = prev.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	meta := map[string]string{
		frames.MetaSource: s.Name(),
	}
	defer func() {
		s.deliver(frames.NewSystemFrame(s.streamID, time.Now().UnixNano(), "ws_disconnect", meta))
	}()
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !s.draining.Load() {
				slog.Debug("ws_read_closed",
					"stream_id", s.streamID,
					"reason_code", string(errorsx.ReasonWSRead),
					"error", err.Error(),
				)
			}
			return
		}
		if msgType != websocket.BinaryMessage || len(msg) == 0 {
			continue
		}
		if s.mulaw {
			msg = g711.DecodeUlaw(msg)
		}
		if len(msg) < 2 {
			continue
		}
		af := frames.NewAudioFrameFromPool(
			s.streamID,
			time.Now().UnixNano(),
			msg,
			s.cfg.SampleRate,
			1,
			meta,
		)
		if !s.deliver(af) {
			frames.ReleaseAudioFrame(af)
		}
	}
}

// deliver performs a shed-on-full send, refusing once Close has run so a
// late handler goroutine never writes to the closed channel.
func (s *WSSource) deliver(f frames.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining.Load() {
		return false
	}
	select {
	case s.out <- f:
		return true
	default:
		return false
	}
}

// Close stops accepting and drops the live connection. Idempotent.
func (s *WSSource) Close() error {
	s.stopOnce.Do(func() {
		s.draining.Store(true)
		if s.server != nil {
			_ = s.server.Close()
		}
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
			s.conn = nil
		}
		close(s.out)
		s.mu.Unlock()
	})
	return nil
}

var _ Source = (*WSSource)(nil)
