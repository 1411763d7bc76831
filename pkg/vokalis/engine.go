package vokalis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrisyah/vokalis/pkg/aggregators"
	"github.com/andrisyah/vokalis/pkg/dsp"
	"github.com/andrisyah/vokalis/pkg/errorsx"
	"github.com/andrisyah/vokalis/pkg/extractor"
	"github.com/andrisyah/vokalis/pkg/frames"
	"github.com/andrisyah/vokalis/pkg/labels"
	"github.com/andrisyah/vokalis/pkg/logging"
	"github.com/andrisyah/vokalis/pkg/metrics"
	"github.com/andrisyah/vokalis/pkg/observers"
	"github.com/andrisyah/vokalis/pkg/pipeline"
	"github.com/andrisyah/vokalis/pkg/runner"
	"github.com/andrisyah/vokalis/pkg/sources"
)

// Engine runs one capture session at a time: a source feeds raw audio into
// the orchestrated extractor, and the session aggregator collects the
// resulting feature frames until StopSession reduces them to a summary.
type Engine struct {
	cfg      Config
	srcReg   *SourceRegistry
	registry *pipeline.SessionRegistry
	runner   *pipeline.Runner
	asyncObs *metrics.AsyncObserver
	timeline *observers.TimelineObserver
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger

	mu      sync.Mutex
	active  *captureSession
	summary *labels.FeatureSummary
	voice   *labels.VoiceLabels

	pendingMu sync.Mutex
	pending   map[string]*sessionParts
}

type sessionParts struct {
	ext *extractor.WindowExtractor
	agg *aggregators.VoiceAggregator
}

type captureSession struct {
	streamID string
	traceID  string
	source   sources.Source
	agg      *aggregators.VoiceAggregator
	pumpDone chan struct{}
}

type EngineOptions struct {
	Config  Config
	Sources *SourceRegistry
}

func NewEngine(opts EngineOptions) *Engine {
	cfg := opts.Config
	SetDefaultLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("vokalis_init",
		"environment", cfg.Environment,
		"source", cfg.Source.Provider,
	)
	pipeline.LogConfiguration(cfg.Engine)

	latencyObs := observers.NewSessionLatencyObserver(slog.Default())
	// frame-level events are chatty; sample them down before they hit the log
	logObs := metrics.NewSamplingObserver(observers.NewLoggerObserver(slog.Default()), 0.1)
	var timelineObs *observers.TimelineObserver
	var metricsFile *os.File
	obsList := []metrics.Observer{latencyObs, logObs}
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			_, _ = observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour)
		}
		timelineObs = observers.NewTimelineObserver(dir)
		obsList = append(obsList, timelineObs)
		if err := os.MkdirAll(dir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(dir, "metrics.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				metricsFile = f
				obsList = append(obsList, metrics.NewJSONLObserver(f))
			}
		}
	}
	multiObs := observers.NewMultiObserver(obsList...)
	asyncObs := metrics.NewAsyncObserver(multiObs, 2048)

	srcReg := opts.Sources
	if srcReg == nil {
		srcReg = DefaultSourceRegistry()
	}

	e := &Engine{
		cfg:      cfg,
		srcReg:   srcReg,
		asyncObs: asyncObs,
		timeline: timelineObs,
		log:      logging.NewComponentLogger(slog.Default(), "engine"),
		pending:  make(map[string]*sessionParts),
	}

	e.registry = pipeline.NewSessionRegistry(func(ctx context.Context, streamID, traceID string) (pipeline.Orchestrator, error) {
		parts := e.takePending(streamID)
		if parts == nil {
			return nil, fmt.Errorf("no session staged for stream %s", streamID)
		}
		orch := pipeline.NewWithPipelineConfig(pipeline.PipelineConfig{
			Config:     cfg.Pipeline,
			Processors: []pipeline.FrameProcessor{parts.ext},
		})
		orch.SetContext(ctx)
		orch.SetObserver(asyncObs)
		orch.SetSink(parts.agg.OnFrame)
		return orch, nil
	})

	hooks := runner.Hooks{
		OnStart: func() {
			slog.Info("engine_ready", "source", cfg.Source.Provider)
		},
		OnStop: func() {
			if asyncObs != nil {
				asyncObs.Close()
			}
			if timelineObs != nil {
				_ = timelineObs.Close()
			}
			if metricsFile != nil {
				_ = metricsFile.Close()
			}
			slog.Info("shutdown",
				"goroutines", runtime.NumGoroutine(),
				"active_sessions", e.registry.Count(),
				"dropped_metrics", asyncObs.Dropped(),
			)
		},
	}

	drainer := pipeline.DrainerFunc(func() error {
		_ = e.StopSession()
		e.registry.SetDraining(true)
		e.registry.CloseAll()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		_ = e.registry.WaitForEmpty(ctx, 200*time.Millisecond)
		return nil
	})

	e.runner = pipeline.NewDrainRunner(drainer, hooks, 30*time.Second)
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.runner.Stop()
}

// StartSession opens the configured source and begins analysis. Only one
// session runs at a time; a second call while active fails with
// already_running. The returned id identifies the session's stream.
func (e *Engine) StartSession() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return "", errorsx.New(errorsx.ReasonAlreadyRunning)
	}

	streamID := uuid.NewString()
	traceID := uuid.NewString()

	src, err := e.srcReg.Build(e.cfg.Source.Provider, e.cfg, streamID)
	if err != nil {
		return "", err
	}

	ext := extractor.New(extractor.Config{
		WindowSamples: e.cfg.Engine.WindowSamples,
		Window: dsp.WindowConfig{
			SampleRate:      e.cfg.Engine.SampleRate,
			CentroidBins:    e.cfg.Engine.CentroidBins,
			PitchMinHz:      e.cfg.Pitch.MinHz,
			PitchMaxHz:      e.cfg.Pitch.MaxHz,
			PitchConfidence: e.cfg.Pitch.Confidence,
		},
	})
	agg := aggregators.NewVoiceAggregator(aggregators.AggregatorConfig{
		MaxFrames: e.cfg.Aggregator.MaxFrames,
	})
	agg.SetObserver(e.asyncObs)
	agg.SetStreamID(streamID)
	if err := agg.Start(src.Close); err != nil {
		return "", err
	}

	e.stagePending(streamID, &sessionParts{ext: ext, agg: agg})
	sess, _, err := e.registry.GetOrCreate(streamID, traceID)
	if err != nil {
		e.takePending(streamID)
		_ = agg.Stop()
		return "", err
	}

	if err := src.Start(e.ctx); err != nil {
		e.registry.Remove(streamID)
		_ = agg.Stop()
		return "", err
	}

	e.asyncObs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventCaptureStart,
		Time: time.Now(),
		Tags: map[string]string{
			frames.MetaStreamID: streamID,
			frames.MetaTraceID:  traceID,
			frames.MetaSource:   src.Name(),
			"component":         "engine",
		},
		Fields: map[string]any{"sample_rate": src.SampleRate()},
	})

	cs := &captureSession{
		streamID: streamID,
		traceID:  traceID,
		source:   src,
		agg:      agg,
		pumpDone: make(chan struct{}),
	}
	go e.pump(cs, sess)
	e.active = cs

	e.log.Info("session_started",
		"stream_id", streamID,
		"trace_id", traceID,
		"source", src.Name(),
	)
	return streamID, nil
}

func (e *Engine) pump(cs *captureSession, sess *pipeline.Session) {
	defer close(cs.pumpDone)
	for {
		select {
		case <-e.ctx.Done():
			return
		case f, ok := <-cs.source.Frames():
			if !ok {
				e.log.Debug("source_stream_ended",
					"stream_id", cs.streamID,
					"reason_code", string(errorsx.ReasonSourceClosed),
				)
				return
			}
			select {
			case sess.Orch.In() <- f:
			case <-e.ctx.Done():
				return
			}
		}
	}
}

// StopSession closes the source, lets in-flight frames settle, and reduces
// the session to its summary and labels. Idempotent: without an active
// session it is a no-op.
func (e *Engine) StopSession() error {
	e.mu.Lock()
	cs := e.active
	e.active = nil
	e.mu.Unlock()
	if cs == nil {
		return nil
	}

	_ = cs.source.Close()
	select {
	case <-cs.pumpDone:
	case <-time.After(2 * time.Second):
	}
	settle(cs.agg)

	summary := cs.agg.Finalize()
	voice := cs.agg.VoiceLabels()
	_ = cs.agg.Stop()
	e.registry.Remove(cs.streamID)

	e.mu.Lock()
	e.summary = &summary
	e.voice = voice
	e.mu.Unlock()

	e.log.Info("session_stopped",
		"stream_id", cs.streamID,
		"frame_count", summary.FrameCount,
		"duration_sec", summary.DurationSec,
	)
	return nil
}

// settle waits until the aggregator's frame count stops advancing, bounded
// to a second. Stage buffers between source close and sink are small.
func settle(agg *aggregators.VoiceAggregator) {
	deadline := time.Now().Add(time.Second)
	last := agg.FrameCount()
	stable := 0
	for time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		n := agg.FrameCount()
		if n == last {
			stable++
			if stable >= 2 {
				return
			}
		} else {
			stable = 0
			last = n
		}
	}
}

// Summary returns the last finalized session summary, nil before any
// session has completed.
func (e *Engine) Summary() *labels.FeatureSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.summary == nil {
		return nil
	}
	cp := *e.summary
	return &cp
}

// Labels returns the last session's voice labels, nil before any session
// has completed.
func (e *Engine) Labels() *labels.VoiceLabels {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.voice == nil {
		return nil
	}
	cp := *e.voice
	return &cp
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// ActiveSource exposes the running session's source, nil when idle. Callers
// use it to push frames into a mock source or to await a finite source.
func (e *Engine) ActiveSource() sources.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	return e.active.source
}

// SessionDone returns the finite source's completion channel, nil for live
// sources or when no session is active.
func (e *Engine) SessionDone() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	if fin, ok := e.active.source.(sources.Finite); ok {
		return fin.Done()
	}
	return nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Registry() *pipeline.SessionRegistry { return e.registry }

func (e *Engine) stagePending(streamID string, parts *sessionParts) {
	e.pendingMu.Lock()
	e.pending[streamID] = parts
	e.pendingMu.Unlock()
}

func (e *Engine) takePending(streamID string) *sessionParts {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	parts := e.pending[streamID]
	delete(e.pending, streamID)
	return parts
}

func SetDefaultLogger(level, format string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if strings.ToLower(strings.TrimSpace(format)) == "json" {
		slog.SetDefault(logging.InitLogger(lvl))
		return
	}
	slog.SetDefault(logging.InitTextLogger(nil, lvl))
}
