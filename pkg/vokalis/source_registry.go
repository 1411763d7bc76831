package vokalis

import (
	"fmt"
	"strings"

	"github.com/andrisyah/vokalis/pkg/configutil"
	"github.com/andrisyah/vokalis/pkg/sources"
)

// SourceFactory builds a source from the active config for one stream.
type SourceFactory func(cfg Config, streamID string) (sources.Source, error)

type SourceRegistry struct {
	factories map[string]SourceFactory
}

func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{factories: make(map[string]SourceFactory)}
}

func (r *SourceRegistry) Register(name string, factory SourceFactory) {
	r.factories[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *SourceRegistry) Build(provider string, cfg Config, streamID string) (sources.Source, error) {
	fn := r.factories[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("source provider not registered: %s", provider)
	}
	return fn(cfg, streamID)
}

// DefaultSourceRegistry registers the built-in providers: mic, wav,
// websocket, and mock.
func DefaultSourceRegistry() *SourceRegistry {
	r := NewSourceRegistry()

	r.Register("mic", func(cfg Config, streamID string) (sources.Source, error) {
		if err := validateSettings(cfg.Source.Settings, configutil.Schema{
			Optional: []string{"sample_rate", "frames_per_buf", "device", "open_retries"},
		}); err != nil {
			return nil, err
		}
		var mc sources.MicConfig
		if err := configutil.DecodeSettings(cfg.Source.Settings, &mc); err != nil {
			return nil, fmt.Errorf("mic settings: %w", err)
		}
		if mc.SampleRate <= 0 {
			mc.SampleRate = cfg.Engine.SampleRate
		}
		if mc.FramesPerBuf <= 0 {
			mc.FramesPerBuf = cfg.Engine.WindowSamples
		}
		return sources.NewMicSource(streamID, mc), nil
	})

	r.Register("wav", func(cfg Config, streamID string) (sources.Source, error) {
		if err := validateSettings(cfg.Source.Settings, configutil.Schema{
			Required: []string{"path"},
			Optional: []string{"frames_per_buf", "realtime"},
		}); err != nil {
			return nil, err
		}
		var wc sources.WAVConfig
		if err := configutil.DecodeSettings(cfg.Source.Settings, &wc); err != nil {
			return nil, fmt.Errorf("wav settings: %w", err)
		}
		if err := configutil.RequireString(wc.Path, "source.settings.path"); err != nil {
			return nil, err
		}
		if wc.FramesPerBuf <= 0 {
			wc.FramesPerBuf = cfg.Engine.WindowSamples
		}
		return sources.NewWAVSource(streamID, wc), nil
	})

	r.Register("websocket", func(cfg Config, streamID string) (sources.Source, error) {
		if err := validateSettings(cfg.Source.Settings, configutil.Schema{
			Optional: []string{"listen_addr", "path", "sample_rate", "encoding"},
		}); err != nil {
			return nil, err
		}
		var sc sources.WSConfig
		if err := configutil.DecodeSettings(cfg.Source.Settings, &sc); err != nil {
			return nil, fmt.Errorf("websocket settings: %w", err)
		}
		if sc.SampleRate <= 0 {
			sc.SampleRate = cfg.Engine.SampleRate
		}
		return sources.NewWSSource(streamID, sc), nil
	})

	r.Register("mock", func(cfg Config, streamID string) (sources.Source, error) {
		return sources.NewMockSource(streamID, cfg.Engine.SampleRate), nil
	})

	return r
}

func validateSettings(input map[string]any, schema configutil.Schema) error {
	if err := configutil.ValidateSettings(input, schema); err != nil {
		return fmt.Errorf("source.settings: %w", err)
	}
	return nil
}
