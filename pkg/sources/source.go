// Package sources provides audio sample sources feeding the analysis
// pipeline: live microphone capture, WAV file replay, websocket ingest, and
// an in-memory mock for tests.
package sources

import (
	"context"

	"github.com/andrisyah/vokalis/pkg/frames"
)

// Source is a mono audio sample stream. Implementations own their device or
// network lifecycle; Close must be safe to call from teardown paths even
// when Start never completed.
type Source interface {
	Name() string
	SampleRate() int
	Start(ctx context.Context) error
	Frames() <-chan frames.Frame
	Close() error
}

// Finite is implemented by sources that end on their own (file replay);
// Done is closed once the last frame has been delivered.
type Finite interface {
	Done() <-chan struct{}
}
