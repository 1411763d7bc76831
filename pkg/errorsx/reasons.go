package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// The host cannot provide an audio capture backend at all. Callers
	// should treat the feature as unavailable, not retry.
	ReasonUnsupportedPipeline ReasonCode = "unsupported_audio_pipeline"

	// Start was called while a prior session is still attached.
	ReasonAlreadyRunning ReasonCode = "already_running"

	ReasonCaptureOpen  ReasonCode = "capture_open"
	ReasonCaptureRead  ReasonCode = "capture_read"
	ReasonSourceClosed ReasonCode = "source_closed"
	ReasonWAVDecode    ReasonCode = "wav_decode"
	ReasonWSAccept     ReasonCode = "ws_accept"
	ReasonWSRead       ReasonCode = "ws_read"
)
