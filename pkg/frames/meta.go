package frames

// Well-known meta keys attached to frames.
const (
	MetaStreamID = "stream_id"
	MetaTraceID  = "trace_id"
	MetaSource   = "source"
	MetaReason   = "reason"
	MetaDevice   = "device"
)
