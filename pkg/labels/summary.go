// Package labels holds the per-session feature summary and its mapping to
// coarse human-readable voice labels.
package labels

// FeatureSummary is the reduction of one completed session's feature
// frames. Created once at finalize, never mutated. Pitch statistics cover
// voiced frames only; a session with no frames yields the neutral zero
// summary (duration aside).
type FeatureSummary struct {
	DurationSec   float64 `json:"duration_sec"`
	VolumeAvg     float64 `json:"volume_avg"`
	VolumeVar     float64 `json:"volume_var"`
	EnergyAvg     float64 `json:"energy_avg"`
	EnergyVar     float64 `json:"energy_var"`
	PitchAvg      float64 `json:"pitch_avg"`
	PitchStd      float64 `json:"pitch_std"`
	Jitter        float64 `json:"jitter"`
	Shimmer       float64 `json:"shimmer"`
	BrightnessAvg float64 `json:"brightness_avg"`
	BrightnessStd float64 `json:"brightness_std"`
	VoicedRatio   float64 `json:"voiced_ratio"`

	// FrameCount is every frame fed to the session, including frames past
	// the storage cap; StoredFrames is the retained sequence length.
	FrameCount   int64 `json:"frame_count"`
	StoredFrames int   `json:"stored_frames"`
}

// Voiced reports whether any pitch was detected during the session.
func (s FeatureSummary) Voiced() bool { return s.VoicedRatio > 0 }
