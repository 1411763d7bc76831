package labels

import "fmt"

type VolumeLevel string

const (
	VolumeLow    VolumeLevel = "low"
	VolumeMedium VolumeLevel = "medium"
	VolumeHigh   VolumeLevel = "high"
)

type ToneVariation string

const (
	ToneFlat       ToneVariation = "flat"
	ToneNatural    ToneVariation = "natural"
	ToneExpressive ToneVariation = "expressive"
)

type Nervousness string

const (
	NervousnessLow    Nervousness = "low"
	NervousnessMedium Nervousness = "medium"
	NervousnessHigh   Nervousness = "high"
)

// Classification thresholds. Tunable, but the ordering of the resulting
// bands must be preserved.
const (
	volumeMediumFloor = 0.015
	volumeHighFloor   = 0.05

	toneNaturalFloor    = 8.0
	toneExpressiveFloor = 30.0

	jitterNervous     = 0.08
	shimmerNervous    = 0.12
	brightnessNervous = 500.0

	pacedFluidFloor = 0.75
	pacedSparseCeil = 0.25
)

// VoiceLabels is a derived view over a FeatureSummary; it has no lifecycle
// of its own and is recomputed whenever a new summary exists.
type VoiceLabels struct {
	Volume      VolumeLevel   `json:"volume"`
	Tone        ToneVariation `json:"tone"`
	Nervousness Nervousness   `json:"nervousness"`
	Pace        string        `json:"pace,omitempty"`
	Notes       []string      `json:"notes,omitempty"`
}

// Classify maps a summary to labels. Total: any valid summary, including
// the all-zero one, classifies without error.
func Classify(s FeatureSummary) VoiceLabels {
	out := VoiceLabels{
		Volume:      classifyVolume(s.VolumeAvg),
		Tone:        classifyTone(s.PitchStd),
		Nervousness: classifyNervousness(s),
		Pace:        paceHint(s),
	}
	out.Notes = notes(s, out)
	return out
}

func classifyVolume(avg float64) VolumeLevel {
	switch {
	case avg < volumeMediumFloor:
		return VolumeLow
	case avg < volumeHighFloor:
		return VolumeMedium
	default:
		return VolumeHigh
	}
}

func classifyTone(pitchStd float64) ToneVariation {
	switch {
	case pitchStd < toneNaturalFloor:
		return ToneFlat
	case pitchStd < toneExpressiveFloor:
		return ToneNatural
	default:
		return ToneExpressive
	}
}

func classifyNervousness(s FeatureSummary) Nervousness {
	score := 0
	if s.Jitter > jitterNervous {
		score++
	}
	if s.Shimmer > shimmerNervous {
		score++
	}
	if s.BrightnessStd > brightnessNervous {
		score++
	}
	switch {
	case score >= 2:
		return NervousnessHigh
	case score == 1:
		return NervousnessMedium
	default:
		return NervousnessLow
	}
}

func paceHint(s FeatureSummary) string {
	if s.FrameCount == 0 {
		return ""
	}
	switch {
	case s.VoicedRatio >= pacedFluidFloor:
		return "fluid"
	case s.VoicedRatio <= pacedSparseCeil:
		return "sparse"
	default:
		return "measured"
	}
}

// notes are informational diagnostics only; nothing downstream parses them.
func notes(s FeatureSummary, l VoiceLabels) []string {
	out := []string{
		fmt.Sprintf("rms %.4f (%s volume)", s.VolumeAvg, l.Volume),
	}
	if s.Voiced() {
		out = append(out, fmt.Sprintf("pitch %.0f Hz ± %.0f", s.PitchAvg, s.PitchStd))
	}
	out = append(out,
		fmt.Sprintf("jitter %.1f%%", s.Jitter*100),
		fmt.Sprintf("shimmer %.1f%%", s.Shimmer*100),
		fmt.Sprintf("centroid std %.0f Hz", s.BrightnessStd),
	)
	return out
}
