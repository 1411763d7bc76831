// Package dsp implements the per-window acoustic feature math. All functions
// are deterministic and allocation-free on the hot path.
package dsp

import "math"

const denomFloor = 1e-12

type WindowConfig struct {
	SampleRate      int
	CentroidBins    int
	PitchMinHz      float64
	PitchMaxHz      float64
	PitchConfidence float64
}

func (c WindowConfig) withDefaults() WindowConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.CentroidBins <= 0 {
		c.CentroidBins = 64
	}
	if c.PitchMinHz <= 0 {
		c.PitchMinHz = 60
	}
	if c.PitchMaxHz <= c.PitchMinHz {
		c.PitchMaxHz = 400
	}
	if c.PitchConfidence <= 0 {
		c.PitchConfidence = 0.3
	}
	return c
}

// Features holds the reduction of one analysis window.
type Features struct {
	RMS      float64
	Energy   float64
	ZCR      float64
	Centroid float64
	Pitch    float64
}

// Analyze reduces one window of mono samples in [-1, 1] to its features.
// An empty window yields the zero value.
func Analyze(samples []float64, cfg WindowConfig) Features {
	cfg = cfg.withDefaults()
	n := len(samples)
	if n == 0 {
		return Features{}
	}

	var energy float64
	crossings := 0
	for i, s := range samples {
		energy += s * s
		if i > 0 && samples[i-1]*s < 0 {
			crossings++
		}
	}

	return Features{
		RMS:      math.Sqrt(energy / float64(n)),
		Energy:   energy,
		ZCR:      float64(crossings) / float64(n),
		Centroid: SpectralCentroid(samples, cfg.SampleRate, cfg.CentroidBins),
		Pitch:    EstimatePitch(samples, cfg),
	}
}

// SpectralCentroid estimates brightness by correlating the window against
// bins harmonically spaced frequencies, freq[k] = k*rate/(2*bins), and taking
// the magnitude-squared weighted mean frequency. Returns 0 when the window
// carries no measurable energy.
func SpectralCentroid(samples []float64, rate, bins int) float64 {
	n := len(samples)
	if n == 0 || bins <= 0 || rate <= 0 {
		return 0
	}
	var num, den float64
	for k := 1; k <= bins; k++ {
		freq := float64(k) * float64(rate) / (2 * float64(bins))
		omega := 2 * math.Pi * freq / float64(rate)
		var re, im float64
		for i, s := range samples {
			re += s * math.Cos(omega*float64(i))
			im += s * math.Sin(omega*float64(i))
		}
		mag2 := re*re + im*im
		num += freq * mag2
		den += mag2
	}
	if den < denomFloor {
		return 0
	}
	return num / den
}

// EstimatePitch runs an autocorrelation search over the configured pitch band
// and returns the fundamental in Hz, or 0 when no lag clears the confidence
// ratio (unvoiced).
func EstimatePitch(samples []float64, cfg WindowConfig) float64 {
	cfg = cfg.withDefaults()
	n := len(samples)
	if n == 0 {
		return 0
	}

	var mean float64
	for _, s := range samples {
		mean += s
	}
	mean /= float64(n)

	var zeroLag float64
	for _, s := range samples {
		d := s - mean
		zeroLag += d * d
	}
	if zeroLag < denomFloor {
		return 0
	}

	rate := float64(cfg.SampleRate)
	minLag := int(rate / cfg.PitchMaxHz)
	maxLag := int(rate / cfg.PitchMinHz)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > n-1 {
		maxLag = n - 1
	}
	if minLag > maxLag {
		return 0
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i < n-lag; i++ {
			corr += (samples[i] - mean) * (samples[i+lag] - mean)
		}
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0
	}
	if bestCorr/zeroLag <= cfg.PitchConfidence {
		return 0
	}
	return rate / float64(bestLag)
}
