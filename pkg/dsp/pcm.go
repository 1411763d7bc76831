package dsp

import "encoding/binary"

const pcm16Scale = 32768.0

// DecodePCM16 appends little-endian PCM16 samples to dst as floats in
// [-1, 1) and returns the extended slice. A trailing odd byte is ignored.
func DecodePCM16(data []byte, dst []float64) []float64 {
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i:]))
		dst = append(dst, float64(s)/pcm16Scale)
	}
	return dst
}

// EncodePCM16 converts float samples in [-1, 1] to little-endian PCM16,
// clipping out-of-range values.
func EncodePCM16(samples []float64) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * (pcm16Scale - 1))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}
