package audio

import (
	"encoding/binary"
	"time"
)

// Segment is one decoded inbound audio frame, ready to be rendered
type Segment struct {
	Samples    []float32
	SampleRate int
}

// Duration returns how long the segment plays for
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// NewSegment decodes a PCM16LE mono buffer into a segment at sampleRate
func NewSegment(pcm []byte, sampleRate int) Segment {
	return Segment{
		Samples:    DecodePCM16(pcm),
		SampleRate: sampleRate,
	}
}

// DecodePCM16 converts little-endian signed 16-bit samples to floats in [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		out[i] = float32(sample) / 32768.0
	}
	return out
}

// EncodePCM16 converts int16 samples to a little-endian byte buffer
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
