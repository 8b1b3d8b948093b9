// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int16 or normalized float samples to little-endian PCM16 bytes
package encode

import (
	"encoding/binary"

	"github.com/lingoloop/speechplay/pkg/audio"
)

// PCM16 converts int16 samples to little-endian bytes
func PCM16(samples []int16) []byte {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(sample))
	}
	return output
}

// FloatPCM16 converts normalized float samples to little-endian PCM16 bytes
func FloatPCM16(samples []float32) []byte {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(audio.SampleFromFloat(sample)))
	}
	return output
}

// Int16s converts normalized float samples to int16
func Int16s(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = audio.SampleFromFloat(s)
	}
	return out
}
