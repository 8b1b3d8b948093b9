// ABOUTME: Raw PCM16 decoder
// ABOUTME: Decodes little-endian signed 16-bit samples to normalized floats
package decode

import (
	"encoding/binary"

	"github.com/lingoloop/speechplay/pkg/audio"
)

// DecodeRawPCM16 interprets data as little-endian int16 mono samples.
// A trailing odd byte is dropped; the declared rate is passed through.
func DecodeRawPCM16(data []byte, sampleRate int) audio.Buffer {
	numSamples := len(data) / 2
	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = audio.SampleToFloat(sample16)
	}

	return audio.Buffer{
		Samples:    samples,
		SampleRate: sampleRate,
	}
}

// downmixStereoPCM16 folds interleaved stereo frames into mono.
// A trailing partial frame is dropped.
func downmixStereoPCM16(data []byte, sampleRate int) audio.Buffer {
	numFrames := len(data) / 4
	samples := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		left := int16(binary.LittleEndian.Uint16(data[i*4:]))
		right := int16(binary.LittleEndian.Uint16(data[i*4+2:]))
		samples[i] = audio.SampleToFloat(audio.DownmixInt16(left, right))
	}

	return audio.Buffer{
		Samples:    samples,
		SampleRate: sampleRate,
	}
}
