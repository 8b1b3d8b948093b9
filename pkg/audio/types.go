// ABOUTME: Audio type definitions
// ABOUTME: Defines chunk encodings, decoded buffers and sample conversions
package audio

import (
	"math"
	"time"
)

const (
	// 16-bit audio range constants
	MaxInt16 = 32767
	MinInt16 = -32768

	// DefaultSampleRate is assumed for raw chunks that declare no rate
	DefaultSampleRate = 24000
)

// Encoding tags the container shape of an incoming chunk
type Encoding int

const (
	EncodingRawPCM16 Encoding = iota
	EncodingWavPCM16
	EncodingMP3
	EncodingOpus
)

// String returns the wire name of the encoding
func (e Encoding) String() string {
	switch e {
	case EncodingRawPCM16:
		return "pcm16"
	case EncodingWavPCM16:
		return "wav"
	case EncodingMP3:
		return "mp3"
	case EncodingOpus:
		return "opus"
	default:
		return "unknown"
	}
}

// ParseEncoding maps a wire name back to an Encoding
func ParseEncoding(name string) (Encoding, bool) {
	switch name {
	case "pcm16", "pcm":
		return EncodingRawPCM16, true
	case "wav":
		return EncodingWavPCM16, true
	case "mp3":
		return EncodingMP3, true
	case "opus":
		return EncodingOpus, true
	default:
		return EncodingRawPCM16, false
	}
}

// Chunk is an undecoded payload as it arrives from the speech service
type Chunk struct {
	Data       []byte
	Encoding   Encoding
	SampleRate int // Raw PCM only; containers carry their own
}

// Buffer represents decoded mono audio normalized to [-1, 1]
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Frames returns the number of sample frames
func (b Buffer) Frames() int {
	return len(b.Samples)
}

// Duration returns frames / sampleRate as a time.Duration
func (b Buffer) Duration() time.Duration {
	return FramesToDuration(int64(len(b.Samples)), b.SampleRate)
}

// FramesToDuration converts a frame count at the given rate into device time,
// truncated to the nanosecond. CeilFrames maps the result back to frames.
func FramesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	rate := int64(sampleRate)
	sec, rem := frames/rate, frames%rate
	return time.Duration(sec)*time.Second + time.Duration(rem*int64(time.Second)/rate)
}

// CeilFrames returns the first frame at or after device time d. It inverts
// FramesToDuration exactly.
func CeilFrames(d time.Duration, sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	rate := int64(sampleRate)
	sec, rem := int64(d/time.Second), int64(d%time.Second)
	if rem < 0 {
		sec--
		rem += int64(time.Second)
	}
	return sec*rate + (rem*rate+int64(time.Second)-1)/int64(time.Second)
}

// DurationToFrames converts device time into the nearest frame at the given rate
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	return int64(math.Round(d.Seconds() * float64(sampleRate)))
}

// SampleToFloat normalizes a signed 16-bit sample to [-1, 1]
func SampleToFloat(sample int16) float32 {
	v := float32(sample) / 32768
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// SampleFromFloat converts a normalized sample back to int16 with clipping
func SampleFromFloat(v float32) int16 {
	scaled := math.Round(float64(v) * 32768)
	if scaled > MaxInt16 {
		return MaxInt16
	}
	if scaled < MinInt16 {
		return MinInt16
	}
	return int16(scaled)
}

// DownmixInt16 averages a stereo frame with an arithmetic shift, not a float mean
func DownmixInt16(left, right int16) int16 {
	mono := (int32(left) + int32(right)) >> 1
	if mono > MaxInt16 {
		mono = MaxInt16
	} else if mono < MinInt16 {
		mono = MinInt16
	}
	return int16(mono)
}
