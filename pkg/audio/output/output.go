// ABOUTME: Audio output host interfaces
// ABOUTME: Device clock, shared gain stage and timed buffer submission used by the engine
package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/lingoloop/speechplay/pkg/audio"
)

var (
	ErrSuspended    = errors.New("output suspended")
	ErrClosed       = errors.New("output closed")
	ErrDisconnected = errors.New("gain stage disconnected")
	ErrForeignGain  = errors.New("gain stage belongs to another host")
	ErrInvalidClip  = errors.New("invalid clip")
)

// Clip rates outside this range are rejected at creation
const (
	MinClipRate = 3000
	MaxClipRate = 384000
)

// Host is an audio output capable of hardware-clocked timed playback
type Host interface {
	// Now returns the device clock. It never decreases.
	Now() time.Duration

	// SampleRate is the device rate. Start times resolve to whole frames at
	// this rate.
	SampleRate() int

	// NewGain creates an unconnected gain stage at the given level
	NewGain(level float64) Gain

	// CreateClip turns decoded samples into something Start can play
	CreateClip(buf audio.Buffer) (*Clip, error)

	// Start schedules clip through gain at the first device frame at or
	// after at. A time in the past starts immediately. onEnded runs once playback completes, never while
	// the host holds internal locks, and never for voices dropped by
	// Gain.Disconnect.
	Start(clip *Clip, gain Gain, at time.Duration, onEnded func()) (Voice, error)

	Suspended() bool
	Suspend() error
	Resume() error
	Close() error
}

// Gain is the shared volume stage all voices are routed through
type Gain interface {
	Connect()
	// Disconnect silences every voice routed through this stage immediately
	Disconnect()
	SetLevel(level float64)
	Level() float64
}

// Voice is a handle to one submitted clip
type Voice interface {
	StartTime() time.Duration
	EndTime() time.Duration
}

// Clip is a playable mono buffer
type Clip struct {
	samples    []float32
	sampleRate int
}

// NewClip validates buf for playback
func NewClip(buf audio.Buffer) (*Clip, error) {
	if len(buf.Samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidClip)
	}
	if buf.SampleRate < MinClipRate || buf.SampleRate > MaxClipRate {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidClip, buf.SampleRate)
	}
	return &Clip{samples: buf.Samples, sampleRate: buf.SampleRate}, nil
}

// DeviceFrames returns the clip length in frames at deviceRate, rounded up
// so the last source sample is heard
func (c *Clip) DeviceFrames(deviceRate int) int64 {
	n, r := int64(len(c.samples)), int64(c.sampleRate)
	return (n*int64(deviceRate) + r - 1) / r
}

// SampleRate returns the clip rate
func (c *Clip) SampleRate() int { return c.sampleRate }
