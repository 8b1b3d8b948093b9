// ABOUTME: Software mixer implementing Host
// ABOUTME: Renders scheduled clips into mono PCM16 and keeps the device clock in frames
package output

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/lingoloop/speechplay/pkg/audio"
)

// Mixer is a Host whose clock is the number of frames read from it.
// Whatever pulls Read (an oto player or a test) drives time forward.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	frame      int64
	voices     []*voice
	suspended  bool
	closed     bool
}

type voice struct {
	clip       *Clip
	gain       *gain
	startFrame int64
	endFrame   int64
	rate       int
	onEnded    func()
}

func (v *voice) StartTime() time.Duration { return audio.FramesToDuration(v.startFrame, v.rate) }
func (v *voice) EndTime() time.Duration   { return audio.FramesToDuration(v.endFrame, v.rate) }

type gain struct {
	m         *Mixer
	level     float64
	connected bool
}

// NewMixer creates a mixer rendering at sampleRate
func NewMixer(sampleRate int) *Mixer {
	return &Mixer{sampleRate: sampleRate}
}

// SampleRate returns the device rate
func (m *Mixer) SampleRate() int { return m.sampleRate }

// Now returns frames rendered so far as device time
func (m *Mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return audio.FramesToDuration(m.frame, m.sampleRate)
}

// NewGain creates an unconnected gain stage
func (m *Mixer) NewGain(level float64) Gain {
	return &gain{m: m, level: level}
}

// CreateClip validates buf for playback on this mixer
func (m *Mixer) CreateClip(buf audio.Buffer) (*Clip, error) {
	return NewClip(buf)
}

// Start places clip on the timeline at device time at
func (m *Mixer) Start(clip *Clip, g Gain, at time.Duration, onEnded func()) (Voice, error) {
	if clip == nil {
		return nil, ErrInvalidClip
	}
	mg, ok := g.(*gain)
	if !ok || mg.m != m {
		return nil, ErrForeignGain
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.suspended {
		return nil, ErrSuspended
	}
	if !mg.connected {
		return nil, ErrDisconnected
	}

	start := max(audio.CeilFrames(at, m.sampleRate), m.frame)
	length := clip.DeviceFrames(m.sampleRate)

	v := &voice{
		clip:       clip,
		gain:       mg,
		startFrame: start,
		endFrame:   start + length,
		rate:       m.sampleRate,
		onEnded:    onEnded,
	}
	m.voices = append(m.voices, v)
	return v, nil
}

// Read renders mono little-endian PCM16. While suspended it yields silence
// and the clock does not move.
func (m *Mixer) Read(p []byte) (int, error) {
	frames := len(p) / 2
	if frames == 0 {
		return 0, nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, io.EOF
	}
	if m.suspended {
		m.mu.Unlock()
		clear(p[:frames*2])
		return frames * 2, nil
	}

	base := m.frame
	for i := 0; i < frames; i++ {
		f := base + int64(i)
		var sum float64
		for _, v := range m.voices {
			if f < v.startFrame || f >= v.endFrame {
				continue
			}
			idx := (f - v.startFrame) * int64(v.clip.sampleRate) / int64(m.sampleRate)
			sum += float64(v.clip.samples[idx]) * v.gain.level
		}
		sum = math.Max(-1, math.Min(1, sum))
		binary.LittleEndian.PutUint16(p[i*2:], uint16(audio.SampleFromFloat(float32(sum))))
	}
	m.frame += int64(frames)

	var ended []func()
	kept := m.voices[:0]
	for _, v := range m.voices {
		if v.endFrame <= m.frame {
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
			continue
		}
		kept = append(kept, v)
	}
	clear(m.voices[len(kept):])
	m.voices = kept
	m.mu.Unlock()

	for _, fn := range ended {
		fn()
	}
	return frames * 2, nil
}

// Active returns the number of voices not yet finished
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

func (m *Mixer) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

func (m *Mixer) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.suspended = true
	return nil
}

func (m *Mixer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.suspended = false
	return nil
}

// Close drops all voices without firing their callbacks
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.voices = nil
	return nil
}

func (g *gain) Connect() {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.connected = true
}

func (g *gain) Disconnect() {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.connected = false

	kept := g.m.voices[:0]
	for _, v := range g.m.voices {
		if v.gain != g {
			kept = append(kept, v)
		}
	}
	clear(g.m.voices[len(kept):])
	g.m.voices = kept
}

func (g *gain) SetLevel(level float64) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.level = level
}

func (g *gain) Level() float64 {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	return g.level
}
