// ABOUTME: Audio sources for the speech feed
// ABOUTME: Provides a synthetic speech-like tone and decoded file sources
package feed

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lingoloop/speechplay/pkg/audio"
	"github.com/lingoloop/speechplay/pkg/audio/decode"
	"github.com/lingoloop/speechplay/pkg/audio/resample"
)

// Source provides mono PCM16 for streaming
type Source interface {
	// Read fills samples and returns how many were written. It returns
	// io.EOF once the source is exhausted.
	Read(samples []int16) (int, error)

	SampleRate() int
	Name() string
	Close() error
}

// ToneSource generates a syllable-shaped tone: bursts of a gliding sine
// separated by short pauses, roughly the rhythm of speech
type ToneSource struct {
	mu          sync.Mutex
	sampleIndex int64
	total       int64 // 0 means endless
	sampleRate  int
	frequency   float64
}

// NewToneSource creates a tone lasting seconds (0 for endless)
func NewToneSource(sampleRate int, seconds float64) *ToneSource {
	if sampleRate == 0 {
		sampleRate = audio.DefaultSampleRate
	}
	return &ToneSource{
		sampleRate: sampleRate,
		frequency:  220.0,
		total:      int64(seconds * float64(sampleRate)),
	}
}

func (s *ToneSource) Read(samples []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(samples)
	if s.total > 0 {
		remaining := s.total - s.sampleIndex
		if remaining <= 0 {
			return 0, io.EOF
		}
		n = int(min(int64(n), remaining))
	}

	syllable := int64(s.sampleRate) / 4 // 250ms on, then 250ms off
	for i := 0; i < n; i++ {
		idx := s.sampleIndex + int64(i)
		pos := idx % (2 * syllable)
		if pos >= syllable {
			samples[i] = 0
			continue
		}

		t := float64(idx) / float64(s.sampleRate)
		env := math.Sin(math.Pi * float64(pos) / float64(syllable))
		freq := s.frequency * (1 + 0.2*float64(pos)/float64(syllable))
		samples[i] = int16(0.4 * env * math.Sin(2*math.Pi*freq*t) * audio.MaxInt16)
	}

	s.sampleIndex += int64(n)
	return n, nil
}

func (s *ToneSource) SampleRate() int { return s.sampleRate }
func (s *ToneSource) Name() string    { return "tone" }
func (s *ToneSource) Close() error    { return nil }

// BufferSource replays a decoded buffer
type BufferSource struct {
	mu   sync.Mutex
	name string
	buf  audio.Buffer
	pos  int
}

// NewBufferSource wraps an already decoded buffer
func NewBufferSource(name string, buf audio.Buffer) *BufferSource {
	return &BufferSource{name: name, buf: buf}
}

func (s *BufferSource) Read(samples []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.buf.Samples) {
		return 0, io.EOF
	}

	n := min(len(samples), len(s.buf.Samples)-s.pos)
	for i := 0; i < n; i++ {
		samples[i] = audio.SampleFromFloat(s.buf.Samples[s.pos+i])
	}
	s.pos += n
	return n, nil
}

func (s *BufferSource) SampleRate() int { return s.buf.SampleRate }
func (s *BufferSource) Name() string    { return s.name }
func (s *BufferSource) Close() error    { return nil }

// NewFileSource decodes a WAV, MP3 or FLAC file into memory
func NewFileSource(path string) (*BufferSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var buf audio.Buffer
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		data, rerr := io.ReadAll(f)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, rerr)
		}
		buf, err = decode.DecodeWavPCM16(data)
	case ".mp3":
		buf, err = decode.DecodeMP3Reader(f)
	case ".flac":
		buf, err = decode.DecodeFLAC(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return NewBufferSource(filepath.Base(path), buf), nil
}

// resampledSource converts another source to a fixed rate
type resampledSource struct {
	Source
	r       *resample.Resampler
	pending []int16
	scratch []int16
	eof     bool
}

// Resample returns src converted to sampleRate. A source already at that
// rate is returned unchanged.
func Resample(src Source, sampleRate int) Source {
	if src.SampleRate() == sampleRate {
		return src
	}
	return &resampledSource{
		Source:  src,
		r:       resample.New(src.SampleRate(), sampleRate),
		scratch: make([]int16, 1024),
	}
}

func (s *resampledSource) Read(samples []int16) (int, error) {
	for len(s.pending) < len(samples) && !s.eof {
		n, err := s.Source.Read(s.scratch)
		s.pending = s.r.Process(s.scratch[:n], s.pending)
		if errors.Is(err, io.EOF) {
			s.pending = s.r.Flush(s.pending)
			s.eof = true
		} else if err != nil {
			return 0, err
		}
	}

	if len(s.pending) == 0 && s.eof {
		return 0, io.EOF
	}
	n := copy(samples, s.pending)
	s.pending = append(s.pending[:0], s.pending[n:]...)
	return n, nil
}

func (s *resampledSource) SampleRate() int { return s.r.OutputRate() }
