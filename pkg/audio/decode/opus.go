// ABOUTME: Opus audio decoder
// ABOUTME: Decodes individual Opus packets to mono buffers
package decode

import (
	"fmt"

	"github.com/lingoloop/speechplay/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is 120ms at 48kHz, the largest frame a packet can carry
const maxOpusFrame = 5760

// OpusDecoder decodes a packet stream. Unlike the container decoders it keeps
// state between packets, so one instance serves one stream.
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
	channels   int
	pcm        []int16
}

// NewOpus creates a decoder for the given output rate and channel count
func NewOpus(sampleRate, channels int) (*OpusDecoder, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}

	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:    dec,
		sampleRate: sampleRate,
		channels:   channels,
		pcm:        make([]int16, maxOpusFrame*channels),
	}, nil
}

// SampleRate returns the decoder output rate
func (d *OpusDecoder) SampleRate() int { return d.sampleRate }

// Decode converts one Opus packet into a mono buffer
func (d *OpusDecoder) Decode(packet []byte) (audio.Buffer, error) {
	if len(packet) == 0 {
		return audio.Buffer{}, ErrEmpty
	}

	n, err := d.decoder.Decode(packet, d.pcm)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: opus: %v", ErrUnsupportedFormat, err)
	}

	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		if d.channels == 2 {
			samples[i] = audio.SampleToFloat(audio.DownmixInt16(d.pcm[i*2], d.pcm[i*2+1]))
		} else {
			samples[i] = audio.SampleToFloat(d.pcm[i])
		}
	}

	return audio.Buffer{Samples: samples, SampleRate: d.sampleRate}, nil
}
