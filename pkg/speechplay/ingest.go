// ABOUTME: Chunk ingestion for the playback engine
// ABOUTME: Decodes raw PCM16, WAV, MP3 and Opus payloads and schedules them
package speechplay

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/lingoloop/speechplay/pkg/audio"
	"github.com/lingoloop/speechplay/pkg/audio/decode"
)

// ErrBadBase64 is reported for payloads that are not valid standard base64
var ErrBadBase64 = errors.New("invalid base64 payload")

// Ingestion never returns an error: rejected chunks are counted in Stats and
// reported through OnDrop.

// AddPCM16 schedules raw little-endian mono PCM16
func (e *Engine) AddPCM16(data []byte, opts AddOptions) {
	e.AddChunk(audio.Chunk{Data: data, Encoding: audio.EncodingRawPCM16, SampleRate: opts.SampleRate}, opts)
}

// AddWavPCM16 schedules a RIFF/WAVE PCM16 buffer
func (e *Engine) AddWavPCM16(data []byte, opts AddOptions) {
	e.AddChunk(audio.Chunk{Data: data, Encoding: audio.EncodingWavPCM16}, opts)
}

// AddMP3 schedules a self-contained MP3 payload
func (e *Engine) AddMP3(data []byte, opts AddOptions) {
	e.AddChunk(audio.Chunk{Data: data, Encoding: audio.EncodingMP3}, opts)
}

// AddOpus schedules one Opus packet. Packets share decoder state until Stop.
func (e *Engine) AddOpus(packet []byte, opts AddOptions) {
	e.AddChunk(audio.Chunk{Data: packet, Encoding: audio.EncodingOpus, SampleRate: opts.SampleRate}, opts)
}

// AddBase64PCM16 decodes base64 and schedules the result as raw PCM16
func (e *Engine) AddBase64PCM16(b64 string, opts AddOptions) {
	e.addBase64(b64, audio.EncodingRawPCM16, opts)
}

// AddBase64WavPCM16 decodes base64 and schedules the result as WAV
func (e *Engine) AddBase64WavPCM16(b64 string, opts AddOptions) {
	e.addBase64(b64, audio.EncodingWavPCM16, opts)
}

// AddBase64MP3 decodes base64 and schedules the result as MP3
func (e *Engine) AddBase64MP3(b64 string, opts AddOptions) {
	e.addBase64(b64, audio.EncodingMP3, opts)
}

// AddBase64Opus decodes base64 and schedules the result as one Opus packet
func (e *Engine) AddBase64Opus(b64 string, opts AddOptions) {
	e.addBase64(b64, audio.EncodingOpus, opts)
}

func (e *Engine) addBase64(b64 string, enc audio.Encoding, opts AddOptions) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		e.reject(opts, fmt.Errorf("%w: %v", ErrBadBase64, err))
		return
	}
	e.AddChunk(audio.Chunk{Data: data, Encoding: enc, SampleRate: opts.SampleRate}, opts)
}

// reject applies the inline volume and records an ingestion failure that
// happened before decoding
func (e *Engine) reject(opts AddOptions, err error) {
	e.mu.Lock()
	defer e.unlock()

	if e.host == nil {
		return
	}
	if opts.Volume != nil {
		e.setVolumeLocked(*opts.Volume)
	}
	e.stats.Received++
	e.stats.Rejected++
	e.dropLocked(err)
}

// AddChunk decodes chunk and schedules it. The inline volume, if any, is
// applied first and affects everything already playing.
func (e *Engine) AddChunk(chunk audio.Chunk, opts AddOptions) {
	e.mu.Lock()
	defer e.unlock()

	if e.host == nil {
		return
	}
	if opts.Volume != nil {
		e.setVolumeLocked(*opts.Volume)
	}
	e.stats.Received++

	buf, err := e.decodeLocked(chunk)
	if err != nil {
		e.stats.Rejected++
		e.dropLocked(err)
		return
	}
	e.scheduleLocked(buf)
}

func (e *Engine) decodeLocked(chunk audio.Chunk) (audio.Buffer, error) {
	switch chunk.Encoding {
	case audio.EncodingRawPCM16:
		if chunk.SampleRate == 0 {
			chunk.SampleRate = e.config.DefaultSampleRate
		}
		return decode.Decode(chunk)
	case audio.EncodingOpus:
		rate := chunk.SampleRate
		if rate == 0 {
			rate = e.config.OpusSampleRate
		}
		if e.opus == nil || e.opus.SampleRate() != rate {
			dec, err := decode.NewOpus(rate, 1)
			if err != nil {
				return audio.Buffer{}, err
			}
			e.opus = dec
		}
		return e.opus.Decode(chunk.Data)
	default:
		return decode.Decode(chunk)
	}
}
