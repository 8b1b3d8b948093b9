// ABOUTME: RIFF/WAVE PCM16 decoder
// ABOUTME: Scans container chunks in any order and downmixes stereo to mono
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/lingoloop/speechplay/pkg/audio"
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkMinSize = 16

	wavFormatPCM = 1
)

// wavFormat holds the fields of a fmt chunk we care about
type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// DecodeWavPCM16 decodes a complete RIFF/WAVE buffer holding 16-bit PCM.
func DecodeWavPCM16(data []byte) (audio.Buffer, error) {
	if len(data) < riffHeaderSize ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return audio.Buffer{}, ErrBadHeader
	}

	format, pcm, err := scanChunks(data)
	if err != nil {
		return audio.Buffer{}, err
	}

	if format.AudioFormat != wavFormatPCM {
		return audio.Buffer{}, fmt.Errorf("%w: format code %d", ErrUnsupportedFormat, format.AudioFormat)
	}
	if format.BitsPerSample != 16 {
		return audio.Buffer{}, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, format.BitsPerSample)
	}
	if format.SampleRate == 0 {
		return audio.Buffer{}, fmt.Errorf("%w: 0", ErrInvalidSampleRate)
	}

	switch format.Channels {
	case 1:
		return DecodeRawPCM16(pcm, int(format.SampleRate)), nil
	case 2:
		return downmixStereoPCM16(pcm, int(format.SampleRate)), nil
	default:
		return audio.Buffer{}, fmt.Errorf("%w: %d", ErrUnsupportedChannels, format.Channels)
	}
}

// scanChunks walks the chunk list after the RIFF header until both fmt and
// data are found. Chunk bodies are padded to even length.
func scanChunks(data []byte) (wavFormat, []byte, error) {
	var (
		format    wavFormat
		pcm       []byte
		haveFmt   bool
		haveData  bool
		offset    = riffHeaderSize
		remaining = len(data)
	)

	for offset+chunkHeaderSize <= remaining && !(haveFmt && haveData) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize

		switch id {
		case "fmt ":
			if size < fmtChunkMinSize || body+fmtChunkMinSize > remaining {
				return wavFormat{}, nil, fmt.Errorf("%w: fmt chunk", ErrTruncated)
			}
			format = wavFormat{
				AudioFormat:   binary.LittleEndian.Uint16(data[body:]),
				Channels:      binary.LittleEndian.Uint16(data[body+2:]),
				SampleRate:    binary.LittleEndian.Uint32(data[body+4:]),
				BitsPerSample: binary.LittleEndian.Uint16(data[body+14:]),
			}
			haveFmt = true
		case "data":
			if size > remaining-body {
				return wavFormat{}, nil, fmt.Errorf("%w: data chunk declares %d bytes, %d present",
					ErrTruncated, size, remaining-body)
			}
			pcm = data[body : body+size]
			haveData = true
		}

		offset = body + size + size%2
	}

	if !haveFmt || !haveData {
		return wavFormat{}, nil, ErrMissingChunk
	}
	return format, pcm, nil
}
