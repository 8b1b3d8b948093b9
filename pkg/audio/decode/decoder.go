// ABOUTME: Decoder entry points and rejection reasons
// ABOUTME: Routes a chunk to the decoder matching its encoding tag
package decode

import (
	"errors"
	"fmt"

	"github.com/lingoloop/speechplay/pkg/audio"
)

// Rejection reasons. A decode either yields a buffer or exactly one of these
// (possibly wrapped with detail).
var (
	ErrBadHeader           = errors.New("not a RIFF/WAVE container")
	ErrMissingChunk        = errors.New("missing fmt or data chunk")
	ErrUnsupportedFormat   = errors.New("unsupported audio format")
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
	ErrUnsupportedChannels = errors.New("unsupported channel count")
	ErrTruncated           = errors.New("truncated chunk")
	ErrEmpty               = errors.New("no audio frames")
	ErrInvalidSampleRate   = errors.New("invalid sample rate")
)

// Decode turns a chunk into a mono buffer. Stateful encodings (Opus) are not
// handled here; use an OpusDecoder.
func Decode(chunk audio.Chunk) (audio.Buffer, error) {
	var (
		buf audio.Buffer
		err error
	)

	switch chunk.Encoding {
	case audio.EncodingRawPCM16:
		if chunk.SampleRate <= 0 {
			return audio.Buffer{}, fmt.Errorf("%w: %d", ErrInvalidSampleRate, chunk.SampleRate)
		}
		buf = DecodeRawPCM16(chunk.Data, chunk.SampleRate)
	case audio.EncodingWavPCM16:
		buf, err = DecodeWavPCM16(chunk.Data)
	case audio.EncodingMP3:
		buf, err = DecodeMP3(chunk.Data)
	default:
		return audio.Buffer{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, chunk.Encoding)
	}
	if err != nil {
		return audio.Buffer{}, err
	}

	if buf.Frames() == 0 {
		return audio.Buffer{}, ErrEmpty
	}
	return buf, nil
}
