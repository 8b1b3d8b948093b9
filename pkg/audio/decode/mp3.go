// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes a self-contained MP3 chunk to a mono buffer
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/lingoloop/speechplay/pkg/audio"
)

// DecodeMP3 decodes a complete MP3 payload (one or more whole frames).
// go-mp3 always yields interleaved 16-bit stereo, which is downmixed.
func DecodeMP3(data []byte) (audio.Buffer, error) {
	return DecodeMP3Reader(bytes.NewReader(data))
}

// DecodeMP3Reader decodes an MP3 stream until EOF
func DecodeMP3Reader(r io.Reader) (audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: mp3: %v", ErrUnsupportedFormat, err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: mp3: %v", ErrTruncated, err)
	}

	return downmixStereoPCM16(pcm, decoder.SampleRate()), nil
}
