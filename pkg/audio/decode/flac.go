// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes a whole FLAC stream to a mono buffer for file sources
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/lingoloop/speechplay/pkg/audio"
	"github.com/mewkiz/flac"
)

// DecodeFLAC reads every frame of a FLAC stream. Samples are scaled to 16 bits
// and stereo is downmixed the same way WAV is.
func DecodeFLAC(r io.Reader) (audio.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%w: flac: %v", ErrUnsupportedFormat, err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if channels != 1 && channels != 2 {
		return audio.Buffer{}, fmt.Errorf("%w: %d", ErrUnsupportedChannels, channels)
	}

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("%w: flac frame: %v", ErrTruncated, err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			left := scaleTo16(frame.Subframes[0].Samples[i], bitDepth)
			if channels == 2 {
				right := scaleTo16(frame.Subframes[1].Samples[i], bitDepth)
				left = audio.DownmixInt16(left, right)
			}
			samples = append(samples, audio.SampleToFloat(left))
		}
	}

	return audio.Buffer{Samples: samples, SampleRate: int(info.SampleRate)}, nil
}

// scaleTo16 shifts a sample of arbitrary bit depth into the int16 range
func scaleTo16(sample int32, bitDepth int) int16 {
	shift := bitDepth - 16
	if shift > 0 {
		return int16(sample >> shift)
	}
	return int16(sample << -shift)
}
