// ABOUTME: Opus audio encoder
// ABOUTME: Encodes mono PCM16 into 20ms Opus packets
package encode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// OpusEncoder encodes mono audio in fixed 20ms frames
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	frameSize  int
}

// NewOpus creates a mono VoIP-tuned encoder
func NewOpus(sampleRate int) (*OpusEncoder, error) {
	encoder, err := opus.NewEncoder(sampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: sampleRate,
		frameSize:  sampleRate / 50, // 20ms frame
	}, nil
}

// FrameSize returns the number of samples each packet must carry
func (e *OpusEncoder) FrameSize() int { return e.frameSize }

// Encode converts exactly one frame of samples to an Opus packet
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != e.frameSize {
		return nil, fmt.Errorf("opus frame must be %d samples, got %d", e.frameSize, len(pcm))
	}

	data := make([]byte, 4000) // Max Opus packet size
	n, err := e.encoder.Encode(pcm, data)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	return data[:n], nil
}
