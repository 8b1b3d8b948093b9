// ABOUTME: Tests for WAV PCM16 decoding
// ABOUTME: Tests header validation, chunk scanning and stereo downmix
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/lingoloop/speechplay/pkg/audio/encode"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// wavChunk is one raw chunk for hand-assembled containers
type wavChunk struct {
	id   string
	body []byte
}

func fmtBody(format, channels uint16, rate uint32, bits uint16) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint16(b[0:], format)
	binary.LittleEndian.PutUint16(b[2:], channels)
	binary.LittleEndian.PutUint32(b[4:], rate)
	blockAlign := channels * bits / 8
	binary.LittleEndian.PutUint32(b[8:], rate*uint32(blockAlign))
	binary.LittleEndian.PutUint16(b[12:], blockAlign)
	binary.LittleEndian.PutUint16(b[14:], bits)
	return b
}

// buildWAV lays chunks out in the given order with even padding
func buildWAV(chunks ...wavChunk) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.WriteString(c.id)
		_ = binary.Write(&body, binary.LittleEndian, uint32(len(c.body)))
		body.Write(c.body)
		if len(c.body)%2 == 1 {
			body.WriteByte(0)
		}
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestDecodeWavMono(t *testing.T) {
	const frames = 480
	samples := make([]int16, frames)
	for i := range samples {
		samples[i] = int16(i * 10)
	}

	data, err := encode.WAV(samples, 16000, 1)
	if err != nil {
		t.Fatalf("failed to build wav: %v", err)
	}

	buf, err := DecodeWavPCM16(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if buf.Frames() != frames {
		t.Errorf("expected %d frames, got %d", frames, buf.Frames())
	}
	if buf.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", buf.SampleRate)
	}
	if buf.Samples[1] != 10.0/32768.0 {
		t.Errorf("unexpected second sample %v", buf.Samples[1])
	}
}

func TestDecodeWavStereoDownmix(t *testing.T) {
	data, err := encode.WAV([]int16{32767, -32768, 100, 300}, 22050, 2)
	if err != nil {
		t.Fatalf("failed to build wav: %v", err)
	}

	buf, err := DecodeWavPCM16(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if buf.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", buf.Frames())
	}

	// (32767 + -32768) >> 1 is -1, not the float mean of -0.5
	if want := float32(-1.0 / 32768.0); buf.Samples[0] != want {
		t.Errorf("expected %v, got %v", want, buf.Samples[0])
	}
	if want := float32(200.0 / 32768.0); buf.Samples[1] != want {
		t.Errorf("expected %v, got %v", want, buf.Samples[1])
	}
}

func TestDecodeWavChunkOrdering(t *testing.T) {
	pcm := encode.PCM16([]int16{1, 2, 3})

	tests := []struct {
		name   string
		chunks []wavChunk
	}{
		{
			name: "data before fmt",
			chunks: []wavChunk{
				{"data", pcm},
				{"fmt ", fmtBody(1, 1, 8000, 16)},
			},
		},
		{
			name: "odd sized chunk is padded",
			chunks: []wavChunk{
				{"LIST", []byte("abc")},
				{"fmt ", fmtBody(1, 1, 8000, 16)},
				{"data", pcm},
			},
		},
		{
			name: "extended fmt chunk",
			chunks: []wavChunk{
				{"fmt ", append(fmtBody(1, 1, 8000, 16), 0, 0)},
				{"data", pcm},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := DecodeWavPCM16(buildWAV(tt.chunks...))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if buf.Frames() != 3 || buf.SampleRate != 8000 {
				t.Errorf("expected 3 frames at 8000, got %d at %d", buf.Frames(), buf.SampleRate)
			}
		})
	}
}

func TestDecodeWavRejections(t *testing.T) {
	pcm := encode.PCM16([]int16{1, 2})
	good, _ := encode.WAV([]int16{1, 2}, 16000, 1)

	rifx := append([]byte(nil), good...)
	copy(rifx, "RIFX")

	truncated := buildWAV(wavChunk{"fmt ", fmtBody(1, 1, 16000, 16)}, wavChunk{"data", pcm})
	binary.LittleEndian.PutUint32(truncated[len(truncated)-8:], 1000)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"RIFX magic", rifx, ErrBadHeader},
		{"too short", []byte("RIFF"), ErrBadHeader},
		{"not WAVE", append([]byte("RIFF\x00\x00\x00\x00AVI "), good[12:]...), ErrBadHeader},
		{"missing data", buildWAV(wavChunk{"fmt ", fmtBody(1, 1, 16000, 16)}), ErrMissingChunk},
		{"missing fmt", buildWAV(wavChunk{"data", pcm}), ErrMissingChunk},
		{"float format", buildWAV(wavChunk{"fmt ", fmtBody(3, 1, 16000, 32)}, wavChunk{"data", pcm}), ErrUnsupportedFormat},
		{"24-bit", buildWAV(wavChunk{"fmt ", fmtBody(1, 1, 16000, 24)}, wavChunk{"data", pcm}), ErrUnsupportedBitDepth},
		{"six channels", buildWAV(wavChunk{"fmt ", fmtBody(1, 6, 16000, 16)}, wavChunk{"data", pcm}), ErrUnsupportedChannels},
		{"zero rate", buildWAV(wavChunk{"fmt ", fmtBody(1, 1, 0, 16)}, wavChunk{"data", pcm}), ErrInvalidSampleRate},
		{"short fmt", buildWAV(wavChunk{"fmt ", []byte{1, 0, 1, 0}}, wavChunk{"data", pcm}), ErrTruncated},
		{"data size overruns buffer", truncated, ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := DecodeWavPCM16(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if buf.Frames() != 0 {
				t.Errorf("rejected decode must not yield frames, got %d", buf.Frames())
			}
		})
	}
}
