// ABOUTME: Tests for speech channel message types
// ABOUTME: Verifies envelope parsing and payload decoding
package protocol

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeDecodeAudioChunk(t *testing.T) {
	vol := 0.5
	data, err := json.Marshal(Message{
		Type: TypeAudioChunk,
		Payload: AudioChunk{
			Seq:        7,
			Encoding:   "pcm16",
			SampleRate: 24000,
			Volume:     &vol,
			Data:       "AAAA",
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if env.Type != TypeAudioChunk {
		t.Errorf("expected type %s, got %s", TypeAudioChunk, env.Type)
	}

	var chunk AudioChunk
	if err := env.Decode(&chunk); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if chunk.Seq != 7 || chunk.SampleRate != 24000 || chunk.Data != "AAAA" {
		t.Errorf("unexpected chunk %+v", chunk)
	}
	if chunk.Volume == nil || *chunk.Volume != 0.5 {
		t.Errorf("expected volume 0.5, got %v", chunk.Volume)
	}
}

func TestAudioChunkOmitsOptionalFields(t *testing.T) {
	data, err := json.Marshal(AudioChunk{Encoding: "wav", Data: "UklGRg=="})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if _, ok := raw["volume"]; ok {
		t.Error("volume should be omitted when unset")
	}
	if _, ok := raw["sample_rate"]; ok {
		t.Error("sample_rate should be omitted when unset")
	}
}

func TestParseEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "hello"},
		{"missing type", `{"payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEnvelope([]byte(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEnvelopeWithoutPayload(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"audio/stop"}`))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	vol := AudioVolume{Volume: 0.3}
	if err := env.Decode(&vol); err != nil {
		t.Fatalf("decode of absent payload failed: %v", err)
	}
	if vol.Volume != 0.3 {
		t.Error("absent payload must leave target untouched")
	}
}
