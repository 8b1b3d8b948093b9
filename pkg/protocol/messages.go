// ABOUTME: Speech channel message type definitions
// ABOUTME: Defines the JSON envelope and payloads exchanged between feed and player
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeClientState   = "client/state"
	TypeClientGoodbye = "client/goodbye"
	TypeServerHello   = "server/hello"
	TypeAudioChunk    = "audio/chunk"
	TypeAudioStop     = "audio/stop"
	TypeAudioClear    = "audio/clear"
	TypeAudioVolume   = "audio/volume"
	TypeAudioEnd      = "audio/end"
)

// Version is the protocol revision sent in hello messages
const Version = 1

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Envelope is a received message whose payload is not yet decoded
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseEnvelope reads the type of a raw text frame
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid message: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("invalid message: missing type")
	}
	return env, nil
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	return nil
}

// ClientHello is sent by players to initiate the handshake
type ClientHello struct {
	ClientID           string      `json:"client_id" validate:"required"`
	Name               string      `json:"name" validate:"required"`
	Version            int         `json:"version" validate:"gte=1"`
	DeviceInfo         *DeviceInfo `json:"device_info,omitempty"`
	SupportedEncodings []string    `json:"supported_encodings" validate:"dive,oneof=pcm16 wav mp3 opus"`
	SampleRate         int         `json:"sample_rate" validate:"gte=0"` // output device rate
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello answers ClientHello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Encoding string `json:"encoding"` // what the server will send
}

// AudioChunk carries one base64 payload of speech
type AudioChunk struct {
	Seq        int64    `json:"seq"`
	Encoding   string   `json:"encoding"`
	SampleRate int      `json:"sample_rate,omitempty"` // raw PCM and Opus only
	Volume     *float64 `json:"volume,omitempty"`
	Data       string   `json:"data"`
}

// AudioVolume sets the player gain
type AudioVolume struct {
	Volume float64 `json:"volume"`
}

// AudioEnd marks the end of a spoken turn
type AudioEnd struct {
	Chunks int64 `json:"chunks"`
}

// Control is a transport command from the server: stop, clear, volume or end
type Control struct {
	Type   string
	Volume float64 // audio/volume only
	Chunks int64   // audio/end only
}

// Event is one routed server message. Exactly one field is set.
type Event struct {
	Chunk   *AudioChunk
	Control *Control
}

// ClientState reports player state back to the server
type ClientState struct {
	State      string  `json:"state"`
	Volume     float64 `json:"volume"`
	QueueLen   int     `json:"queue_len"`
	BufferedMs int64   `json:"buffered_ms"`
}

// ClientGoodbye is sent before a player disconnects
type ClientGoodbye struct {
	Reason string `json:"reason"`
}
