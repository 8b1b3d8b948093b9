// ABOUTME: Tests for player application orchestration
// ABOUTME: Drives the bridge directly and against an in-process feed
package app

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lingoloop/speechplay/internal/ui"
	"github.com/lingoloop/speechplay/pkg/audio/encode"
	"github.com/lingoloop/speechplay/pkg/audio/output"
	"github.com/lingoloop/speechplay/pkg/feed"
	"github.com/lingoloop/speechplay/pkg/protocol"
	"github.com/lingoloop/speechplay/pkg/speechplay"
)

const testRate = 8000

func testConfig() Config {
	return Config{
		Name:   "test-player",
		Volume: 1,
		Engine: speechplay.EngineConfig{
			DeviceSampleRate:  testRate,
			DefaultSampleRate: testRate,
			HostFactory: func() (output.Host, error) {
				return output.NewMixer(testRate), nil
			},
		},
	}
}

func newInitialized(t *testing.T) *Player {
	t.Helper()
	p := New(testConfig())
	if err := p.engine.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	t.Cleanup(func() { p.engine.Close() })
	return p
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func pcmChunk(samples int) protocol.AudioChunk {
	return protocol.AudioChunk{
		Encoding:   "pcm16",
		SampleRate: testRate,
		Data:       base64.StdEncoding.EncodeToString(encode.PCM16(make([]int16, samples))),
	}
}

func TestNewPlayer(t *testing.T) {
	p := New(Config{Name: "test-player"})

	if p.config.DiscoveryTimeout != 5*time.Second || p.config.ReconnectDelay != 2*time.Second || p.config.StateInterval != time.Second {
		t.Errorf("defaults not applied: %+v", p.config)
	}
	if p.clientID == "" {
		t.Error("expected a client id")
	}
	if p.Engine() == nil || p.Engine().State() != speechplay.StateUninitialized {
		t.Error("expected an uninitialized engine")
	}
}

func TestHandleChunk(t *testing.T) {
	p := newInitialized(t)

	p.handleChunk(pcmChunk(800))

	wav, err := encode.WAV(make([]int16, 400), testRate, 1)
	if err != nil {
		t.Fatal(err)
	}
	half := 0.5
	p.handleChunk(protocol.AudioChunk{Encoding: "wav", Volume: &half, Data: base64.StdEncoding.EncodeToString(wav)})

	stats := p.engine.Stats()
	if stats.Received != 2 || stats.Scheduled != 2 {
		t.Errorf("expected two scheduled chunks, got %+v", stats)
	}
	if p.engine.Volume() != 0.5 {
		t.Errorf("expected inline volume 0.5, got %v", p.engine.Volume())
	}
	if p.engine.Cursor() != 150*time.Millisecond {
		t.Errorf("expected cursor at 150ms, got %v", p.engine.Cursor())
	}
}

func TestHandleChunkRejects(t *testing.T) {
	p := newInitialized(t)

	p.handleChunk(protocol.AudioChunk{Encoding: "aac", Data: "AAAA"})
	if p.unknown.Load() != 1 || p.engine.Stats().Received != 0 {
		t.Error("unknown encodings should not reach the engine")
	}

	quiet := 0.4
	p.handleChunk(protocol.AudioChunk{Encoding: "aac", Volume: &quiet, Data: "AAAA"})
	if p.engine.Volume() != 0.4 {
		t.Errorf("expected inline volume on an unknown encoding to apply, got %v", p.engine.Volume())
	}

	p.handleChunk(protocol.AudioChunk{Encoding: "pcm16", Data: "not base64!"})
	if p.engine.Stats().Rejected != 1 {
		t.Errorf("expected one rejected chunk, got %+v", p.engine.Stats())
	}
	if p.engine.QueueLen() != 0 {
		t.Error("rejected chunks must not be queued")
	}
}

func TestHandleControl(t *testing.T) {
	p := newInitialized(t)
	p.handleChunk(pcmChunk(800))

	p.handleControl(protocol.Control{Type: protocol.TypeAudioVolume, Volume: 0.3})
	if p.engine.Volume() != 0.3 {
		t.Errorf("expected volume 0.3, got %v", p.engine.Volume())
	}

	p.handleControl(protocol.Control{Type: protocol.TypeAudioClear})
	if p.engine.QueueLen() != 0 {
		t.Error("expected clear to empty the queue")
	}

	p.handleChunk(pcmChunk(800))
	p.handleControl(protocol.Control{Type: protocol.TypeAudioStop})
	if p.engine.State() != speechplay.StateStopped {
		t.Errorf("expected stopped, got %s", p.engine.State())
	}
	if p.engine.Volume() != 1 {
		t.Errorf("expected stop to reset volume, got %v", p.engine.Volume())
	}

	p.handleControl(protocol.Control{Type: protocol.TypeAudioEnd, Chunks: 2})
	if p.engine.State() != speechplay.StateStopped {
		t.Error("end of turn should not change state")
	}
}

func TestHandleCommand(t *testing.T) {
	p := newInitialized(t)

	p.handleCommand(ui.CommandPause)
	if p.engine.State() != speechplay.StateSuspended {
		t.Errorf("expected suspended, got %s", p.engine.State())
	}

	p.handleCommand(ui.CommandResume)
	if p.engine.State() != speechplay.StateRunning {
		t.Errorf("expected running, got %s", p.engine.State())
	}

	p.handleCommand(ui.CommandStop)
	if p.engine.State() != speechplay.StateStopped {
		t.Errorf("expected stopped, got %s", p.engine.State())
	}

	p.handleCommand(ui.CommandQuit)
	select {
	case <-p.ctx.Done():
	default:
		t.Error("expected quit to cancel the player")
	}
}

func TestPlayerStreamsFromFeed(t *testing.T) {
	srv, err := feed.NewServer(feed.ServerConfig{
		NewSource: func() (feed.Source, error) { return feed.NewToneSource(testRate, 0.3), nil },
		Burst:     10,
	})
	if err != nil {
		t.Fatalf("failed to create feed: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Stop()

	config := testConfig()
	config.ServerAddr = strings.TrimPrefix(ts.URL, "http://")
	config.StateInterval = 20 * time.Millisecond
	p := New(config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// the mixer is never read, so every chunk stays queued
	eventually(t, "three scheduled chunks", func() bool {
		return p.Engine().Stats().Scheduled == 3
	})
	eventually(t, "state report", func() bool {
		sessions := srv.Sessions()
		return len(sessions) == 1 && sessions[0].State.QueueLen == 3 && sessions[0].State.State == "running"
	})

	srv.Broadcast(protocol.TypeAudioVolume, protocol.AudioVolume{Volume: 0.25})
	eventually(t, "volume from feed", func() bool {
		return p.Engine().Volume() == 0.25
	})

	srv.Broadcast(protocol.TypeAudioStop, nil)
	eventually(t, "stop from feed", func() bool {
		return p.Engine().State() == speechplay.StateStopped && p.Engine().QueueLen() == 0
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if p.Engine().State() != speechplay.StateUninitialized {
		t.Error("expected the engine to be closed")
	}
}

// scriptedFeed answers the handshake, writes script in one burst and then
// drains whatever the player sends
func scriptedFeed(t *testing.T, script []protocol.Message) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteJSON(protocol.Message{Type: protocol.TypeServerHello, Payload: protocol.ServerHello{Name: "scripted", Version: protocol.Version, Encoding: "pcm16"}})
		for _, msg := range script {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStopAfterQueuedChunks(t *testing.T) {
	const chunks = 200
	var script []protocol.Message
	for i := 1; i <= chunks; i++ {
		chunk := pcmChunk(testRate / 100)
		chunk.Seq = int64(i)
		script = append(script, protocol.Message{Type: protocol.TypeAudioChunk, Payload: chunk})
	}
	script = append(script, protocol.Message{Type: protocol.TypeAudioStop})
	srv := scriptedFeed(t, script)

	config := testConfig()
	config.ServerAddr = strings.TrimPrefix(srv.URL, "http://")
	p := New(config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// the mixer is never read, so only the stop can empty the queue
	eventually(t, "stop from feed", func() bool {
		return p.Engine().State() == speechplay.StateStopped
	})
	if got := p.Engine().Stats().Received; got != chunks {
		t.Errorf("expected every chunk before the stop to be handled first, got %d", got)
	}
	if got := p.Engine().QueueLen(); got != 0 {
		t.Errorf("expected an empty queue after stop, got %d", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
