// ABOUTME: Tests for the speech channel client
// ABOUTME: Runs a websocket feed in-process and checks handshake and routing
package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeFeed answers the handshake, sends script, then records client messages
func fakeFeed(t *testing.T, helloType string, script []Message, received chan<- Envelope) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if env, err := ParseEnvelope(data); err == nil {
			received <- env
		}

		conn.WriteJSON(Message{Type: helloType, Payload: ServerHello{Name: "feed", Version: Version, Encoding: "pcm16"}})
		for _, msg := range script {
			conn.WriteJSON(msg)
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if env, err := ParseEnvelope(data); err == nil {
				received <- env
			}
		}
	}))
}

func addrOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestClientHandshakeAndRouting(t *testing.T) {
	received := make(chan Envelope, 8)
	script := []Message{
		{Type: TypeAudioChunk, Payload: AudioChunk{Seq: 1, Encoding: "pcm16", SampleRate: 16000, Data: "AAA="}},
		{Type: TypeAudioVolume, Payload: AudioVolume{Volume: 0.25}},
		{Type: TypeAudioStop},
		{Type: TypeAudioEnd, Payload: AudioEnd{Chunks: 1}},
	}
	srv := fakeFeed(t, TypeServerHello, script, received)
	defer srv.Close()

	client := NewClient(Config{
		ServerAddr:         addrOf(srv),
		ClientID:           "player-1",
		Name:               "Test Player",
		SupportedEncodings: []string{"pcm16", "wav"},
		SampleRate:         24000,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	hello := <-received
	var ch ClientHello
	if err := hello.Decode(&ch); err != nil || hello.Type != TypeClientHello {
		t.Fatalf("expected client/hello, got %s (%v)", hello.Type, err)
	}
	if ch.ClientID != "player-1" || ch.SampleRate != 24000 || ch.Version != Version {
		t.Errorf("unexpected hello %+v", ch)
	}
	if client.Server().Name != "feed" {
		t.Errorf("expected server name feed, got %q", client.Server().Name)
	}

	want := []Event{
		{Chunk: &AudioChunk{Seq: 1, Encoding: "pcm16", SampleRate: 16000, Data: "AAA="}},
		{Control: &Control{Type: TypeAudioVolume, Volume: 0.25}},
		{Control: &Control{Type: TypeAudioStop}},
		{Control: &Control{Type: TypeAudioEnd, Chunks: 1}},
	}
	for i, w := range want {
		select {
		case got := <-client.Events:
			switch {
			case w.Chunk != nil:
				if got.Chunk == nil || got.Chunk.Seq != w.Chunk.Seq || got.Chunk.SampleRate != w.Chunk.SampleRate {
					t.Errorf("event %d: expected chunk %+v, got %+v", i, *w.Chunk, got)
				}
			case got.Control == nil || *got.Control != *w.Control:
				t.Errorf("event %d: expected control %+v, got %+v", i, *w.Control, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	if err := client.SendState(ClientState{State: "running", Volume: 0.25, QueueLen: 2}); err != nil {
		t.Fatalf("send state failed: %v", err)
	}
	select {
	case env := <-received:
		var st ClientState
		if err := env.Decode(&st); err != nil || env.Type != TypeClientState || st.QueueLen != 2 {
			t.Errorf("unexpected state message %s %+v", env.Type, st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state")
	}
}

func TestClientKeepsWireOrder(t *testing.T) {
	received := make(chan Envelope, 8)
	var script []Message
	for i := int64(1); i <= 50; i++ {
		script = append(script, Message{Type: TypeAudioChunk, Payload: AudioChunk{Seq: i, Encoding: "pcm16", Data: "AAA="}})
	}
	script = append(script, Message{Type: TypeAudioStop}, Message{Type: TypeAudioChunk, Payload: AudioChunk{Seq: 51, Encoding: "pcm16", Data: "AAA="}})
	srv := fakeFeed(t, TypeServerHello, script, received)
	defer srv.Close()

	client := NewClient(Config{ServerAddr: addrOf(srv), ClientID: "p", Name: "p"})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	for i := 0; i < len(script); i++ {
		var ev Event
		select {
		case ev = <-client.Events:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
		switch {
		case i < 50:
			if ev.Chunk == nil || ev.Chunk.Seq != int64(i+1) {
				t.Fatalf("event %d: expected chunk %d, got %+v", i, i+1, ev)
			}
		case i == 50:
			if ev.Control == nil || ev.Control.Type != TypeAudioStop {
				t.Fatalf("event %d: expected stop, got %+v", i, ev)
			}
		default:
			if ev.Chunk == nil || ev.Chunk.Seq != 51 {
				t.Fatalf("event %d: expected chunk 51, got %+v", i, ev)
			}
		}
	}
}

func TestClientRejectsWrongHello(t *testing.T) {
	received := make(chan Envelope, 8)
	srv := fakeFeed(t, TypeAudioStop, nil, received)
	defer srv.Close()

	client := NewClient(Config{ServerAddr: addrOf(srv), HandshakeTimeout: time.Second})
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected handshake error")
	}
	if client.IsConnected() {
		t.Error("client should not stay connected after a failed handshake")
	}
}

func TestClientSendWhenClosed(t *testing.T) {
	client := NewClient(Config{ServerAddr: "127.0.0.1:1"})
	if err := client.SendGoodbye("bye"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}
