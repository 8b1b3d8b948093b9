// ABOUTME: WebSocket client for the speech channel
// ABOUTME: Handles connection, handshake, and message routing
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// DefaultPath is the websocket endpoint served by feeds
const DefaultPath = "/speech"

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr         string
	Path               string // default: DefaultPath
	ClientID           string
	Name               string
	DeviceInfo         DeviceInfo
	SupportedEncodings []string
	SampleRate         int
	HandshakeTimeout   time.Duration // default: 5s
	Logger             *log.Logger
}

// Client represents a WebSocket client
type Client struct {
	config Config
	log    *log.Logger
	conn   *websocket.Conn
	mu     sync.RWMutex
	wmu    sync.Mutex

	// Events carries chunks and controls in the order the server sent them
	Events chan Event

	server    ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:      config,
		log:         config.Logger,
		Events: make(chan Event, 256),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Connect dials the feed and performs the handshake. The message reader
// runs until Close or the connection drops; Done reports which.
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	c.log.Info("Connecting", "url", u.String())

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:           c.config.ClientID,
		Name:               c.config.Name,
		Version:            Version,
		DeviceInfo:         &c.config.DeviceInfo,
		SupportedEncodings: c.config.SupportedEncodings,
		SampleRate:         c.config.SampleRate,
	}

	if err := c.send(Message{Type: TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	env, err := ParseEnvelope(data)
	if err != nil {
		return err
	}
	if env.Type != TypeServerHello {
		return fmt.Errorf("expected %s, got %s", TypeServerHello, env.Type)
	}

	var server ServerHello
	if err := env.Decode(&server); err != nil {
		return err
	}

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	c.log.Info("Handshake complete", "server", server.Name, "encoding", server.Encoding)
	return nil
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// send writes one JSON message. gorilla allows a single concurrent writer.
func (c *Client) send(msg Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer close(c.done)
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.log.Warn("Read error", "err", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			c.log.Debug("Ignoring non-text frame", "type", messageType)
			continue
		}
		c.handleMessage(data)
	}
}

// handleMessage routes one JSON message
func (c *Client) handleMessage(data []byte) {
	env, err := ParseEnvelope(data)
	if err != nil {
		c.log.Warn("Failed to parse message", "err", err)
		return
	}

	switch env.Type {
	case TypeAudioChunk:
		var chunk AudioChunk
		if err := env.Decode(&chunk); err != nil {
			c.log.Warn("Bad audio chunk", "err", err)
			return
		}
		c.emit(Event{Chunk: &chunk})

	case TypeAudioStop, TypeAudioClear:
		c.control(Control{Type: env.Type})

	case TypeAudioVolume:
		var vol AudioVolume
		if err := env.Decode(&vol); err != nil {
			c.log.Warn("Bad volume message", "err", err)
			return
		}
		c.control(Control{Type: env.Type, Volume: vol.Volume})

	case TypeAudioEnd:
		var end AudioEnd
		if err := env.Decode(&end); err != nil {
			c.log.Warn("Bad end message", "err", err)
			return
		}
		c.control(Control{Type: env.Type, Chunks: end.Chunks})

	default:
		c.log.Debug("Unknown message type", "type", env.Type)
	}
}

func (c *Client) control(ctl Control) {
	c.emit(Event{Control: &ctl})
}

func (c *Client) emit(ev Event) {
	select {
	case c.Events <- ev:
	case <-c.ctx.Done():
	}
}

// SendState sends a client/state message
func (c *Client) SendState(state ClientState) error {
	return c.send(Message{Type: TypeClientState, Payload: state})
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.send(Message{Type: TypeClientGoodbye, Payload: ClientGoodbye{Reason: reason}})
}

// Done is closed once the reader has exited
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		c.log.Info("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
