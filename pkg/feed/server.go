// ABOUTME: Speech feed server
// ABOUTME: Streams a source to each connected player as paced audio/chunk messages
package feed

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lingoloop/speechplay/internal/discovery"
	"github.com/lingoloop/speechplay/pkg/audio"
	"github.com/lingoloop/speechplay/pkg/audio/encode"
	"github.com/lingoloop/speechplay/pkg/protocol"
	"golang.org/x/time/rate"
)

const (
	DefaultPort          = 8930
	DefaultChunkDuration = 100 * time.Millisecond

	// Opus packets always carry one 20ms frame
	opusChunkDuration = 20 * time.Millisecond
	opusResampleRate  = 48000

	helloTimeout  = 5 * time.Second
	writeDeadline = 10 * time.Second
)

// opusRates are the sample rates libopus encodes natively
var opusRates = []int{8000, 12000, 16000, 24000, 48000}

// ServerConfig configures a feed server
type ServerConfig struct {
	// Port to listen on (default: 8930)
	Port int

	// Name of the feed for identification and mDNS
	Name string

	// Path of the websocket endpoint (default: protocol.DefaultPath)
	Path string

	// NewSource opens a fresh source for every session (required)
	NewSource func() (Source, error)

	// Encoding to send when the player supports it; otherwise raw PCM16
	Encoding audio.Encoding

	// ChunkDuration is the audio carried per message (default: 100ms)
	ChunkDuration time.Duration

	// Burst is how many chunks may go out back to back before pacing
	// settles to real time (default: 1)
	Burst int

	// Volume, if set, rides inline on the first chunk of each session
	Volume *float64

	// EnableMDNS enables mDNS service advertisement
	EnableMDNS bool

	Logger *log.Logger
}

// Server streams speech to players
type Server struct {
	config   ServerConfig
	serverID string
	log      *log.Logger
	validate *validator.Validate

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	sessions   map[string]*session
	sessionsMu sync.RWMutex

	mdnsManager *discovery.Manager

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// session is one connected player
type session struct {
	ID       string
	ClientID string
	Name     string
	Encoding audio.Encoding

	conn     *websocket.Conn
	sendChan chan protocol.Message
	ctx      context.Context
	cancel   context.CancelFunc

	mu    sync.RWMutex
	state protocol.ClientState
	sent  int64
}

// SessionInfo describes a connected player
type SessionInfo struct {
	ID       string
	ClientID string
	Name     string
	Encoding audio.Encoding
	State    protocol.ClientState
	Sent     int64
}

// NewServer creates a new feed server
func NewServer(config ServerConfig) (*Server, error) {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = "Speech Feed"
	}
	if config.Path == "" {
		config.Path = protocol.DefaultPath
	}
	if config.ChunkDuration == 0 {
		config.ChunkDuration = DefaultChunkDuration
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.NewSource == nil {
		return nil, fmt.Errorf("audio source is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	mux := http.NewServeMux()

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		log:      config.Logger,
		validate: validator.New(),
		mux:      mux,
		upgrader: websocket.Upgrader{
			// Local network feeds accept any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
	mux.HandleFunc(config.Path, s.handleWebSocket)

	return s, nil
}

// Handler returns the HTTP handler serving the websocket endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens and serves until Stop
func (s *Server) Start() error {
	s.log.Info("Feed starting", "name", s.config.Name, "id", s.serverID, "encoding", s.config.Encoding)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        s.config.Path,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warn("Failed to start mDNS advertisement", "err", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Info("WebSocket server listening", "addr", addr, "path", s.config.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-s.stopChan:
		s.log.Info("Feed shutting down")
	case err := <-errChan:
		s.cancel()
		return fmt.Errorf("http server: %w", err)
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn("HTTP server shutdown error", "err", err)
	}

	s.cancel()
	s.wg.Wait()
	s.log.Info("Feed stopped cleanly")

	return nil
}

// Stop stops the server and ends every session
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.cancel()
	})
}

// Sessions returns information about connected players
func (s *Server) Sessions() []SessionInfo {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sess.mu.RLock()
		infos = append(infos, SessionInfo{
			ID:       sess.ID,
			ClientID: sess.ClientID,
			Name:     sess.Name,
			Encoding: sess.Encoding,
			State:    sess.state,
			Sent:     sess.sent,
		})
		sess.mu.RUnlock()
	}
	return infos
}

// Broadcast sends a control message to every player. Players whose send
// buffer is full miss it.
func (s *Server) Broadcast(msgType string, payload interface{}) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	for _, sess := range s.sessions {
		select {
		case sess.sendChan <- protocol.Message{Type: msgType, Payload: payload}:
		default:
			s.log.Warn("Send buffer full, dropping control", "player", sess.Name, "type", msgType)
		}
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade error", "err", err)
		return
	}

	s.log.Debug("New WebSocket connection", "remote", r.RemoteAddr)
	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(conn)
}

// readHello waits for a valid client/hello
func (s *Server) readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("failed to read hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		return hello, err
	}
	if env.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, env.Type)
	}
	if err := env.Decode(&hello); err != nil {
		return hello, err
	}
	if err := s.validate.Struct(hello); err != nil {
		return hello, fmt.Errorf("invalid hello: %w", err)
	}
	return hello, nil
}

// handleConnection manages one player connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	hello, err := s.readHello(conn)
	if err != nil {
		s.log.Warn("Rejecting connection", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	sess := &session{
		ID:       uuid.New().String(),
		ClientID: hello.ClientID,
		Name:     hello.Name,
		Encoding: s.negotiateEncoding(hello.SupportedEncodings),
		conn:     conn,
		sendChan: make(chan protocol.Message, 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	src, err := s.config.NewSource()
	if err != nil {
		s.log.Error("Failed to open source", "err", err)
		return
	}
	defer src.Close()

	var opusEnc *encode.OpusEncoder
	if sess.Encoding == audio.EncodingOpus {
		if !slices.Contains(opusRates, src.SampleRate()) {
			s.log.Debug("Resampling source for Opus", "from", src.SampleRate(), "to", opusResampleRate)
			src = Resample(src, opusResampleRate)
		}
		opusEnc, err = encode.NewOpus(src.SampleRate())
		if err != nil {
			s.log.Warn("Opus unavailable, falling back to PCM16", "rate", src.SampleRate(), "err", err)
			sess.Encoding = audio.EncodingRawPCM16
		}
	}

	hi := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
		Encoding: sess.Encoding.String(),
	}
	if err := conn.WriteJSON(protocol.Message{Type: protocol.TypeServerHello, Payload: hi}); err != nil {
		s.log.Warn("Error sending server hello", "err", err)
		return
	}

	s.sessionsMu.Lock()
	s.sessions[sess.ID] = sess
	s.sessionsMu.Unlock()

	s.log.Info("Player connected", "name", sess.Name, "session", sess.ID, "encoding", sess.Encoding, "source", src.Name())

	defer func() {
		s.sessionsMu.Lock()
		delete(s.sessions, sess.ID)
		s.sessionsMu.Unlock()
		s.log.Info("Player disconnected", "name", sess.Name, "sent", sess.sentCount())
	}()

	// Unblock the reader when the server stops
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		s.sessionWriter(sess)
	}()
	go func() {
		defer workers.Done()
		s.stream(sess, src, opusEnc)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("WebSocket error", "err", err)
			}
			break
		}
		s.handleClientMessage(sess, data)
	}

	cancel()
	workers.Wait()
}

// negotiateEncoding picks the configured encoding if the player supports it
func (s *Server) negotiateEncoding(supported []string) audio.Encoding {
	want := s.config.Encoding
	if want == audio.EncodingRawPCM16 || slices.Contains(supported, want.String()) {
		return want
	}
	return audio.EncodingRawPCM16
}

// sessionWriter sends queued messages and keeps the connection alive
func (s *Server) sessionWriter(sess *session) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-sess.sendChan:
			sess.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := sess.conn.WriteJSON(msg); err != nil {
				sess.cancel()
				return
			}

		case <-ticker.C:
			if err := sess.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				sess.cancel()
				return
			}

		case <-sess.ctx.Done():
			return
		}
	}
}

// stream paces source audio to the player in real time
func (s *Server) stream(sess *session, src Source, opusEnc *encode.OpusEncoder) {
	chunkDuration := s.config.ChunkDuration
	if opusEnc != nil {
		chunkDuration = opusChunkDuration
	}
	frames := int(audio.DurationToFrames(chunkDuration, src.SampleRate()))
	limiter := rate.NewLimiter(rate.Every(chunkDuration), s.config.Burst)
	samples := make([]int16, frames)

	var seq int64
	for {
		if err := limiter.Wait(sess.ctx); err != nil {
			return
		}

		n, err := src.Read(samples)
		if n > 0 {
			seq++
			chunk, cerr := s.buildChunk(sess.Encoding, samples[:n], src.SampleRate(), opusEnc)
			if cerr != nil {
				s.log.Warn("Failed to encode chunk", "player", sess.Name, "err", cerr)
				return
			}
			chunk.Seq = seq
			if seq == 1 {
				chunk.Volume = s.config.Volume
			}
			if !sess.send(protocol.Message{Type: protocol.TypeAudioChunk, Payload: chunk}) {
				return
			}
		}

		if errors.Is(err, io.EOF) {
			sess.send(protocol.Message{Type: protocol.TypeAudioEnd, Payload: protocol.AudioEnd{Chunks: seq}})
			s.log.Debug("Source finished", "player", sess.Name, "chunks", seq)
			return
		}
		if err != nil {
			s.log.Warn("Error reading audio source", "err", err)
			return
		}
	}
}

// buildChunk encodes samples into an audio/chunk payload
func (s *Server) buildChunk(enc audio.Encoding, samples []int16, sampleRate int, opusEnc *encode.OpusEncoder) (protocol.AudioChunk, error) {
	chunk := protocol.AudioChunk{Encoding: enc.String()}

	var data []byte
	switch enc {
	case audio.EncodingWavPCM16:
		wav, err := encode.WAV(samples, sampleRate, 1)
		if err != nil {
			return chunk, err
		}
		data = wav
	case audio.EncodingOpus:
		if len(samples) < opusEnc.FrameSize() {
			samples = append(samples, make([]int16, opusEnc.FrameSize()-len(samples))...)
		}
		packet, err := opusEnc.Encode(samples)
		if err != nil {
			return chunk, err
		}
		data = packet
		chunk.SampleRate = sampleRate
	default:
		data = encode.PCM16(samples)
		chunk.SampleRate = sampleRate
	}

	chunk.Data = base64.StdEncoding.EncodeToString(data)
	return chunk, nil
}

// handleClientMessage processes messages from players
func (s *Server) handleClientMessage(sess *session, data []byte) {
	env, err := protocol.ParseEnvelope(data)
	if err != nil {
		s.log.Debug("Bad message from player", "err", err)
		return
	}

	switch env.Type {
	case protocol.TypeClientState:
		var state protocol.ClientState
		if err := env.Decode(&state); err != nil {
			return
		}
		sess.mu.Lock()
		sess.state = state
		sess.mu.Unlock()
		s.log.Debug("Player state", "player", sess.Name, "state", state.State, "queue", state.QueueLen)

	case protocol.TypeClientGoodbye:
		var goodbye protocol.ClientGoodbye
		if err := env.Decode(&goodbye); err != nil {
			return
		}
		s.log.Info("Player goodbye", "player", sess.Name, "reason", goodbye.Reason)

	default:
		s.log.Debug("Unknown message type", "type", env.Type)
	}
}

// send queues msg, blocking until there is room or the session ends
func (sess *session) send(msg protocol.Message) bool {
	select {
	case sess.sendChan <- msg:
		if msg.Type == protocol.TypeAudioChunk {
			sess.mu.Lock()
			sess.sent++
			sess.mu.Unlock()
		}
		return true
	case <-sess.ctx.Done():
		return false
	}
}

func (sess *session) sentCount() int64 {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.sent
}
