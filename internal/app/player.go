// ABOUTME: Player application orchestration
// ABOUTME: Bridges the speech channel to the playback engine, TUI and discovery
package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lingoloop/speechplay/internal/discovery"
	"github.com/lingoloop/speechplay/internal/ui"
	"github.com/lingoloop/speechplay/internal/version"
	"github.com/lingoloop/speechplay/pkg/audio"
	"github.com/lingoloop/speechplay/pkg/protocol"
	"github.com/lingoloop/speechplay/pkg/speechplay"
)

// supportedEncodings is what the engine can ingest
var supportedEncodings = []string{"pcm16", "wav", "mp3", "opus"}

// Config holds player configuration
type Config struct {
	ServerAddr       string // empty discovers a feed via mDNS
	Path             string
	Name             string
	Volume           float64
	DiscoveryTimeout time.Duration // default: 5s
	ReconnectDelay   time.Duration // default: 2s
	StateInterval    time.Duration // default: 1s
	UseTUI           bool
	Engine           speechplay.EngineConfig
	Logger           *log.Logger
}

// Player represents the main player application
type Player struct {
	config   Config
	log      *log.Logger
	clientID string
	engine   *speechplay.Engine
	controls *ui.Controls
	tuiProg  *tea.Program

	bytes   atomic.Uint64
	unknown atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new player
func New(config Config) *Player {
	if config.DiscoveryTimeout == 0 {
		config.DiscoveryTimeout = 5 * time.Second
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = 2 * time.Second
	}
	if config.StateInterval == 0 {
		config.StateInterval = time.Second
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		config:   config,
		log:      config.Logger,
		clientID: uuid.New().String(),
		controls: ui.NewControls(),
		ctx:      ctx,
		cancel:   cancel,
	}

	engineConfig := config.Engine
	if engineConfig.Logger == nil {
		engineConfig.Logger = config.Logger
	}
	engineConfig.OnDrop = func(err error) {
		p.status(ui.StatusMsg{Error: err.Error()})
	}
	engineConfig.OnStateChange = func(s speechplay.State) {
		p.status(ui.StatusMsg{State: s.String()})
	}
	p.engine = speechplay.NewEngine(engineConfig)

	return p
}

// Engine returns the playback engine
func (p *Player) Engine() *speechplay.Engine {
	return p.engine
}

// Run plays until ctx ends, the TUI quits or Stop is called
func (p *Player) Run(ctx context.Context) error {
	defer p.shutdown()
	go func() {
		select {
		case <-ctx.Done():
			p.cancel()
		case <-p.ctx.Done():
		}
	}()

	if err := p.engine.Initialize(); err != nil {
		p.status(ui.StatusMsg{Error: err.Error()})
	}
	p.engine.SetVolume(p.config.Volume)
	p.status(p.volumeStatus())

	if p.config.UseTUI {
		p.tuiProg = ui.Run(p.controls)
		go func() {
			if _, err := p.tuiProg.Run(); err != nil {
				p.log.Error("TUI error", "err", err)
			}
			p.cancel()
		}()
	}

	for {
		addr, err := p.resolve()
		if err != nil {
			p.log.Warn("No feed available", "err", err)
		} else if err := p.session(addr); err != nil {
			p.log.Warn("Session ended", "addr", addr, "err", err)
		}

		select {
		case <-p.ctx.Done():
			return nil
		case <-time.After(p.config.ReconnectDelay):
		}
	}
}

// Stop ends Run
func (p *Player) Stop() {
	p.cancel()
}

// resolve returns the configured address or discovers one
func (p *Player) resolve() (string, error) {
	if p.config.ServerAddr != "" {
		return p.config.ServerAddr, nil
	}

	mgr := discovery.NewManager(discovery.Config{ServiceName: p.config.Name})
	defer mgr.Stop()

	ctx, cancel := context.WithTimeout(p.ctx, p.config.DiscoveryTimeout)
	defer cancel()

	server, err := mgr.Discover(ctx)
	if err != nil {
		return "", err
	}
	p.log.Info("Discovered feed", "name", server.Name, "addr", server.Addr())
	return server.Addr(), nil
}

// session connects to one feed and bridges it until it disconnects
func (p *Player) session(addr string) error {
	client := protocol.NewClient(protocol.Config{
		ServerAddr: addr,
		Path:       p.config.Path,
		ClientID:   p.clientID,
		Name:       p.config.Name,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		SupportedEncodings: supportedEncodings,
		SampleRate:         p.config.Engine.DeviceSampleRate,
		Logger:             p.log,
	})

	if err := client.Connect(p.ctx); err != nil {
		return err
	}
	defer client.Close()

	hello := client.Server()
	connected := true
	p.status(ui.StatusMsg{Connected: &connected, ServerName: hello.Name, Encoding: hello.Encoding})
	defer func() {
		disconnected := false
		p.status(ui.StatusMsg{Connected: &disconnected})
	}()

	ticker := time.NewTicker(p.config.StateInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-client.Events:
			if ev.Chunk != nil {
				p.handleChunk(*ev.Chunk)
				continue
			}
			p.handleControl(*ev.Control)
			p.report(client)

		case vol := <-p.controls.Volume:
			p.engine.SetVolume(float64(vol) / 100)
			p.report(client)

		case cmd := <-p.controls.Commands:
			p.handleCommand(cmd)
			p.report(client)

		case <-ticker.C:
			p.report(client)

		case <-client.Done():
			return errors.New("connection lost")

		case <-p.ctx.Done():
			if err := client.SendGoodbye("shutdown"); err != nil {
				p.log.Debug("Goodbye not sent", "err", err)
			}
			return nil
		}
	}
}

// handleChunk hands one audio/chunk to the engine
func (p *Player) handleChunk(chunk protocol.AudioChunk) {
	p.bytes.Add(uint64(len(chunk.Data) * 3 / 4))

	opts := speechplay.AddOptions{SampleRate: chunk.SampleRate, Volume: chunk.Volume}
	enc, ok := audio.ParseEncoding(chunk.Encoding)
	if !ok {
		// inline volume still applies to a chunk the engine never sees
		if chunk.Volume != nil {
			p.engine.SetVolume(*chunk.Volume)
			p.status(p.volumeStatus())
		}
		p.unknown.Add(1)
		p.log.Warn("Unknown chunk encoding", "encoding", chunk.Encoding, "seq", chunk.Seq)
		return
	}

	switch enc {
	case audio.EncodingRawPCM16:
		p.engine.AddBase64PCM16(chunk.Data, opts)
	case audio.EncodingWavPCM16:
		p.engine.AddBase64WavPCM16(chunk.Data, opts)
	case audio.EncodingMP3:
		p.engine.AddBase64MP3(chunk.Data, opts)
	case audio.EncodingOpus:
		p.engine.AddBase64Opus(chunk.Data, opts)
	}

	if chunk.Volume != nil {
		p.status(p.volumeStatus())
	}
}

// handleControl applies a transport command from the feed
func (p *Player) handleControl(ctl protocol.Control) {
	switch ctl.Type {
	case protocol.TypeAudioStop:
		if err := p.engine.Stop(); err != nil {
			p.log.Warn("Stop failed", "err", err)
		}
		p.status(p.volumeStatus())
	case protocol.TypeAudioClear:
		p.engine.Clear()
	case protocol.TypeAudioVolume:
		p.engine.SetVolume(ctl.Volume)
		p.status(p.volumeStatus())
	case protocol.TypeAudioEnd:
		p.log.Info("Turn finished", "chunks", ctl.Chunks)
	}
}

// handleCommand applies a key pressed in the TUI
func (p *Player) handleCommand(cmd ui.Command) {
	var err error
	switch cmd {
	case ui.CommandStop:
		err = p.engine.Stop()
		p.status(p.volumeStatus())
	case ui.CommandPause:
		err = p.engine.Suspend()
	case ui.CommandResume:
		err = p.engine.Resume()
	case ui.CommandQuit:
		p.cancel()
	}
	if err != nil {
		p.log.Warn("Playback command failed", "err", err)
		p.status(ui.StatusMsg{Error: err.Error()})
	}
}

// report sends client/state to the feed and refreshes the TUI
func (p *Player) report(client *protocol.Client) {
	state := p.engine.State()
	stats := p.engine.Stats()
	buffered := p.engine.Buffered()
	queueLen := p.engine.QueueLen()

	err := client.SendState(protocol.ClientState{
		State:      state.String(),
		Volume:     p.engine.Volume(),
		QueueLen:   queueLen,
		BufferedMs: buffered.Milliseconds(),
	})
	if err != nil {
		p.log.Debug("State not sent", "err", err)
	}

	p.status(ui.StatusMsg{
		State: state.String(),
		Stats: &ui.Stats{
			QueueLen: queueLen,
			Buffered: buffered,
			Received: stats.Received + p.unknown.Load(),
			Bytes:    p.bytes.Load(),
			Rejected: stats.Rejected + p.unknown.Load(),
			Dropped:  stats.Dropped,
			Played:   stats.Played,
		},
	})
}

func (p *Player) volumeStatus() ui.StatusMsg {
	vol := int(p.engine.Volume()*100 + 0.5)
	return ui.StatusMsg{Volume: &vol}
}

// status forwards an update to the TUI when it is running
func (p *Player) status(msg ui.StatusMsg) {
	if p.tuiProg != nil {
		p.tuiProg.Send(msg)
	}
}

func (p *Player) shutdown() {
	p.cancel()
	if err := p.engine.Close(); err != nil {
		p.log.Warn("Failed to close audio output", "err", err)
	}
	if p.tuiProg != nil {
		p.tuiProg.Quit()
	}
}
