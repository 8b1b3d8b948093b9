// ABOUTME: Entry point for the speechfeed test server
// ABOUTME: Streams a tone or audio file to players as paced speech chunks
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lingoloop/speechplay/internal/config"
	"github.com/lingoloop/speechplay/internal/ui"
	"github.com/lingoloop/speechplay/pkg/audio"
	"github.com/lingoloop/speechplay/pkg/feed"
	"github.com/lingoloop/speechplay/pkg/protocol"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile     string
	interruptAfter time.Duration
	volume         float64
	useTUI         bool
	logFile        string

	rootCmd = &cobra.Command{
		Use:   "speechfeed",
		Short: "Serve speech-shaped audio to speechplay players",
		Long: "speechfeed streams a synthetic tone or an audio file (WAV, MP3, FLAC) to every\n" +
			"connected player as audio/chunk messages paced in real time.",
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	flags.DurationVar(&interruptAfter, "interrupt-after", 0, "broadcast audio/stop after this long (barge-in test)")
	flags.BoolVar(&useTUI, "tui", false, "show connected players in a TUI (logs go to --log-file)")
	flags.StringVar(&logFile, "log-file", "speechfeed.log", "log file path in TUI mode")
	flags.Float64Var(&volume, "volume", -1, "inline volume sent with the first chunk (negative to omit)")
	flags.Int("port", feed.DefaultPort, "websocket server port")
	flags.String("name", "", "feed name (default: hostname-speechfeed)")
	flags.String("path", protocol.DefaultPath, "websocket path")
	flags.String("file", "", "audio file to stream; plays a tone when empty")
	flags.Float64("tone-seconds", 0, "tone length, 0 for endless")
	flags.Int("tone-rate", audio.DefaultSampleRate, "tone sample rate")
	flags.String("encoding", "pcm16", "pcm16, wav or opus")
	flags.Duration("chunk", feed.DefaultChunkDuration, "audio per chunk (opus always uses 20ms)")
	flags.Int("burst", 1, "chunks sent back to back before real-time pacing")
	flags.Bool("mdns", true, "advertise over mDNS")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("log-format", "text", "text, json or logfmt")

	for key, flag := range map[string]string{
		"port":         "port",
		"name":         "name",
		"path":         "path",
		"file":         "file",
		"tone_seconds": "tone-seconds",
		"tone_rate":    "tone-rate",
		"encoding":     "encoding",
		"chunk":        "chunk",
		"burst":        "burst",
		"mdns":         "mdns",
		"log_level":    "log-level",
		"log_format":   "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.ReadFile(viper.GetViper(), configFile); err != nil {
		return err
	}
	cfg, err := config.LoadFeed(viper.GetViper())
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if useTUI {
		f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	logger, err := config.NewLogger(out, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	log.SetDefault(logger)

	if !viper.IsSet("name") && os.Getenv("SPEECHFEED_NAME") == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Name = fmt.Sprintf("%s-speechfeed", hostname)
	}

	enc, _ := audio.ParseEncoding(cfg.Encoding)

	newSource := func() (feed.Source, error) {
		return feed.NewToneSource(cfg.ToneRate, cfg.ToneSeconds), nil
	}
	if cfg.File != "" {
		newSource = func() (feed.Source, error) {
			return feed.NewFileSource(cfg.File)
		}
	}

	serverConfig := feed.ServerConfig{
		Port:          cfg.Port,
		Name:          cfg.Name,
		Path:          cfg.Path,
		NewSource:     newSource,
		Encoding:      enc,
		ChunkDuration: cfg.ChunkDuration,
		Burst:         cfg.Burst,
		EnableMDNS:    cfg.MDNS,
		Logger:        logger,
	}
	if volume >= 0 {
		serverConfig.Volume = &volume
	}

	srv, err := feed.NewServer(serverConfig)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down", "signal", sig)
		srv.Stop()
	}()

	if interruptAfter > 0 {
		go func() {
			time.Sleep(interruptAfter)
			logger.Info("Interrupting players", "after", interruptAfter)
			srv.Broadcast(protocol.TypeAudioStop, nil)
		}()
	}

	if useTUI {
		sourceName := "tone"
		if cfg.File != "" {
			sourceName = filepath.Base(cfg.File)
		}
		go runTUI(srv, ui.FeedStatus{Name: cfg.Name, Port: cfg.Port, Source: sourceName, Encoding: enc.String()})
	} else {
		logger.Info("Press Ctrl-C to stop")
	}
	return srv.Start()
}

// runTUI shows connected players until the operator quits
func runTUI(srv *feed.Server, status ui.FeedStatus) {
	tui := ui.NewFeedTUI(status)
	go func() {
		if err := tui.Run(); err != nil {
			log.Error("TUI error", "err", err)
		}
		srv.Stop()
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sessions := srv.Sessions()
			status.Players = make([]ui.PlayerInfo, 0, len(sessions))
			for _, sess := range sessions {
				status.Players = append(status.Players, ui.PlayerInfo{
					Name:       sess.Name,
					Encoding:   sess.Encoding.String(),
					State:      sess.State.State,
					QueueLen:   sess.State.QueueLen,
					BufferedMs: sess.State.BufferedMs,
					Sent:       sess.Sent,
				})
			}
			tui.Update(status)

		case action := <-tui.Actions():
			switch action {
			case ui.FeedInterrupt:
				srv.Broadcast(protocol.TypeAudioStop, nil)
			case ui.FeedClear:
				srv.Broadcast(protocol.TypeAudioClear, nil)
			case ui.FeedQuit:
				srv.Stop()
				return
			}
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
