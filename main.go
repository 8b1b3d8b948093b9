// ABOUTME: Entry point for the speechplay player
// ABOUTME: Parses CLI flags and config, then runs the player application
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/lingoloop/speechplay/internal/app"
	"github.com/lingoloop/speechplay/internal/config"
	"github.com/lingoloop/speechplay/internal/version"
	"github.com/lingoloop/speechplay/pkg/speechplay"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	logFile    string

	rootCmd = &cobra.Command{
		Use:           "speechplay",
		Short:         "Play streamed speech from a feed without gaps",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&logFile, "log-file", "speechplay.log", "log file path")
	flags.String("server", "", "feed address host:port (skip mDNS)")
	flags.String("path", "/speech", "feed websocket path")
	flags.String("name", "", "player name (default: hostname-speechplay)")
	flags.Float64("volume", 1, "initial volume, 0 to 1")
	flags.Int("device-rate", 24000, "output device sample rate")
	flags.Int("default-rate", 24000, "sample rate assumed for raw PCM without one")
	flags.Duration("lookahead", 0, "delay applied to audio that arrives late")
	flags.Duration("discovery-timeout", 0, "how long to browse for a feed")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("log-format", "text", "text, json or logfmt")
	flags.Bool("no-tui", false, "disable the TUI and log to stdout")

	for key, flag := range map[string]string{
		"server":            "server",
		"path":              "path",
		"name":              "name",
		"volume":            "volume",
		"device_rate":       "device-rate",
		"default_rate":      "default-rate",
		"lookahead":         "lookahead",
		"discovery_timeout": "discovery-timeout",
		"log_level":         "log-level",
		"log_format":        "log-format",
		"no_tui":            "no-tui",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.ReadFile(viper.GetViper(), configFile); err != nil {
		return err
	}
	cfg, err := config.LoadPlayer(viper.GetViper())
	if err != nil {
		return err
	}

	if !viper.IsSet("name") && os.Getenv("SPEECHPLAY_NAME") == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Name = fmt.Sprintf("%s-speechplay", hostname)
	}

	f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// TUI mode logs only to the file
	var out io.Writer = f
	if cfg.NoTUI {
		out = io.MultiWriter(os.Stdout, f)
	}
	logger, err := config.NewLogger(out, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	log.SetDefault(logger)

	logger.Info("Starting player", "name", cfg.Name, "version", version.UserAgent())

	player := app.New(app.Config{
		ServerAddr:       cfg.Server,
		Path:             cfg.Path,
		Name:             cfg.Name,
		Volume:           cfg.Volume,
		DiscoveryTimeout: cfg.DiscoveryTimeout,
		UseTUI:           !cfg.NoTUI,
		Logger:           logger,
		Engine: speechplay.EngineConfig{
			DeviceSampleRate:  cfg.DeviceRate,
			DefaultSampleRate: cfg.DefaultRate,
			Lookahead:         cfg.Lookahead,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := player.Run(ctx); err != nil {
		return err
	}

	logger.Info("Player stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
