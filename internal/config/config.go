// ABOUTME: Runtime configuration for the player and the feed
// ABOUTME: Environment defaults, file and flag overlay via viper, struct validation
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalid is returned when a loaded configuration fails validation
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Player configures the speechplay player.
// Precedence: flags, config file, environment, defaults.
type Player struct {
	Server           string        `env:"SPEECHPLAY_SERVER"` // host:port; empty discovers via mDNS
	Path             string        `env:"SPEECHPLAY_PATH" envDefault:"/speech" validate:"required,startswith=/"`
	Name             string        `env:"SPEECHPLAY_NAME" envDefault:"Speechplay" validate:"required"`
	Volume           float64       `env:"SPEECHPLAY_VOLUME" envDefault:"1" validate:"gte=0,lte=1"`
	DeviceRate       int           `env:"SPEECHPLAY_DEVICE_RATE" envDefault:"24000" validate:"gte=3000,lte=384000"`
	DefaultRate      int           `env:"SPEECHPLAY_DEFAULT_RATE" envDefault:"24000" validate:"gte=3000,lte=384000"`
	Lookahead        time.Duration `env:"SPEECHPLAY_LOOKAHEAD" envDefault:"0s" validate:"gte=0"`
	DiscoveryTimeout time.Duration `env:"SPEECHPLAY_DISCOVERY_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	LogLevel         string        `env:"SPEECHPLAY_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat        string        `env:"SPEECHPLAY_LOG_FORMAT" envDefault:"text" validate:"oneof=text json logfmt"`
	NoTUI            bool          `env:"SPEECHPLAY_NO_TUI"`
}

// Feed configures the speechfeed server
type Feed struct {
	Port          int           `env:"SPEECHFEED_PORT" envDefault:"8930" validate:"gte=1,lte=65535"`
	Name          string        `env:"SPEECHFEED_NAME" envDefault:"Speech Feed" validate:"required"`
	Path          string        `env:"SPEECHFEED_PATH" envDefault:"/speech" validate:"required,startswith=/"`
	File          string        `env:"SPEECHFEED_FILE" validate:"omitempty,file"`
	ToneSeconds   float64       `env:"SPEECHFEED_TONE_SECONDS" envDefault:"0" validate:"gte=0"`
	ToneRate      int           `env:"SPEECHFEED_TONE_RATE" envDefault:"24000" validate:"gte=8000,lte=48000"`
	Encoding      string        `env:"SPEECHFEED_ENCODING" envDefault:"pcm16" validate:"oneof=pcm16 pcm wav opus"`
	ChunkDuration time.Duration `env:"SPEECHFEED_CHUNK" envDefault:"100ms" validate:"gte=10ms,lte=2s"`
	Burst         int           `env:"SPEECHFEED_BURST" envDefault:"1" validate:"gte=1"`
	MDNS          bool          `env:"SPEECHFEED_MDNS" envDefault:"true"`
	LogLevel      string        `env:"SPEECHFEED_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat     string        `env:"SPEECHFEED_LOG_FORMAT" envDefault:"text" validate:"oneof=text json logfmt"`
}

// ReadFile points v at a config file. An empty path is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// LoadPlayer reads the environment and overlays every key set in v
func LoadPlayer(v *viper.Viper) (Player, error) {
	cfg, err := env.ParseAs[Player]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}

	if v.IsSet("server") {
		cfg.Server = v.GetString("server")
	}
	if v.IsSet("path") {
		cfg.Path = v.GetString("path")
	}
	if v.IsSet("name") {
		cfg.Name = v.GetString("name")
	}
	if v.IsSet("volume") {
		cfg.Volume = v.GetFloat64("volume")
	}
	if v.IsSet("device_rate") {
		cfg.DeviceRate = v.GetInt("device_rate")
	}
	if v.IsSet("default_rate") {
		cfg.DefaultRate = v.GetInt("default_rate")
	}
	if v.IsSet("lookahead") {
		cfg.Lookahead = v.GetDuration("lookahead")
	}
	if v.IsSet("discovery_timeout") {
		cfg.DiscoveryTimeout = v.GetDuration("discovery_timeout")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("log_format") {
		cfg.LogFormat = v.GetString("log_format")
	}
	if v.IsSet("no_tui") {
		cfg.NoTUI = v.GetBool("no_tui")
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// LoadFeed reads the environment and overlays every key set in v
func LoadFeed(v *viper.Viper) (Feed, error) {
	cfg, err := env.ParseAs[Feed]()
	if err != nil {
		return cfg, fmt.Errorf("error parsing environment: %w", err)
	}

	if v.IsSet("port") {
		cfg.Port = v.GetInt("port")
	}
	if v.IsSet("name") {
		cfg.Name = v.GetString("name")
	}
	if v.IsSet("path") {
		cfg.Path = v.GetString("path")
	}
	if v.IsSet("file") {
		cfg.File = v.GetString("file")
	}
	if v.IsSet("tone_seconds") {
		cfg.ToneSeconds = v.GetFloat64("tone_seconds")
	}
	if v.IsSet("tone_rate") {
		cfg.ToneRate = v.GetInt("tone_rate")
	}
	if v.IsSet("encoding") {
		cfg.Encoding = v.GetString("encoding")
	}
	if v.IsSet("chunk") {
		cfg.ChunkDuration = v.GetDuration("chunk")
	}
	if v.IsSet("burst") {
		cfg.Burst = v.GetInt("burst")
	}
	if v.IsSet("mdns") {
		cfg.MDNS = v.GetBool("mdns")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("log_format") {
		cfg.LogFormat = v.GetString("log_format")
	}

	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// NewLogger builds a logger writing to w at the given level and format
func NewLogger(w io.Writer, level, format string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	formatter := log.TextFormatter
	switch format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	}), nil
}
