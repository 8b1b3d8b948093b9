// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, environment, file overlay and validation failures
package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadPlayerDefaults(t *testing.T) {
	cfg, err := LoadPlayer(viper.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Path != "/speech" || cfg.Name != "Speechplay" {
		t.Errorf("unexpected path/name %q %q", cfg.Path, cfg.Name)
	}
	if cfg.Volume != 1 || cfg.DeviceRate != 24000 || cfg.DefaultRate != 24000 {
		t.Errorf("unexpected audio defaults %+v", cfg)
	}
	if cfg.Lookahead != 0 || cfg.DiscoveryTimeout != 5*time.Second {
		t.Errorf("unexpected timing defaults %v %v", cfg.Lookahead, cfg.DiscoveryTimeout)
	}
	if cfg.Server != "" || cfg.NoTUI {
		t.Errorf("expected discovery with TUI by default")
	}
}

func TestLoadPlayerEnvironment(t *testing.T) {
	t.Setenv("SPEECHPLAY_SERVER", "10.0.0.5:8930")
	t.Setenv("SPEECHPLAY_VOLUME", "0.4")
	t.Setenv("SPEECHPLAY_LOOKAHEAD", "150ms")
	t.Setenv("SPEECHPLAY_NO_TUI", "true")

	cfg, err := LoadPlayer(viper.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server != "10.0.0.5:8930" || cfg.Volume != 0.4 || cfg.Lookahead != 150*time.Millisecond || !cfg.NoTUI {
		t.Errorf("environment not applied: %+v", cfg)
	}
}

func TestLoadPlayerFileOverridesEnvironment(t *testing.T) {
	t.Setenv("SPEECHPLAY_NAME", "From Env")
	t.Setenv("SPEECHPLAY_DEVICE_RATE", "48000")

	path := filepath.Join(t.TempDir(), "speechplay.yaml")
	content := "name: Kitchen\nvolume: 0.25\nlookahead: 80ms\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	cfg, err := LoadPlayer(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Name != "Kitchen" || cfg.Volume != 0.25 || cfg.Lookahead != 80*time.Millisecond {
		t.Errorf("file not applied: %+v", cfg)
	}
	if cfg.DeviceRate != 48000 {
		t.Errorf("expected untouched env value 48000, got %d", cfg.DeviceRate)
	}
}

func TestLoadPlayerValidation(t *testing.T) {
	tests := []struct {
		key   string
		value interface{}
	}{
		{"volume", 1.5},
		{"volume", -0.1},
		{"device_rate", 1000},
		{"path", "speech"},
		{"name", ""},
		{"lookahead", "-5ms"},
		{"log_level", "chatty"},
		{"log_format", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			if _, err := LoadPlayer(v); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid for %s=%v, got %v", tt.key, tt.value, err)
			}
		})
	}
}

func TestReadFileMissing(t *testing.T) {
	if err := ReadFile(viper.New(), ""); err != nil {
		t.Errorf("empty path should be ignored, got %v", err)
	}
	if err := ReadFile(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFeed(t *testing.T) {
	cfg, err := LoadFeed(viper.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8930 || cfg.Encoding != "pcm16" || cfg.ChunkDuration != 100*time.Millisecond || !cfg.MDNS {
		t.Errorf("unexpected defaults %+v", cfg)
	}

	v := viper.New()
	v.Set("encoding", "opus")
	v.Set("burst", 5)
	v.Set("mdns", false)
	cfg, err = LoadFeed(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Encoding != "opus" || cfg.Burst != 5 || cfg.MDNS {
		t.Errorf("overlay not applied: %+v", cfg)
	}

	v = viper.New()
	v.Set("file", filepath.Join(t.TempDir(), "missing.wav"))
	if _, err := LoadFeed(v); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for missing file, got %v", err)
	}

	v = viper.New()
	v.Set("encoding", "flac")
	if _, err := LoadFeed(v); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown encoding, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "logfmt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected logfmt output, got %q", out)
	}

	if _, err := NewLogger(&buf, "loud", "text"); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for bad level, got %v", err)
	}
}
