// ABOUTME: Oto-based audio output implementation
// ABOUTME: Feeds the software mixer to the sound card through a process-wide oto context
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process
var (
	otoCtx      *oto.Context
	otoRate     int
	otoInitOnce sync.Once
	otoInitErr  error
)

// ensureContext creates the oto context on first use. Later callers must ask
// for the same rate.
func ensureContext(sampleRate int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		<-readyChan
		otoRate = sampleRate
	})
	if otoInitErr != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", otoInitErr)
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("oto context already running at %dHz, cannot open at %dHz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// Oto plays a Mixer on the default sound device
type Oto struct {
	*Mixer
	player *oto.Player
}

// NewOto opens the sound device at sampleRate and starts pulling the mixer
func NewOto(sampleRate int) (*Oto, error) {
	ctx, err := ensureContext(sampleRate)
	if err != nil {
		return nil, err
	}

	mixer := NewMixer(sampleRate)
	player := ctx.NewPlayer(mixer)
	// Keep the player's read-ahead small so the mixer clock stays close to
	// what is actually audible: 50ms of mono int16.
	player.SetBufferSize(sampleRate / 20 * 2)
	player.Play()

	log.Info("Audio output initialized", "rate", sampleRate, "channels", 1)

	return &Oto{Mixer: mixer, player: player}, nil
}

// Suspend pauses the device and freezes the clock
func (o *Oto) Suspend() error {
	if err := o.Mixer.Suspend(); err != nil {
		return err
	}
	if err := otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend audio device: %w", err)
	}
	return nil
}

// Resume restarts the device
func (o *Oto) Resume() error {
	if err := otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume audio device: %w", err)
	}
	return o.Mixer.Resume()
}

// Close stops the player. The process-wide context stays open for reuse.
func (o *Oto) Close() error {
	if err := o.Mixer.Close(); err != nil {
		return err
	}
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("failed to close player: %w", err)
	}
	return nil
}
