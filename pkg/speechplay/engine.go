// ABOUTME: Streaming speech playback engine
// ABOUTME: Owns the output host, shared gain stage, scheduler and entry queue
package speechplay

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lingoloop/speechplay/pkg/audio"
	"github.com/lingoloop/speechplay/pkg/audio/decode"
	"github.com/lingoloop/speechplay/pkg/audio/output"
)

// ErrSubmitFailed wraps the host error when a buffer could not be started
// even after resuming the host.
var ErrSubmitFailed = errors.New("output rejected buffer")

// State is the engine lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateSuspended
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// EngineConfig holds engine configuration
type EngineConfig struct {
	// HostFactory opens the output host. Defaults to an oto device at
	// DeviceSampleRate.
	HostFactory func() (output.Host, error)

	// DeviceSampleRate is the rate the default host opens at (default: 24000)
	DeviceSampleRate int

	// DefaultSampleRate is assumed for raw PCM without a declared rate
	// (default: 24000)
	DefaultSampleRate int

	// OpusSampleRate is the decode rate for Opus packets (default: 48000)
	OpusSampleRate int

	// Lookahead delays audio arriving after the cursor fell behind (default: 0)
	Lookahead time.Duration

	// RetryDelay is how far ahead a failed submission is retried (default: 10ms)
	RetryDelay time.Duration

	// Logger receives lifecycle and drop logs (default: log.Default())
	Logger *log.Logger

	// OnDrop is called for every chunk that does not reach the output
	OnDrop func(error)

	// OnStateChange is called when State changes
	OnStateChange func(State)
}

// AddOptions are per-chunk ingestion options
type AddOptions struct {
	// SampleRate of raw PCM or the Opus decode rate. Zero uses the default.
	SampleRate int

	// Volume, if set, is applied to the shared gain before the chunk is decoded
	Volume *float64
}

// Stats contains ingestion statistics
type Stats struct {
	Received  int64
	Rejected  int64 // failed to decode
	Scheduled int64
	Retried   int64
	Dropped   int64 // failed to submit after retry
	Played    int64
}

// Engine turns bursty speech chunks into gapless playback. All methods are
// safe for concurrent use; completion callbacks arrive from the audio thread.
type Engine struct {
	mu     sync.Mutex
	config EngineConfig
	log    *log.Logger

	host      output.Host
	gain      output.Gain
	volume    float64
	scheduler *Scheduler
	queue     *EntryQueue
	state     State
	opus      *decode.OpusDecoder
	seq       uint64
	stats     Stats

	// callbacks deferred until the lock is released
	pending []func()
}

// NewEngine creates an uninitialized engine
func NewEngine(config EngineConfig) *Engine {
	if config.DeviceSampleRate == 0 {
		config.DeviceSampleRate = audio.DefaultSampleRate
	}
	if config.DefaultSampleRate == 0 {
		config.DefaultSampleRate = audio.DefaultSampleRate
	}
	if config.OpusSampleRate == 0 {
		config.OpusSampleRate = 48000
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 10 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.HostFactory == nil {
		rate := config.DeviceSampleRate
		config.HostFactory = func() (output.Host, error) {
			return output.NewOto(rate)
		}
	}

	return &Engine{
		config: config,
		log:    config.Logger,
		volume: 1.0,
		queue:  NewEntryQueue(),
		state:  StateUninitialized,
	}
}

// unlock releases the engine lock and then runs deferred callbacks
func (e *Engine) unlock() {
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Initialize opens the output host and wires the gain stage. If the host
// cannot be opened the engine stays uninitialized, every other call is a
// no-op, and the error is returned for reporting only.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.unlock()

	switch e.state {
	case StateRunning, StateSuspended:
		return nil
	case StateStopped:
		e.scheduler.Advance(e.scheduler.Frame(e.host.Now()))
		e.setStateLocked(StateRunning)
		return nil
	}

	host, err := e.config.HostFactory()
	if err != nil {
		e.log.Warn("Audio output unavailable, playback disabled", "err", err)
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	e.host = host
	e.gain = host.NewGain(e.volume)
	e.gain.Connect()
	e.scheduler = NewScheduler(host.SampleRate(), host.Now(), e.config.Lookahead)
	e.setStateLocked(StateRunning)

	e.log.Info("Playback engine initialized", "lookahead", e.config.Lookahead)
	return nil
}

// SetVolume sets the shared gain. Values are clamped to [0, 1]; NaN is
// ignored. Takes effect immediately for audio already playing.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.unlock()
	e.setVolumeLocked(v)
}

func (e *Engine) setVolumeLocked(v float64) {
	if e.host == nil || math.IsNaN(v) {
		return
	}
	v = math.Max(0, math.Min(1, v))
	e.volume = v
	e.gain.SetLevel(v)
}

// Stop silences everything scheduled, replaces the gain stage with a fresh
// one at full volume, empties the queue and pulls the cursor back to now.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.unlock()

	if e.host == nil {
		return nil
	}

	e.gain.Disconnect()
	e.volume = 1.0
	e.gain = e.host.NewGain(e.volume)
	e.gain.Connect()

	e.queue.Clear()
	e.scheduler.Reset(e.scheduler.Frame(e.host.Now()))
	e.opus = nil
	e.setStateLocked(StateStopped)

	e.log.Debug("Playback stopped")
	return nil
}

// Resume resumes a suspended host and makes the engine Running again
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.unlock()

	if e.host == nil {
		return nil
	}

	if e.host.Suspended() {
		if err := e.host.Resume(); err != nil {
			return fmt.Errorf("failed to resume audio output: %w", err)
		}
		if e.state == StateRunning {
			e.notifyLocked(StateRunning)
		}
	}
	e.scheduler.Advance(e.scheduler.Frame(e.host.Now()))
	e.setStateLocked(StateRunning)
	return nil
}

// Suspend pauses the host. Scheduled audio resumes where it left off.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.unlock()

	if e.host == nil {
		return nil
	}
	was := e.host.Suspended()
	if err := e.host.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend audio output: %w", err)
	}
	if !was && e.state == StateRunning {
		e.notifyLocked(StateSuspended)
	}
	return nil
}

// Clear forgets queued entries without touching audio already handed to the
// host, which keeps playing.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.unlock()

	if e.host == nil {
		return
	}
	e.queue.Clear()
}

// Close releases the output host. The engine returns to Uninitialized.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.unlock()

	if e.host == nil {
		return nil
	}

	err := e.host.Close()
	e.host = nil
	e.gain = nil
	e.opus = nil
	e.queue.Clear()
	e.setStateLocked(StateUninitialized)
	return err
}

// State returns the lifecycle state. A Running engine whose host has been
// suspended reports Suspended.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning && e.host.Suspended() {
		return StateSuspended
	}
	return e.state
}

// Volume returns the shared gain level
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// QueueLen returns the number of entries not yet finished or cleared
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Len()
}

// Queue returns a snapshot of the queued entries in start order
func (e *Engine) Queue() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Snapshot()
}

// Cursor returns the next free slot on the device clock
func (e *Engine) Cursor() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scheduler == nil {
		return 0
	}
	return e.scheduler.Cursor()
}

// Now returns the device clock, or zero before initialization
func (e *Engine) Now() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host == nil {
		return 0
	}
	return e.host.Now()
}

// Buffered returns how much scheduled audio lies ahead of the device clock
func (e *Engine) Buffered() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.host == nil {
		return 0
	}
	return max(0, e.scheduler.Cursor()-e.host.Now())
}

// Stats returns ingestion statistics
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) setStateLocked(s State) {
	if e.state == s {
		return
	}
	e.state = s
	e.notifyLocked(s)
}

// notifyLocked reports an observable state change. Host suspension changes
// what State returns without touching e.state, so it is reported here too.
func (e *Engine) notifyLocked(s State) {
	if cb := e.config.OnStateChange; cb != nil {
		e.pending = append(e.pending, func() { cb(s) })
	}
}

func (e *Engine) dropLocked(err error) {
	e.log.Debug("Dropped chunk", "err", err)
	if cb := e.config.OnDrop; cb != nil {
		e.pending = append(e.pending, func() { cb(err) })
	}
}

// scheduleLocked hands a decoded buffer to the host at the next free slot.
// A rejected submission is retried once after forcing the host to resume.
func (e *Engine) scheduleLocked(buf audio.Buffer) {
	clip, err := e.host.CreateClip(buf)
	if err != nil {
		e.stats.Rejected++
		e.dropLocked(err)
		return
	}

	// a restart from Stopped reports Running here, not again on a forced resume
	restarted := e.state == StateStopped
	if restarted {
		e.setStateLocked(StateRunning)
	}

	e.seq++
	entry := &Entry{
		Frames:     buf.Frames(),
		SampleRate: buf.SampleRate,
		seq:        e.seq,
		index:      -1,
	}

	// positions are whole device frames; times are derived from them
	frames := clip.DeviceFrames(e.host.SampleRate())
	prev := e.scheduler.CursorFrame()
	start := e.scheduler.ScheduleStart(frames, e.host.Now())
	entry.place(e.scheduler, start, frames)

	voice, err := e.host.Start(clip, e.gain, entry.Start, e.onEnded(entry))
	if err != nil {
		e.stats.Retried++
		e.log.Debug("Submission failed, resuming output and retrying", "err", err)

		was := e.host.Suspended()
		if rerr := e.host.Resume(); rerr != nil {
			e.log.Warn("Failed to resume audio output", "err", rerr)
		} else if was && !restarted {
			e.notifyLocked(StateRunning)
		}

		retry := max(start, e.scheduler.Frame(e.host.Now()+e.config.RetryDelay))
		entry.place(e.scheduler, retry, frames)
		voice, err = e.host.Start(clip, e.gain, entry.Start, e.onEnded(entry))
		if err != nil {
			e.scheduler.Reset(prev)
			e.stats.Dropped++
			e.dropLocked(fmt.Errorf("%w: %w", ErrSubmitFailed, err))
			return
		}
		e.scheduler.Advance(retry + frames)
	}

	entry.voice = voice
	e.stats.Scheduled++
	heap.Push(e.queue, entry)
}

// onEnded removes the entry when the host reports completion. Entries
// already cleared are only counted.
func (e *Engine) onEnded(entry *Entry) func() {
	return func() {
		e.mu.Lock()
		defer e.unlock()

		e.stats.Played++
		e.queue.Remove(entry)
	}
}
