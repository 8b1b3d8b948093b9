// ABOUTME: Gapless playback scheduler
// ABOUTME: Tracks the next free frame on the device clock and hands out start positions
package speechplay

import (
	"time"

	"github.com/lingoloop/speechplay/pkg/audio"
)

// Scheduler owns the cursor: the earliest device frame new audio may start.
// Positions are whole frames at the device rate, so back-to-back buffers
// stay contiguous however long the run. The cursor only moves forward
// except through Reset.
type Scheduler struct {
	rate      int
	cursor    int64
	lookahead int64
}

// NewScheduler creates a scheduler for a device running at rate with its
// cursor at now. A positive lookahead delays audio that arrives after the
// cursor has fallen behind the device clock, trading latency for fewer gaps
// under jitter.
func NewScheduler(rate int, now, lookahead time.Duration) *Scheduler {
	if lookahead < 0 {
		lookahead = 0
	}
	return &Scheduler{
		rate:      rate,
		cursor:    audio.CeilFrames(now, rate),
		lookahead: audio.CeilFrames(lookahead, rate),
	}
}

// ScheduleStart returns the start frame for a buffer lasting frames device
// frames and moves the cursor to its end.
func (s *Scheduler) ScheduleStart(frames int64, now time.Duration) int64 {
	start := s.cursor
	if n := s.Frame(now); start < n {
		start = n + s.lookahead
	}
	s.cursor = start + frames
	return start
}

// Advance moves the cursor to frame if it is later
func (s *Scheduler) Advance(frame int64) {
	if frame > s.cursor {
		s.cursor = frame
	}
}

// Reset places the cursor at frame unconditionally
func (s *Scheduler) Reset(frame int64) {
	s.cursor = frame
}

// CursorFrame returns the next free frame
func (s *Scheduler) CursorFrame() int64 {
	return s.cursor
}

// Cursor returns the next free slot as device time
func (s *Scheduler) Cursor() time.Duration {
	return s.Time(s.cursor)
}

// Frame returns the first device frame at or after t
func (s *Scheduler) Frame(t time.Duration) int64 {
	return audio.CeilFrames(t, s.rate)
}

// Time returns the device time of frame
func (s *Scheduler) Time(frame int64) time.Duration {
	return audio.FramesToDuration(frame, s.rate)
}
