// ABOUTME: Priority queue of in-flight playback entries
// ABOUTME: Orders entries by start time and supports removal on completion
package speechplay

import (
	"container/heap"
	"time"

	"github.com/lingoloop/speechplay/pkg/audio/output"
)

// Entry is one buffer handed to the output host
type Entry struct {
	Start      time.Duration
	Duration   time.Duration
	Frames     int
	SampleRate int

	voice output.Voice
	seq   uint64
	index int // heap position, -1 once removed
}

// End returns when the entry finishes playing
func (e Entry) End() time.Duration {
	return e.Start + e.Duration
}

// place sets Start and Duration from a device frame span
func (e *Entry) place(s *Scheduler, start, frames int64) {
	e.Start = s.Time(start)
	e.Duration = s.Time(start+frames) - e.Start
}

// EntryQueue is a min-heap on (Start, arrival order)
type EntryQueue struct {
	items []*Entry
}

// NewEntryQueue creates an empty queue
func NewEntryQueue() *EntryQueue {
	q := &EntryQueue{}
	heap.Init(q)
	return q
}

// Implement heap.Interface
func (q *EntryQueue) Len() int { return len(q.items) }

func (q *EntryQueue) Less(i, j int) bool {
	if q.items[i].Start != q.items[j].Start {
		return q.items[i].Start < q.items[j].Start
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *EntryQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *EntryQueue) Push(x interface{}) {
	entry := x.(*Entry)
	entry.index = len(q.items)
	q.items = append(q.items, entry)
}

func (q *EntryQueue) Pop() interface{} {
	n := len(q.items)
	entry := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	entry.index = -1
	return entry
}

// Peek returns the earliest entry, or nil when the queue is empty
func (q *EntryQueue) Peek() *Entry {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Remove takes entry out of the queue. It reports false if the entry was
// already removed.
func (q *EntryQueue) Remove(entry *Entry) bool {
	if entry.index < 0 || entry.index >= len(q.items) || q.items[entry.index] != entry {
		return false
	}
	heap.Remove(q, entry.index)
	return true
}

// Clear drops every entry
func (q *EntryQueue) Clear() {
	for _, entry := range q.items {
		entry.index = -1
	}
	clear(q.items)
	q.items = q.items[:0]
}

// Snapshot returns copies of the entries in start order
func (q *EntryQueue) Snapshot() []Entry {
	tmp := &EntryQueue{items: make([]*Entry, len(q.items))}
	for i, entry := range q.items {
		c := *entry
		c.index = i
		tmp.items[i] = &c
	}

	out := make([]Entry, 0, len(q.items))
	for tmp.Len() > 0 {
		out = append(out, *heap.Pop(tmp).(*Entry))
	}
	return out
}
