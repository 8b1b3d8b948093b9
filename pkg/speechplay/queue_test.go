// ABOUTME: Tests for the entry priority queue
// ABOUTME: Tests ordering, removal and clearing
package speechplay

import (
	"container/heap"
	"testing"
	"time"
)

func TestEntryQueueOrdering(t *testing.T) {
	q := NewEntryQueue()
	if q.Peek() != nil {
		t.Fatal("expected nil from a fresh queue")
	}
	heap.Push(q, &Entry{Start: 30 * time.Millisecond, seq: 1})
	heap.Push(q, &Entry{Start: 10 * time.Millisecond, seq: 2})
	heap.Push(q, &Entry{Start: 10 * time.Millisecond, seq: 3})
	heap.Push(q, &Entry{Start: 20 * time.Millisecond, seq: 4})

	if q.Peek().seq != 2 {
		t.Errorf("expected earliest entry seq 2, got %d", q.Peek().seq)
	}

	snap := q.Snapshot()
	wantSeq := []uint64{2, 3, 4, 1}
	for i, want := range wantSeq {
		if snap[i].seq != want {
			t.Errorf("position %d: expected seq %d, got %d", i, want, snap[i].seq)
		}
	}
	if q.Len() != 4 {
		t.Errorf("snapshot must not consume the queue, len %d", q.Len())
	}
}

func TestEntryQueueRemove(t *testing.T) {
	q := NewEntryQueue()
	a := &Entry{Start: 0, seq: 1}
	b := &Entry{Start: 10, seq: 2}
	heap.Push(q, a)
	heap.Push(q, b)

	if !q.Remove(a) {
		t.Fatal("expected first removal to succeed")
	}
	if q.Remove(a) {
		t.Error("expected second removal to report false")
	}
	if q.Len() != 1 || q.Peek() != b {
		t.Error("expected only b to remain")
	}
}

func TestEntryQueueClear(t *testing.T) {
	q := NewEntryQueue()
	entries := []*Entry{{seq: 1}, {seq: 2}, {seq: 3}}
	for _, entry := range entries {
		heap.Push(q, entry)
	}

	q.Clear()
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
	if q.Peek() != nil {
		t.Error("expected no earliest entry on an empty queue")
	}
	for _, entry := range entries {
		if q.Remove(entry) {
			t.Errorf("entry %d should already be gone", entry.seq)
		}
	}
}
