// ABOUTME: Tests for the feed TUI model
// ABOUTME: Checks player rendering and operator actions
package ui

import (
	"strings"
	"testing"
)

func TestFeedModelView(t *testing.T) {
	m := feedModel{actions: make(chan FeedAction, 4)}
	if !strings.Contains(m.View(), "No players connected") {
		t.Error("expected empty player list")
	}

	next, _ := m.Update(feedStatusMsg(FeedStatus{
		Name:     "Kitchen Tutor",
		Port:     8930,
		Source:   "tone",
		Encoding: "wav",
		Players:  []PlayerInfo{{Name: "hall", Encoding: "wav", State: "running", QueueLen: 4, BufferedMs: 320, Sent: 12345}},
	}))
	view := next.(feedModel).View()

	for _, want := range []string{"Kitchen Tutor", "8930", "Players (1)", "hall", "4 queued", "320ms buffered", "12,345"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestFeedModelActions(t *testing.T) {
	tests := []struct {
		key  string
		want FeedAction
	}{
		{"i", FeedInterrupt},
		{"c", FeedClear},
		{"q", FeedQuit},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m := feedModel{actions: make(chan FeedAction, 4)}
			_, cmd := m.Update(key(tt.key))

			select {
			case a := <-m.actions:
				if a != tt.want {
					t.Errorf("expected action %d, got %d", tt.want, a)
				}
			default:
				t.Fatal("no action sent")
			}
			if (tt.want == FeedQuit) != (cmd != nil) {
				t.Errorf("unexpected command for %q", tt.key)
			}
		})
	}
}
