// ABOUTME: Feed TUI showing connected players and their playback state
// ABOUTME: Real-time speechfeed status display using bubbletea
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// FeedAction is a key pressed in the feed TUI
type FeedAction int

const (
	FeedInterrupt FeedAction = iota // broadcast audio/stop
	FeedClear                       // broadcast audio/clear
	FeedQuit
)

// FeedStatus holds feed state for the TUI
type FeedStatus struct {
	Name     string
	Port     int
	Source   string
	Encoding string
	Players  []PlayerInfo
}

// PlayerInfo describes one connected player
type PlayerInfo struct {
	Name       string
	Encoding   string
	State      string
	QueueLen   int
	BufferedMs int64
	Sent       int64
}

// FeedTUI manages the feed TUI
type FeedTUI struct {
	program *tea.Program
	actions chan FeedAction
}

type feedModel struct {
	status    FeedStatus
	startTime time.Time
	quitting  bool
	actions   chan FeedAction
}

type feedTickMsg time.Time
type feedStatusMsg FeedStatus

func feedTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return feedTickMsg(t)
	})
}

func (m feedModel) Init() tea.Cmd {
	return feedTick()
}

func (m feedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.act(FeedQuit)
			return m, tea.Quit
		case "i":
			m.act(FeedInterrupt)
		case "c":
			m.act(FeedClear)
		}

	case feedTickMsg:
		return m, feedTick()

	case feedStatusMsg:
		m.status = FeedStatus(msg)
	}

	return m, nil
}

func (m feedModel) act(a FeedAction) {
	select {
	case m.actions <- a:
	default:
	}
}

func (m feedModel) View() string {
	if m.quitting {
		return "Shutting down feed...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Speech Feed"))
	b.WriteString("\n\n")
	b.WriteString(row("Feed:", valueStyle.Render(m.status.Name)))
	b.WriteString(row("Port:", valueStyle.Render(fmt.Sprintf("%d", m.status.Port))))
	b.WriteString(row("Source:", valueStyle.Render(fmt.Sprintf("%s (%s)", m.status.Source, m.status.Encoding))))
	b.WriteString(row("Uptime:", valueStyle.Render(time.Since(m.startTime).Round(time.Second).String())))
	b.WriteString("\n")

	b.WriteString(warnStyle.Bold(true).Render(fmt.Sprintf("Players (%d)", len(m.status.Players))))
	b.WriteString("\n")
	if len(m.status.Players) == 0 {
		b.WriteString(valueStyle.Render("  No players connected"))
		b.WriteString("\n")
	}
	for _, p := range m.status.Players {
		b.WriteString(fmt.Sprintf("  • %s", p.Name))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" %s, %s, %d queued, %dms buffered, %s chunks sent",
			p.Encoding, p.State, p.QueueLen, p.BufferedMs, humanize.Comma(p.Sent))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("i interrupt  c clear  q quit"))
	return b.String()
}

// NewFeedTUI creates a feed TUI
func NewFeedTUI(status FeedStatus) *FeedTUI {
	actions := make(chan FeedAction, 4)
	m := feedModel{status: status, startTime: time.Now(), actions: actions}
	return &FeedTUI{
		program: tea.NewProgram(m, tea.WithAltScreen()),
		actions: actions,
	}
}

// Run blocks until the TUI exits
func (t *FeedTUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *FeedTUI) Update(status FeedStatus) {
	t.program.Send(feedStatusMsg(status))
}

// Stop stops the TUI
func (t *FeedTUI) Stop() {
	t.program.Quit()
}

// Actions returns keys pressed by the operator
func (t *FeedTUI) Actions() <-chan FeedAction {
	return t.actions
}
