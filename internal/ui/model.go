// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Shows connection, playback state, volume and ingestion stats
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	volumeStep = 5
	panelWidth = 56
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Width(9)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(panelWidth)
)

// Model represents the TUI state
type Model struct {
	// Connection
	connected      bool
	serverName     string
	encoding       string
	connectedSince time.Time

	// Playback
	state    string
	volume   int
	queueLen int
	buffered time.Duration

	// Stats
	received  int64
	bytes     uint64
	rejected  int64
	dropped   int64
	played    int64
	lastError string

	showDebug bool
	controls  *Controls

	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Speechplay"))
	b.WriteString("\n")
	b.WriteString(m.renderConnection())
	b.WriteString(m.renderPlayback())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n" + m.renderHelp()
}

func row(label, value string) string {
	return labelStyle.Render(label) + value + "\n"
}

// renderConnection renders the feed connection
func (m Model) renderConnection() string {
	if !m.connected {
		return row("Feed:", errStyle.Render("disconnected"))
	}

	s := row("Feed:", okStyle.Render(m.serverName))
	if !m.connectedSince.IsZero() {
		s += row("Since:", valueStyle.Render(humanize.Time(m.connectedSince)))
	}
	if m.encoding != "" {
		s += row("Format:", valueStyle.Render(m.encoding))
	}
	return s
}

// renderPlayback renders engine state, volume and buffer
func (m Model) renderPlayback() string {
	state := valueStyle.Render(m.state)
	switch m.state {
	case "running":
		state = okStyle.Render(m.state)
	case "suspended", "stopped":
		state = warnStyle.Render(m.state)
	case "uninitialized":
		state = errStyle.Render("no audio output")
	}

	s := row("State:", state)
	s += row("Volume:", fmt.Sprintf("%s %d%%", renderBar(m.volume, 100, 20), m.volume))
	s += row("Buffer:", valueStyle.Render(fmt.Sprintf("%dms in %d chunks", m.buffered.Milliseconds(), m.queueLen)))
	return s
}

// renderStats renders ingestion statistics
func (m Model) renderStats() string {
	s := row("Chunks:", valueStyle.Render(fmt.Sprintf("%s received (%s), %s played",
		humanize.Comma(m.received), humanize.Bytes(m.bytes), humanize.Comma(m.played))))

	lost := fmt.Sprintf("%s rejected, %s dropped", humanize.Comma(m.rejected), humanize.Comma(m.dropped))
	if m.rejected+m.dropped > 0 {
		s += row("Lost:", warnStyle.Render(lost))
	} else {
		s += row("Lost:", valueStyle.Render(lost))
	}
	return s
}

// renderDebug renders the last ingestion error
func (m Model) renderDebug() string {
	last := m.lastError
	if last == "" {
		last = "none"
	}
	return row("Error:", valueStyle.Render(truncate(last, panelWidth-12)))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return helpStyle.Render("↑/↓ volume  s stop  p pause  r resume  d debug  q quit") + "\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.send(CommandQuit)
		return m, tea.Quit
	case "up":
		m.volume = min(100, m.volume+volumeStep)
		m.controls.setVolume(m.volume)
	case "down":
		m.volume = max(0, m.volume-volumeStep)
		m.controls.setVolume(m.volume)
	case "s":
		m.controls.send(CommandStop)
	case "p":
		m.controls.send(CommandPause)
	case "r":
		m.controls.send(CommandResume)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
		if m.connected {
			m.connectedSince = time.Now()
		} else {
			m.encoding = ""
		}
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Encoding != "" {
		m.encoding = msg.Encoding
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Stats != nil {
		m.queueLen = msg.Stats.QueueLen
		m.buffered = msg.Stats.Buffered
		m.received = msg.Stats.Received
		m.bytes = msg.Stats.Bytes
		m.rejected = msg.Stats.Rejected
		m.dropped = msg.Stats.Dropped
		m.played = msg.Stats.Played
	}
	if msg.Error != "" {
		m.lastError = msg.Error
	}
}

// StatusMsg updates TUI state. Zero fields leave the current value.
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Encoding   string
	State      string
	Volume     *int
	Stats      *Stats
	Error      string
}

// Stats is a snapshot of playback counters
type Stats struct {
	QueueLen int
	Buffered time.Duration
	Received int64
	Bytes    uint64
	Rejected int64
	Dropped  int64
	Played   int64
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
