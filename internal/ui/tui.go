// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and carries key commands to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Command is a transport key pressed in the TUI
type Command int

const (
	CommandStop Command = iota
	CommandPause
	CommandResume
	CommandQuit
)

// Controls carries TUI input to the player
type Controls struct {
	Volume   chan int // percent, 0-100
	Commands chan Command
}

// NewControls creates a control handler
func NewControls() *Controls {
	return &Controls{
		Volume:   make(chan int, 10),
		Commands: make(chan Command, 10),
	}
}

// setVolume replaces any pending volume with the latest one
func (c *Controls) setVolume(percent int) {
	if c == nil {
		return
	}
	for {
		select {
		case c.Volume <- percent:
			return
		default:
		}
		select {
		case <-c.Volume:
		default:
		}
	}
}

func (c *Controls) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		state:    "uninitialized",
		controls: controls,
	}
}

// Run creates the TUI program. The caller runs it and sends StatusMsg updates.
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
