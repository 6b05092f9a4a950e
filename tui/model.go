package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/inviteflow/concierge/conversation"
	"github.com/inviteflow/concierge/quota"
	"github.com/inviteflow/concierge/tui/styles"
)

// Model is the chat application state. The conversation itself lives in the
// controller's state machine; the model only holds UI chrome and re-renders
// from state copies on every tick.
type Model struct {
	controller *conversation.Controller
	gate       *quota.Gate

	textarea textarea.Model
	chatView viewport.Model
	spinner  spinner.Model

	width       int
	height      int
	initialized bool

	// Last turn-level failure, shown inline until the next send.
	notice string

	theme styles.Theme
	keys  KeyMap
}

// KeyMap defines key bindings
type KeyMap struct {
	Quit    key.Binding
	Send    key.Binding
	Cancel  key.Binding
	Clear   key.Binding
	Confirm key.Binding
	Decline key.Binding
}

// DefaultKeyMap returns default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop response"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear conversation"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		Decline: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "decline"),
		),
	}
}

// Messages for the update loop
type (
	// turnFinishedMsg is sent when a Send turn returns
	turnFinishedMsg struct {
		err error
	}

	// confirmFinishedMsg is sent when a confirmed execution returns
	confirmFinishedMsg struct {
		err error
	}

	// tickMsg drives periodic re-rendering while the state changes in the
	// background
	tickMsg time.Time
)
