// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the TUI.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/tallgrass-io/relay-tui/internal/config"
	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/relay"
	"github.com/tallgrass-io/relay-tui/internal/session"
	"github.com/tallgrass-io/relay-tui/internal/storage"
	"github.com/tallgrass-io/relay-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving a streaming reply
	StateError                  // Showing a send failure
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Collaborators
	coord  *relay.Coordinator
	sess   *session.Manager
	store  *storage.Store
	bridge *Bridge

	// State
	state    State
	lastErr  error
	notice   string
	progress float64
	step     string
	provider string

	// Displayed messages (value copies, updated only via commits)
	messages []model.Message

	// Styling and layout
	theme        *styles.Theme
	showProgress bool
	mdStyle      string
	width        int
	height       int
	ready        bool

	// Components
	keys     KeyMap
	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer
}

// New creates the chat model wired to the given collaborators.
// The store may be nil when persistence is disabled.
func New(coord *relay.Coordinator, sess *session.Manager, store *storage.Store, cfg *config.Config) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.CharLimit = 0
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	bridge := NewBridge()
	coord.SetCallbacks(bridge.Callbacks())

	return Model{
		coord:        coord,
		sess:         sess,
		store:        store,
		bridge:       bridge,
		theme:        styles.NewTheme(),
		showProgress: cfg.UI.ShowProgress,
		mdStyle:      cfg.UI.MarkdownStyle,
		keys:         DefaultKeyMap(),
		input:        input,
		spin:         spin,
	}
}

// Init starts the input cursor, the session ticker, and the bridge drain.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		session.TickCmd(),
		m.bridge.Await(),
	)
}

// Streaming reports whether a reply is currently streaming.
func (m Model) Streaming() bool {
	return m.state == StateStreaming
}

// Messages returns the displayed messages.
func (m Model) Messages() []model.Message {
	return m.messages
}
