// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/relay"
	"github.com/tallgrass-io/relay-tui/internal/session"
)

// =============================================================================
// COMMANDS
// =============================================================================

// sendCmd runs the blocking send off the update loop. Streaming commits
// arrive separately through the bridge.
func sendCmd(coord *relay.Coordinator, text string) tea.Cmd {
	return func() tea.Msg {
		return SendResultMsg{Err: coord.Send(context.Background(), text, nil, nil)}
	}
}

// saveCmd persists the conversation in the background.
func saveCmd(m Model) tea.Cmd {
	if m.store == nil {
		return nil
	}
	conv := m.coord.Conversation()
	store := m.store
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.SaveConversation(ctx, conv); err == nil {
			sess.MarkClean()
		}
		return nil
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.input.Width = msg.Width - 6

		contentHeight := msg.Height - chromeHeight(m)
		if contentHeight < 1 {
			contentHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = contentHeight
		}

		// Re-wrap markdown at the new width.
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStylePath(m.mdStyle),
			glamour.WithWordWrap(msg.Width-4),
		)
		if err == nil {
			m.renderer = renderer
		}
		m.refreshViewport()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Sequence(saveCmd(m), tea.Quit)

		case key.Matches(msg, m.keys.Cancel):
			if m.state == StateStreaming {
				m.coord.Cancel()
				m.notice = "cancelling..."
			}

		case key.Matches(msg, m.keys.Submit):
			if cmd := m.submit(); cmd != nil {
				cmds = append(cmds, cmd)
			}

		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down),
			key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)

		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case PairAddedMsg:
		m.messages = append(m.messages, msg.User, msg.Assistant)
		m.refreshViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, m.bridge.Await())

	case CommitMsg:
		m.applyCommit(msg.Update)
		m.refreshViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, m.bridge.Await())

	case ActionMsg:
		m.notice = "action requested: " + msg.Name
		cmds = append(cmds, m.bridge.Await())

	case SendResultMsg:
		m.state = StateReady
		m.progress = 0
		m.step = ""
		switch {
		case msg.Err == nil:
			m.lastErr = nil
			m.sess.MarkDirty()
			cmds = append(cmds, saveCmd(m))
		case errors.Is(msg.Err, relay.ErrCancelled):
			m.lastErr = nil
			m.notice = "reply cancelled"
		default:
			m.state = StateError
			m.lastErr = msg.Err
		}

	case session.TickMsg:
		cmds = append(cmds, m.sess.HandleTick())

	case session.TimeoutWarningMsg:
		m.notice = "session expires in " + session.FormatDuration(msg.Remaining)

	case session.TimeoutMsg:
		m.notice = "session expired - press C-q to quit"

	case session.AutoSaveMsg:
		cmds = append(cmds, saveCmd(m))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit validates and dispatches the typed message.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.state == StateStreaming {
		return nil
	}

	m.sess.RecordActivity()
	m.input.SetValue("")
	m.state = StateStreaming
	m.lastErr = nil
	m.notice = ""
	m.progress = 0
	m.step = ""

	return sendCmd(m.coord, text)
}

// applyCommit folds a commit snapshot into the displayed messages.
func (m *Model) applyCommit(u model.Update) {
	for i := range m.messages {
		if m.messages[i].ID != u.MessageID {
			continue
		}
		m.messages[i].Content = u.Content
		m.messages[i].Status = u.Status
		m.messages[i].Progress = u.Progress
		m.messages[i].Step = u.Step
		m.messages[i].Metadata = u.Metadata
		break
	}

	m.progress = u.Progress
	m.step = u.Step
	if name, ok := u.Metadata["model"].(string); ok {
		m.provider = name
	}
	if u.Status.Terminal() {
		m.progress = u.Progress
	}
}
