// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the TUI.
//
// This file contains the rendering logic for the chat interface:
// header, message list, streaming progress line, input area, and
// status bar.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/tallgrass-io/relay-tui/internal/model"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the complete chat view.
// Layout: header (1 line) + messages (viewport) + [progress (1 line)]
// + input (2 lines) + status (1 line).
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if m.showProgress && m.state == StateStreaming {
		sections = append(sections, m.renderProgress())
	}
	sections = append(sections, m.renderInput(), m.renderStatus())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// chromeHeight is the number of lines used outside the viewport.
func chromeHeight(m Model) int {
	h := 4 // header + input border + input + status
	if m.showProgress && m.state == StateStreaming {
		h++
	}
	return h
}

// =============================================================================
// SECTIONS
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("relay")
	meta := ""
	if m.provider != "" {
		meta = m.theme.HeaderMeta.Render(" · " + m.provider)
	}
	line := title + meta
	return m.theme.Header.Width(m.width).Render(line)
}

func (m Model) renderProgress() string {
	bar := m.spin.View() + " " + m.theme.ProgressLine.Render(fmt.Sprintf("%3.0f%%", m.progress))
	if m.step != "" {
		bar += " " + m.theme.ProgressStep.Render(m.step)
	}
	return bar
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

func (m Model) renderStatus() string {
	var left string
	switch m.state {
	case StateStreaming:
		left = m.theme.StatusBusy.Render("streaming")
	case StateError:
		left = m.theme.StatusError.Render(truncateError(m.lastErr))
	default:
		left = m.theme.StatusOK.Render("ready")
	}
	if m.notice != "" {
		left += "  " + m.theme.ShortcutDesc.Render(m.notice)
	}

	right := m.renderShortcuts()
	pad := m.width - runewidth.StringWidth(stripANSI(left)) - runewidth.StringWidth(stripANSI(right)) - 2
	if pad < 1 {
		pad = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", pad) + right)
}

func (m Model) renderShortcuts() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// refreshViewport re-renders the message list into the viewport.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	var sb strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
}

func (m Model) renderMessage(msg model.Message) string {
	label := m.theme.UserLabel.Render(msg.Role.DisplayName()) + " " +
		m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	switch msg.Role {
	case model.RoleUser:
		return label + "\n" + m.theme.UserText.Width(m.width-4).Render(msg.Content)

	case model.RoleAssistant:
		body := msg.Content
		// Completed replies get full markdown rendering; streaming text
		// stays plain so partial markup does not flicker.
		if msg.Status == model.StatusComplete && m.renderer != nil {
			if rendered, err := m.renderer.Render(body); err == nil {
				body = strings.TrimRight(rendered, "\n")
			}
		}
		out := label + "\n" + m.theme.AssistantText.Width(m.width-4).Render(body)
		switch msg.Status {
		case model.StatusCancelled:
			out += "\n" + m.theme.CancelledText.Render("(cancelled)")
		case model.StatusError:
			out += "\n" + m.theme.ErrorText.Render("(failed)")
		}
		return out

	default:
		return m.theme.SystemText.Render(msg.Content)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

// stripANSI removes escape sequences so width math counts visible cells.
func stripANSI(s string) string {
	var sb strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
