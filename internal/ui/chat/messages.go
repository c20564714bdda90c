// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the TUI.
//
// This file defines the Bubble Tea messages and the bridge that carries
// coordinator callbacks into the program's update loop. Callbacks fire on
// the send goroutine; the bridge converts them to messages consumed by
// Await so all state changes happen inside Update.
package chat

import (
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/relay"
)

// =============================================================================
// MESSAGES
// =============================================================================

// PairAddedMsg reports the optimistic user + placeholder pair.
type PairAddedMsg struct {
	User      model.Message
	Assistant model.Message
}

// CommitMsg carries a debounced streaming commit.
type CommitMsg struct {
	Update model.Update
}

// ActionMsg carries a side-channel action request from the stream.
type ActionMsg struct {
	Name    string
	Payload json.RawMessage
}

// SendResultMsg reports the outcome of a completed send.
type SendResultMsg struct {
	Err error
}

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge forwards coordinator callbacks into the Bubble Tea loop.
type Bridge struct {
	ch chan tea.Msg
}

// NewBridge creates a bridge with room for a burst of commits.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan tea.Msg, 64)}
}

// Callbacks returns the relay callbacks wired to this bridge.
func (b *Bridge) Callbacks() relay.Callbacks {
	return relay.Callbacks{
		OnMessages: func(user, assistant model.Message) {
			b.ch <- PairAddedMsg{User: user, Assistant: assistant}
		},
		OnUpdate: func(u model.Update) {
			b.ch <- CommitMsg{Update: u}
		},
		OnAction: func(name string, payload json.RawMessage) error {
			b.ch <- ActionMsg{Name: name, Payload: payload}
			return nil
		},
	}
}

// Await returns a command that delivers the next bridged message.
// Re-issue it after each delivery to keep draining.
func (b *Bridge) Await() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}
