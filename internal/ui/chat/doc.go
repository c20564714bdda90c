// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view for the relay-tui application.

The chat package implements a terminal chat interface using the Bubble
Tea framework, streaming replies from the model-routing service through
the send coordinator.

# Key Components

## Model (model.go)

The Model struct is the central Bubble Tea model: displayed messages,
input field, viewport, streaming state, and the session/store
collaborators.

## Bridge (messages.go)

Coordinator callbacks fire on the send goroutine. The Bridge converts
them into Bubble Tea messages (PairAddedMsg, CommitMsg, ActionMsg) that
the update loop consumes via Await, so all state changes land inside
Update.

## Update (update.go) and View (view.go)

Update handles keys (Enter submits, Esc cancels the streaming reply,
C-q saves and quits), window resizes, bridged commits, and session
ticks. View renders the header, message list, streaming progress line,
input area, and status bar. Completed assistant replies are rendered as
markdown with glamour; streaming text stays plain to avoid flicker.
*/
package chat
