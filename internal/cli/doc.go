// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI command
// handlers for relay.
//
// The default invocation starts the full-screen TUI; everything else
// routes through here:
//
//   - ask: single question, reply streamed to stdout
//   - chat: readline-style interactive chat
//   - auth: encrypted bearer-token vault management
//   - list: saved-conversation listing, search, and deletion
//   - config: view and modify configuration
//
// Handlers share one wired stack (config, SQLite store, session manager,
// retrying transport, send coordinator) assembled by BuildApp, so a send
// behaves identically in the CLI and the TUI.
package cli
