// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides SQLite-backed persistence for conversations,
// messages, and attachment descriptors.
//
// The store uses modernc.org/sqlite (pure Go, no cgo) with WAL journaling
// and a single writer connection. Message content is mirrored into an
// FTS5 table so past conversations can be searched and mined for relevant
// snippets to include with outgoing requests.
//
// # Key Types
//
//   - Store: the database handle; open one per process
//   - ConversationMeta: lightweight listing row for saved conversations
//   - Snippet: a full-text search hit over stored message content
//
// # Usage
//
// Open a store and save a conversation:
//
//	store, err := storage.Open(ctx, dbPath)
//	err = store.SaveConversation(ctx, conv)
//
// List and load conversations:
//
//	metas, err := store.ListConversations(ctx)
//	conv, err := store.LoadConversation(ctx, metas[0].ID)
//
// The store also resolves attachment descriptors by ID at send time;
// register them with PutAttachment.
package storage
