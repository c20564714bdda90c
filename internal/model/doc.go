// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations and their messages.
//
// # Key Types
//
//   - Conversation: container for a chat session with messages and metadata
//   - Message: single message with role, content, status, and progress
//   - Attachment: resolved descriptor for a referenced file or image
//   - Role / Status: message enumerations
//
// A Message is owned by its Conversation's message list. Assistant content
// is mutable while the message status is streaming and frozen once it
// reaches a terminal status. Only the send coordinator mutates messages;
// UI code reads the snapshots it is handed.
package model
