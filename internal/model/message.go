// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status tracks a message through its send lifecycle.
type Status string

const (
	StatusSending   Status = "sending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further content changes.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content. Mutable for assistant messages while streaming, frozen once
	// the status is terminal.
	Content string `json:"content"`

	// Lifecycle
	Status Status `json:"status"`

	// Progress is the UI-visible value in [0,100]; it never decreases
	// within one send operation.
	Progress float64 `json:"progress"`
	Step     string  `json:"step,omitempty"`

	// Metadata is an open mapping: provider, model, citations, token usage,
	// and whatever diagnostics the relay attaches.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Attachments resolved at send time (user messages).
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Status:    StatusComplete,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message in the sending state.
func NewUserMessage(content string) *Message {
	msg := NewMessage(RoleUser, content)
	msg.Status = StatusSending
	return msg
}

// NewAssistantPlaceholder creates the empty assistant message that a send
// operation streams into. Its ID is stable for the operation's lifetime.
func NewAssistantPlaceholder() *Message {
	return &Message{
		ID:        NewID(),
		Role:      RoleAssistant,
		Status:    StatusStreaming,
		Timestamp: time.Now(),
		Metadata:  map[string]any{},
	}
}

// MergeMetadata applies a shallow patch; later keys win.
func (m *Message) MergeMetadata(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		m.Metadata[k] = v
	}
}

// Preview returns a truncated, newline-free preview of the content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// EstimateTokens gives a rough estimate of token count.
// Uses the approximation of ~4 characters per token.
func (m *Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// Attachment is a resolved descriptor for a file or image referenced by
// a message. Identifiers that fail to resolve are dropped before a message
// is built, so every Attachment here is complete.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Mime string `json:"mime_type"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// =============================================================================
// UPDATE SNAPSHOT
// =============================================================================

// Update is an immutable snapshot of a message's visible state, delivered
// to the UI by the commit scheduler. The metadata map is a copy.
type Update struct {
	MessageID string
	Content   string
	Status    Status
	Progress  float64
	Step      string
	Metadata  map[string]any
}

// Snapshot captures the message's current visible state.
func (m *Message) Snapshot() Update {
	meta := make(map[string]any, len(m.Metadata))
	for k, v := range m.Metadata {
		meta[k] = v
	}
	return Update{
		MessageID: m.ID,
		Content:   m.Content,
		Status:    m.Status,
		Progress:  m.Progress,
		Step:      m.Step,
		Metadata:  meta,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// NewID creates a unique identifier for messages and operations.
func NewID() string {
	return uuid.NewString()
}
