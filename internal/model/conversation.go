// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// MaxMessages is the maximum number of messages to keep in conversation
// history. When exceeded, old messages are pruned to prevent unbounded
// memory growth.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a complete chat conversation with history and metadata.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages
	Messages []*Message `json:"messages"`

	// Provider hint forwarded to the relay (optional)
	ProviderHint string `json:"provider_hint,omitempty"`

	// Context tracking
	TokensUsed int `json:"tokens_used"`
}

// NewConversation creates a new conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        NewID(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage adds a message to the conversation.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.touch()
}

// AddPair appends a user message and its assistant placeholder in a single
// transition, so the list never shows the user message without its pending
// counterpart.
func (c *Conversation) AddPair(user, placeholder *Message) {
	c.Messages = append(c.Messages, user, placeholder)
	c.touch()
}

// FindMessage returns the message with the given ID, or nil.
func (c *Conversation) FindMessage(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

func (c *Conversation) touch() {
	c.UpdatedAt = time.Now()
	c.updateTokenEstimate()
	c.updateTitle()
	c.pruneOldMessages()
}

// updateTokenEstimate recomputes the rough token usage for the history.
func (c *Conversation) updateTokenEstimate() {
	total := 0
	for _, msg := range c.Messages {
		total += msg.EstimateTokens()
	}
	c.TokensUsed = total
}

// updateTitle derives a title from the first user message if unset.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			title := strings.ReplaceAll(msg.Content, "\n", " ")
			runes := []rune(title)
			if len(runes) > 50 {
				title = string(runes[:47]) + "..."
			}
			c.Title = title
			return
		}
	}
}

// pruneOldMessages drops the oldest messages beyond MaxMessages.
func (c *Conversation) pruneOldMessages() {
	if len(c.Messages) <= MaxMessages {
		return
	}
	excess := len(c.Messages) - MaxMessages
	c.Messages = append(c.Messages[:0:0], c.Messages[excess:]...)
}
