// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/util"
)

// =============================================================================
// CONVERSATION METADATA
// =============================================================================

// ConversationMeta is a lightweight listing row for saved conversations.
type ConversationMeta struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	TokensUsed   int
	Preview      string
}

// Snippet is a full-text search hit over stored message content.
type Snippet struct {
	ConversationID string
	MessageID      string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// =============================================================================
// SAVE / LOAD
// =============================================================================

// SaveConversation upserts the conversation and replaces its messages.
func (s *Store) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, title, provider_hint, tokens_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			provider_hint = excluded.provider_hint,
			tokens_used = excluded.tokens_used,
			updated_at = excluded.updated_at
	`, conv.ID, conv.Title, conv.ProviderHint, conv.TokensUsed,
		conv.CreatedAt.Unix(), conv.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	// Replace messages wholesale; conversations are small (bounded by the
	// in-memory message cap) so this is simpler than diffing.
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, conversation_id, seq, role, content, status, progress, step, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range conv.Messages {
		meta := "{}"
		if len(msg.Metadata) > 0 {
			b, err := json.Marshal(msg.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for message %s: %w", msg.ID, err)
			}
			meta = string(b)
		}
		_, err := stmt.ExecContext(ctx, msg.ID, conv.ID, i,
			string(msg.Role), msg.Content, string(msg.Status),
			msg.Progress, msg.Step, meta, msg.Timestamp.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
		}
	}

	return tx.Commit()
}

// LoadConversation loads a conversation and its messages by ID.
func (s *Store) LoadConversation(ctx context.Context, id string) (*model.Conversation, error) {
	if s.closed {
		return nil, ErrClosed
	}

	conv := &model.Conversation{}
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, provider_hint, tokens_used, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.Title, &conv.ProviderHint, &conv.TokensUsed, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.CreatedAt = time.Unix(created, 0)
	conv.UpdatedAt = time.Unix(updated, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, status, progress, step, metadata, created_at
		FROM messages WHERE conversation_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg := &model.Message{}
		var role, status, meta string
		var ts int64
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &status,
			&msg.Progress, &msg.Step, &meta, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = model.Role(role)
		msg.Status = model.Status(status)
		msg.Timestamp = time.Unix(ts, 0)
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &msg.Metadata); err != nil {
				// Metadata is advisory; a bad blob should not lose the message.
				msg.Metadata = nil
			}
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

// =============================================================================
// LISTING / SEARCH
// =============================================================================

// ListConversations returns saved conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]ConversationMeta, error) {
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.tokens_used, c.created_at, c.updated_at,
		       COUNT(m.id),
		       COALESCE((SELECT content FROM messages
		                 WHERE conversation_id = c.id AND role = 'user'
		                 ORDER BY seq LIMIT 1), '')
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var metas []ConversationMeta
	for rows.Next() {
		var meta ConversationMeta
		var created, updated int64
		var preview string
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.TokensUsed,
			&created, &updated, &meta.MessageCount, &preview); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		meta.CreatedAt = time.Unix(created, 0)
		meta.UpdatedAt = time.Unix(updated, 0)
		meta.Preview = util.TruncateRunes(preview, 60)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// SearchMessages runs a full-text query over stored message content.
// Results are ranked by relevance.
func (s *Store) SearchMessages(ctx context.Context, query string, limit int) ([]Snippet, error) {
	if s.closed {
		return nil, ErrClosed
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.conversation_id, m.id, m.role, m.content, m.created_at
		FROM messages_fts f
		JOIN messages m ON m.rowid_alias = f.rowid
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var hits []Snippet
	for rows.Next() {
		var sn Snippet
		var ts int64
		if err := rows.Scan(&sn.ConversationID, &sn.MessageID, &sn.Role, &sn.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		sn.CreatedAt = time.Unix(ts, 0)
		hits = append(hits, sn)
	}
	return hits, rows.Err()
}

// ftsQuery turns free text into an OR query of quoted terms so user
// input cannot inject FTS5 syntax.
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if s.closed {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearConversations removes all saved conversations.
func (s *Store) ClearConversations(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations`)
	return err
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatConversationList formats saved conversations as a table for display.
func FormatConversationList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	sb.WriteString("Conversations:\n")
	sb.WriteString("-----------------------------------------------------\n")
	sb.WriteString(formatPadded("ID", 12) + " " + formatPadded("Updated", 20) + " " + formatPadded("Messages", 8) + " Preview\n")
	sb.WriteString("-----------------------------------------------------\n")

	for _, m := range metas {
		idStr := m.ID
		if len(idStr) > 12 {
			idStr = idStr[:12]
		}
		sb.WriteString(formatPadded(idStr, 12) + " " +
			formatPadded(m.UpdatedAt.Format("2006-01-02 15:04"), 20) + " " +
			formatPadded(util.IntToStr(m.MessageCount), 8) + " " +
			util.TruncateRunes(m.Preview, 30) + "\n")
	}
	return sb.String()
}

// formatPadded pads a string to the specified width with spaces.
func formatPadded(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(runes))
}
