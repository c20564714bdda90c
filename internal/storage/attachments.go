// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/relay"
)

// =============================================================================
// ATTACHMENT DESCRIPTORS
// =============================================================================

// PutAttachment registers an attachment descriptor so it can be
// resolved by ID at send time. Re-registering an ID overwrites it.
func (s *Store) PutAttachment(ctx context.Context, att model.Attachment) error {
	if s.closed {
		return ErrClosed
	}
	if att.ID == "" {
		att.ID = model.NewID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, name, mime, url, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mime = excluded.mime,
			url = excluded.url,
			size = excluded.size
	`, att.ID, att.Name, att.Mime, att.URL, att.Size, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store attachment: %w", err)
	}
	return nil
}

// Resolve looks up an attachment descriptor by ID.
// It implements relay.AttachmentResolver; unknown IDs report
// relay.ErrAttachmentNotFound so the coordinator can drop them.
func (s *Store) Resolve(ctx context.Context, id string) (*model.Attachment, error) {
	if s.closed {
		return nil, ErrClosed
	}
	att := &model.Attachment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, mime, url, size FROM attachments WHERE id = ?
	`, id).Scan(&att.ID, &att.Name, &att.Mime, &att.URL, &att.Size)
	if err == sql.ErrNoRows {
		return nil, relay.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve attachment: %w", err)
	}
	return att, nil
}

// ListAttachments returns all registered attachment descriptors,
// newest first.
func (s *Store) ListAttachments(ctx context.Context) ([]model.Attachment, error) {
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, mime, url, size FROM attachments ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var atts []model.Attachment
	for rows.Next() {
		var att model.Attachment
		if err := rows.Scan(&att.ID, &att.Name, &att.Mime, &att.URL, &att.Size); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		atts = append(atts, att)
	}
	return atts, rows.Err()
}

// DeleteAttachment removes an attachment descriptor.
func (s *Store) DeleteAttachment(ctx context.Context, id string) error {
	if s.closed {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
