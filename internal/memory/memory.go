// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory surfaces snippets from past conversations that are
// relevant to an outgoing message, so the routing service can ground
// its reply in earlier context.
package memory

import (
	"context"
	"strings"

	"github.com/tallgrass-io/relay-tui/internal/storage"
	"github.com/tallgrass-io/relay-tui/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// DefaultLimit is the number of snippets attached when the caller
// does not specify one.
const DefaultLimit = 5

// maxSnippetRunes caps each snippet so the request body stays small.
const maxSnippetRunes = 300

// =============================================================================
// RECALLER
// =============================================================================

// Searcher is the slice of the store the recaller needs.
type Searcher interface {
	SearchMessages(ctx context.Context, query string, limit int) ([]storage.Snippet, error)
}

// Recaller finds stored message snippets relevant to new input.
// It implements relay.MemorySource.
type Recaller struct {
	store   Searcher
	enabled bool
}

// NewRecaller creates a recaller over the given store.
func NewRecaller(store Searcher) *Recaller {
	return &Recaller{store: store, enabled: true}
}

// SetEnabled turns snippet recall on or off.
func (r *Recaller) SetEnabled(enabled bool) {
	r.enabled = enabled
}

// IsEnabled returns whether snippet recall is enabled.
func (r *Recaller) IsEnabled() bool {
	return r.enabled
}

// Relevant returns up to limit snippets from stored conversations that
// match the given text, most relevant first. A disabled recaller or an
// unsearchable query yields no snippets.
func (r *Recaller) Relevant(ctx context.Context, text string, limit int) ([]string, error) {
	if !r.enabled {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := significantTerms(text)
	if query == "" {
		return nil, nil
	}

	hits, err := r.store.SearchMessages(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	snippets := make([]string, 0, len(hits))
	for _, hit := range hits {
		content := strings.TrimSpace(hit.Content)
		if content == "" {
			continue
		}
		snippets = append(snippets, util.TruncateRunes(content, maxSnippetRunes))
	}
	return snippets, nil
}

// =============================================================================
// QUERY EXTRACTION
// =============================================================================

// stopwords that carry no relevance signal.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "can": true, "do": true, "for": true,
	"from": true, "how": true, "i": true, "in": true, "is": true, "it": true,
	"me": true, "my": true, "of": true, "on": true, "or": true, "please": true,
	"that": true, "the": true, "this": true, "to": true, "what": true,
	"when": true, "where": true, "which": true, "why": true, "with": true,
	"you": true,
}

// significantTerms extracts the searchable words from free text.
func significantTerms(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if len(f) < 3 || stopwords[f] {
			continue
		}
		terms = append(terms, f)
	}
	return strings.Join(terms, " ")
}
