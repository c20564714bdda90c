// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// list.go - Saved-conversation management for the relay CLI.
//
// Handles "relay list". Conversations persist in the local SQLite store;
// search runs over the full-text index of message content.
//
// Commands:
//   relay list                       List saved conversations
//   relay list search <query>        Full-text search across messages
//   relay list delete <id> --confirm Delete one conversation
//   relay list clear --confirm       Delete all conversations
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tallgrass-io/relay-tui/internal/config"
	"github.com/tallgrass-io/relay-tui/internal/storage"
	"github.com/tallgrass-io/relay-tui/internal/util"
)

// searchResultLimit caps how many snippets a search prints.
const searchResultLimit = 20

// HandleList handles the "relay list" command.
func HandleList(args *Args) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Storage.DatabasePath
	if dbPath == "" {
		dbPath, err = storage.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	switch args.Subcommand {
	case "", "list":
		return listConversations(ctx, store)
	case "search":
		return searchConversations(ctx, store, strings.Join(args.Raw, " "))
	case "delete":
		return deleteConversation(ctx, store, args)
	case "clear":
		return clearConversations(ctx, store, args)
	default:
		// A bare "relay list <word>" without a known subcommand is
		// treated as a search.
		query := strings.TrimSpace(args.Subcommand + " " + strings.Join(args.Raw, " "))
		return searchConversations(ctx, store, query)
	}
}

func listConversations(ctx context.Context, store *storage.Store) error {
	metas, err := store.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	fmt.Print(storage.FormatConversationList(metas))
	return nil
}

func searchConversations(ctx context.Context, store *storage.Store, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("usage: relay list search <query>")
	}

	snippets, err := store.SearchMessages(ctx, query, searchResultLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(snippets) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for _, sn := range snippets {
		content := util.TruncateRunes(strings.ReplaceAll(sn.Content, "\n", " "), 100)
		fmt.Printf("%s  [%s] %s\n", sn.ConversationID, sn.Role, content)
	}
	fmt.Printf("\n%d match(es). Matches are ordered by relevance.\n", len(snippets))
	return nil
}

func deleteConversation(ctx context.Context, store *storage.Store, args *Args) error {
	if len(args.Raw) == 0 || strings.HasPrefix(args.Raw[0], "-") {
		return fmt.Errorf("usage: relay list delete <id> --confirm")
	}
	id := args.Raw[0]
	if !args.HasRawFlag("confirm") {
		return fmt.Errorf("deletion is permanent; re-run with --confirm")
	}

	if err := store.DeleteConversation(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no conversation with id %s", id)
		}
		return fmt.Errorf("delete conversation: %w", err)
	}
	fmt.Printf("Deleted conversation %s\n", id)
	return nil
}

func clearConversations(ctx context.Context, store *storage.Store, args *Args) error {
	if !args.HasRawFlag("confirm") {
		return fmt.Errorf("this deletes every saved conversation; re-run with --confirm")
	}
	if err := store.ClearConversations(ctx); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	fmt.Println("All conversations deleted.")
	return nil
}
