// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared stack wiring for CLI commands.
//
// Every command that talks to the relay needs the same stack: config,
// the SQLite store, a session manager holding the bearer token, the
// retrying transport, and a send coordinator. BuildApp assembles it once
// so ask, chat, and the TUI all wire identically.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tallgrass-io/relay-tui/internal/config"
	"github.com/tallgrass-io/relay-tui/internal/memory"
	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/relay"
	"github.com/tallgrass-io/relay-tui/internal/session"
	"github.com/tallgrass-io/relay-tui/internal/storage"
	"github.com/tallgrass-io/relay-tui/internal/transport"
)

// App bundles the wired-up service stack behind a CLI command.
type App struct {
	Cfg       *config.Config
	Store     *storage.Store
	Session   *session.Manager
	Recaller  *memory.Recaller
	Transport *transport.Client
	Coord     *relay.Coordinator
}

// BuildApp loads configuration and assembles the full stack around a fresh
// conversation. The caller owns Close.
func BuildApp(args *Args) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	config.SetGlobal(cfg)

	if args != nil && args.Provider != "" {
		cfg.Relay.ProviderHint = args.Provider
	}

	dbPath := cfg.Storage.DatabasePath
	if dbPath == "" {
		dbPath, err = storage.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sessCfg := session.DefaultConfig()
	sessCfg.UserID = cfg.Session.UserID
	if cfg.Session.TimeoutSecs > 0 {
		sessCfg.Timeout = time.Duration(cfg.Session.TimeoutSecs) * time.Second
	}
	sessCfg.AutoSaveEnabled = cfg.Session.AutoSave
	if cfg.Session.AutoSaveIntervalSecs > 0 {
		sessCfg.AutoSaveInterval = time.Duration(cfg.Session.AutoSaveIntervalSecs) * time.Second
	}
	sess := session.NewManager(sessCfg)

	if token, err := loadBearer(); err != nil {
		store.Close()
		return nil, err
	} else if token != "" {
		sess.SetBearer(token)
	}

	recaller := memory.NewRecaller(store)
	recaller.SetEnabled(cfg.Relay.MemoryEnabled)
	if args != nil && args.NoMemory {
		recaller.SetEnabled(false)
	}

	tc := transport.NewClient(transport.Options{
		MaxAttempts:       cfg.Transport.MaxAttempts,
		BaseDelay:         time.Duration(cfg.Transport.BaseDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.Transport.MaxDelayMs) * time.Millisecond,
		Jitter:            true,
		RequestsPerSecond: cfg.Transport.RequestsPerSecond,
	})

	coord := relay.NewCoordinator(relay.Config{
		Endpoint:     cfg.Relay.Endpoint,
		APIKey:       cfg.Relay.APIKey,
		ProviderHint: cfg.Relay.ProviderHint,
		CommitDelay:  time.Duration(cfg.Stream.CommitDelayMs) * time.Millisecond,
		MemoryLimit:  cfg.Relay.MemoryLimit,
	}, tc, sess, model.NewConversation())
	coord.SetAttachmentResolver(store)
	coord.SetMemorySource(recaller)

	return &App{
		Cfg:       cfg,
		Store:     store,
		Session:   sess,
		Recaller:  recaller,
		Transport: tc,
		Coord:     coord,
	}, nil
}

// Close releases the App's resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// SaveConversation persists the coordinator's conversation if it holds any
// messages.
func (a *App) SaveConversation(ctx context.Context) error {
	conv := a.Coord.Conversation()
	if conv.MessageCount() == 0 {
		return nil
	}
	return a.Store.SaveConversation(ctx, conv)
}

// loadBearer resolves the bearer token: RELAY_TOKEN wins, then the
// encrypted vault (passphrase from RELAY_PASSPHRASE or an interactive
// prompt). A missing token is not an error; sends will be refused with
// an auth-required message instead.
func loadBearer() (string, error) {
	if token := os.Getenv("RELAY_TOKEN"); token != "" {
		return token, nil
	}

	vaultPath, err := session.DefaultVaultPath()
	if err != nil {
		return "", nil
	}
	vault := session.NewVault(vaultPath)
	if !vault.Exists() {
		return "", nil
	}

	passphrase := os.Getenv("RELAY_PASSPHRASE")
	if passphrase == "" {
		if !IsTTY() {
			return "", nil
		}
		passphrase, err = ReadSecret("Vault passphrase: ")
		if err != nil {
			return "", nil
		}
	}

	token, err := vault.Load(passphrase)
	if err != nil {
		if errors.Is(err, session.ErrDecryptFailed) {
			return "", fmt.Errorf("vault passphrase incorrect")
		}
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}
