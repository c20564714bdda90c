// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for the relay CLI.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display current configuration
//   set <key> <value>   Set a configuration value and save
//   path                Print the config file path
//   reset               Write the default configuration
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tallgrass-io/relay-tui/internal/config"
)

// HandleConfig handles the "relay config" command.
func HandleConfig(args *Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow()
	case "set":
		return configSet(args.ConfigKey, args.ConfigVal)
	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "reset":
		return configReset()
	default:
		return fmt.Errorf("unknown config subcommand: %s (expected show, set, path, or reset)", args.Subcommand)
	}
}

func configShow() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rows := [][2]string{
		{"relay.endpoint", cfg.Relay.Endpoint},
		{"relay.provider_hint", cfg.Relay.ProviderHint},
		{"relay.memory_enabled", strconv.FormatBool(cfg.Relay.MemoryEnabled)},
		{"relay.memory_limit", strconv.Itoa(cfg.Relay.MemoryLimit)},
		{"transport.max_attempts", strconv.Itoa(cfg.Transport.MaxAttempts)},
		{"transport.base_delay_ms", strconv.Itoa(cfg.Transport.BaseDelayMs)},
		{"transport.max_delay_ms", strconv.Itoa(cfg.Transport.MaxDelayMs)},
		{"stream.commit_delay_ms", strconv.Itoa(cfg.Stream.CommitDelayMs)},
		{"session.user_id", cfg.Session.UserID},
		{"session.timeout_secs", strconv.Itoa(cfg.Session.TimeoutSecs)},
		{"storage.database_path", cfg.Storage.DatabasePath},
		{"ui.theme", cfg.UI.Theme},
		{"ui.show_progress", strconv.FormatBool(cfg.UI.ShowProgress)},
		{"ui.markdown_style", cfg.UI.MarkdownStyle},
	}

	apiKey := "(not set)"
	if cfg.Relay.APIKey != "" {
		apiKey = "(set, hidden)"
	}
	fmt.Printf("  %-26s %s\n", "relay.api_key", apiKey)
	for _, row := range rows {
		val := row[1]
		if val == "" {
			val = "(default)"
		}
		fmt.Printf("  %-26s %s\n", row[0], val)
	}
	return nil
}

func configSet(key, value string) error {
	if key == "" {
		return fmt.Errorf("usage: relay config set <key> <value>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := applyConfigKey(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

func applyConfigKey(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "relay.endpoint", "endpoint":
		cfg.Relay.Endpoint = value
	case "relay.api_key", "api_key":
		cfg.Relay.APIKey = value
	case "relay.provider_hint", "provider":
		cfg.Relay.ProviderHint = value
	case "relay.memory_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected true or false", key)
		}
		cfg.Relay.MemoryEnabled = b
	case "relay.memory_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: expected an integer", key)
		}
		cfg.Relay.MemoryLimit = n
	case "transport.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: expected an integer", key)
		}
		cfg.Transport.MaxAttempts = n
	case "session.user_id", "user":
		cfg.Session.UserID = value
	case "session.timeout_secs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: expected an integer", key)
		}
		cfg.Session.TimeoutSecs = n
	case "storage.database_path":
		cfg.Storage.DatabasePath = value
	case "ui.theme":
		cfg.UI.Theme = value
	case "ui.show_progress":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected true or false", key)
		}
		cfg.UI.ShowProgress = b
	case "ui.markdown_style":
		cfg.UI.MarkdownStyle = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func configReset() error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
