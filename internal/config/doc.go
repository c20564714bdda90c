// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for relay-tui.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, validation, and hot reload when the file changes on disk.
//
// # Key Types
//
//   - Config: main configuration structure with all settings
//   - RelayConfig: routing-service endpoint and request options
//   - TransportConfig: retry/backoff tuning
//   - Watcher: fsnotify-based hot reload
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RELAY_*)
//   - $RELAY_CONFIG or <user config dir>/relay-tui/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	endpoint := cfg.Relay.Endpoint
//	attempts := cfg.Transport.MaxAttempts
package config
