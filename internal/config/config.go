// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for relay-tui.
//
// Supports TOML configuration with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file location (in order of precedence):
//   - $RELAY_CONFIG (explicit path)
//   - <user config dir>/relay-tui/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/tallgrass-io/relay-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete relay-tui configuration.
type Config struct {
	Version string `toml:"version"`

	// Relay endpoint configuration
	Relay RelayConfig `toml:"relay"`

	// Transport retry/backoff configuration
	Transport TransportConfig `toml:"transport"`

	// Streaming configuration
	Stream StreamConfig `toml:"stream"`

	// Session configuration
	Session SessionConfig `toml:"session"`

	// Storage configuration
	Storage StorageConfig `toml:"storage"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// RelayConfig describes the model-routing service endpoint.
type RelayConfig struct {
	// Endpoint is the URL messages are sent to.
	Endpoint string `toml:"endpoint"`
	// APIKey identifies this client to the routing service.
	APIKey string `toml:"api_key"`
	// ProviderHint optionally requests a specific upstream provider
	// ("auto" lets the service decide).
	ProviderHint string `toml:"provider_hint"`
	// MemoryEnabled attaches snippets from past conversations to requests.
	MemoryEnabled bool `toml:"memory_enabled"`
	// MemoryLimit is the maximum number of snippets attached per request.
	MemoryLimit int `toml:"memory_limit"`
}

// TransportConfig tunes the retrying HTTP transport.
type TransportConfig struct {
	// MaxAttempts is the total number of delivery attempts per request.
	MaxAttempts int `toml:"max_attempts"`
	// BaseDelayMs is the first retry delay in milliseconds; each retry doubles it.
	BaseDelayMs int `toml:"base_delay_ms"`
	// MaxDelayMs caps the per-retry delay in milliseconds.
	MaxDelayMs int `toml:"max_delay_ms"`
	// RequestsPerSecond rate-limits outgoing requests (0 = unlimited).
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// StreamConfig tunes streaming display behavior.
type StreamConfig struct {
	// CommitDelayMs is the debounce window for streaming UI commits.
	CommitDelayMs int `toml:"commit_delay_ms"`
}

// SessionConfig tunes session identity and idle timeout.
type SessionConfig struct {
	// UserID identifies the local user to the routing service.
	UserID string `toml:"user_id"`
	// TimeoutSecs is the idle timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// AutoSave enables periodic conversation saves.
	AutoSave bool `toml:"auto_save"`
	// AutoSaveIntervalSecs is how often to auto-save in seconds.
	AutoSaveIntervalSecs int `toml:"auto_save_interval_secs"`
}

// StorageConfig locates the local database.
type StorageConfig struct {
	// DatabasePath is the SQLite file (empty = default location).
	DatabasePath string `toml:"database_path"`
}

// UIConfig contains display configuration.
type UIConfig struct {
	// Theme selects the color theme.
	Theme string `toml:"theme"`
	// ShowProgress displays the progress/step line while streaming.
	ShowProgress bool `toml:"show_progress"`
	// MarkdownStyle is the glamour style used to render assistant replies.
	MarkdownStyle string `toml:"markdown_style"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Relay: RelayConfig{
			Endpoint:      "https://relay.tallgrass.io/v1/chat",
			ProviderHint:  "auto",
			MemoryEnabled: true,
			MemoryLimit:   5,
		},
		Transport: TransportConfig{
			MaxAttempts:       3,
			BaseDelayMs:       500,
			MaxDelayMs:        10000,
			RequestsPerSecond: 4,
		},
		Stream: StreamConfig{
			CommitDelayMs: 33,
		},
		Session: SessionConfig{
			TimeoutSecs:          1800,
			AutoSave:             true,
			AutoSaveIntervalSecs: 30,
		},
		UI: UIConfig{
			Theme:         "dark",
			ShowProgress:  true,
			MarkdownStyle: "dark",
		},
	}
}

// =============================================================================
// FILE LOCATIONS
// =============================================================================

// ConfigDir returns the relay-tui configuration directory.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config dir: %w", err)
	}
	return filepath.Join(base, "relay-tui"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	if explicit := os.Getenv("RELAY_CONFIG"); explicit != "" {
		return explicit, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir creates the configuration directory if needed.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default location.
// Missing files fall back to defaults. Environment overrides are
// applied last, then the result is validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults backfills zero values that would otherwise disable
// required machinery.
func (c *Config) fillDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Relay.Endpoint == "" {
		c.Relay.Endpoint = defaults.Relay.Endpoint
	}
	if c.Relay.ProviderHint == "" {
		c.Relay.ProviderHint = defaults.Relay.ProviderHint
	}
	if c.Relay.MemoryLimit <= 0 {
		c.Relay.MemoryLimit = defaults.Relay.MemoryLimit
	}
	if c.Transport.MaxAttempts <= 0 {
		c.Transport.MaxAttempts = defaults.Transport.MaxAttempts
	}
	if c.Transport.BaseDelayMs <= 0 {
		c.Transport.BaseDelayMs = defaults.Transport.BaseDelayMs
	}
	if c.Transport.MaxDelayMs <= 0 {
		c.Transport.MaxDelayMs = defaults.Transport.MaxDelayMs
	}
	if c.Stream.CommitDelayMs <= 0 {
		c.Stream.CommitDelayMs = defaults.Stream.CommitDelayMs
	}
	if c.Session.TimeoutSecs <= 0 {
		c.Session.TimeoutSecs = defaults.Session.TimeoutSecs
	}
	if c.Session.AutoSaveIntervalSecs <= 0 {
		c.Session.AutoSaveIntervalSecs = defaults.Session.AutoSaveIntervalSecs
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.MarkdownStyle == "" {
		c.UI.MarkdownStyle = defaults.UI.MarkdownStyle
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// The write is atomic and the file is created with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# relay-tui configuration file\n")
	sb.WriteString("# Generated by relay-tui - edit with care\n")
	sb.WriteString("\n")

	encoder := toml.NewEncoder(&sb)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, []byte(sb.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors aggregates multiple validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(msgs, "; "))
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Relay.Endpoint == "" {
		errs = append(errs, ValidationError{"relay.endpoint", "must not be empty"})
	} else if u, err := url.Parse(c.Relay.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{"relay.endpoint", "must be an absolute URL"})
	}

	switch c.Relay.ProviderHint {
	case "", "auto", "local", "cloud":
	default:
		errs = append(errs, ValidationError{"relay.provider_hint", "must be auto, local, or cloud"})
	}

	if c.Transport.MaxAttempts < 1 {
		errs = append(errs, ValidationError{"transport.max_attempts", "must be at least 1"})
	}
	if c.Transport.BaseDelayMs < 0 {
		errs = append(errs, ValidationError{"transport.base_delay_ms", "must not be negative"})
	}
	if c.Transport.MaxDelayMs > 0 && c.Transport.MaxDelayMs < c.Transport.BaseDelayMs {
		errs = append(errs, ValidationError{"transport.max_delay_ms", "must be >= base_delay_ms"})
	}
	if c.Transport.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{"transport.requests_per_second", "must not be negative"})
	}

	if c.Stream.CommitDelayMs < 0 {
		errs = append(errs, ValidationError{"stream.commit_delay_ms", "must not be negative"})
	}

	if c.Session.TimeoutSecs < 60 {
		errs = append(errs, ValidationError{"session.timeout_secs", "must be at least 60"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - RELAY_ENDPOINT: overrides relay.endpoint
//   - RELAY_API_KEY: overrides relay.api_key
//   - RELAY_PROVIDER: overrides relay.provider_hint
//   - RELAY_USER: overrides session.user_id
//   - RELAY_DB: overrides storage.database_path
//   - RELAY_MEMORY: enables/disables relay.memory_enabled
//   - RELAY_MAX_ATTEMPTS: overrides transport.max_attempts
func (c *Config) ApplyEnvOverrides() {
	if endpoint := os.Getenv("RELAY_ENDPOINT"); endpoint != "" {
		c.Relay.Endpoint = endpoint
	}
	if key := os.Getenv("RELAY_API_KEY"); key != "" {
		c.Relay.APIKey = key
	}
	if provider := os.Getenv("RELAY_PROVIDER"); provider != "" {
		c.Relay.ProviderHint = provider
	}
	if user := os.Getenv("RELAY_USER"); user != "" {
		c.Session.UserID = user
	}
	if db := os.Getenv("RELAY_DB"); db != "" {
		c.Storage.DatabasePath = db
	}
	if mem := os.Getenv("RELAY_MEMORY"); mem != "" {
		c.Relay.MemoryEnabled = mem == "1" || strings.ToLower(mem) == "true"
	}
	if attempts := os.Getenv("RELAY_MAX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil && n > 0 {
			c.Transport.MaxAttempts = n
		}
	}
}

// =============================================================================
// GLOBAL CONFIG
// =============================================================================

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// Global returns the process-wide configuration, loading it on first use.
func Global() *Config {
	globalMu.RLock()
	if globalConfig != nil {
		defer globalMu.RUnlock()
		return globalConfig
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		globalConfig = cfg
	}
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// ReloadGlobal reloads the process-wide configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// ResetGlobalForTesting clears the cached global config.
func ResetGlobalForTesting() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = nil
}
