// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the active chat session: relay credentials,
// activity timestamps, and idle timeout.
package session

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/tallgrass-io/relay-tui/internal/relay"
	"github.com/tallgrass-io/relay-tui/internal/util"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager tracks session identity, credentials, and idle state.
// It implements relay.CredentialSource.
type Manager struct {
	mu sync.Mutex

	// Identity and credentials
	sessionID string
	userID    string
	bearer    string

	// Activity tracking
	startTime    time.Time
	lastActivity time.Time

	// Timeout configuration
	timeout       time.Duration
	warningBefore time.Duration
	warningShown  bool

	// Auto-save configuration
	autoSaveEnabled  bool
	autoSaveInterval time.Duration
	lastAutoSave     time.Time
	isDirty          bool
}

// Config holds configuration for the session manager.
type Config struct {
	// UserID identifies the local user to the routing service.
	UserID string

	// Timeout is the idle duration after which the session expires
	// (default: 30 minutes).
	Timeout time.Duration

	// WarningBefore is how long before expiry to surface a warning
	// (default: 2 minutes).
	WarningBefore time.Duration

	// AutoSaveEnabled enables periodic conversation saves.
	AutoSaveEnabled bool

	// AutoSaveInterval is how often to auto-save (default: 30 seconds).
	AutoSaveInterval time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Minute,
		WarningBefore:    2 * time.Minute,
		AutoSaveEnabled:  true,
		AutoSaveInterval: 30 * time.Second,
	}
}

// NewManager creates a session manager with a fresh session ID.
func NewManager(cfg Config) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.WarningBefore <= 0 {
		cfg.WarningBefore = 2 * time.Minute
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 30 * time.Second
	}

	now := time.Now()
	return &Manager{
		sessionID:        "sess_" + uuid.NewString(),
		userID:           cfg.UserID,
		startTime:        now,
		lastActivity:     now,
		timeout:          cfg.Timeout,
		warningBefore:    cfg.WarningBefore,
		autoSaveEnabled:  cfg.AutoSaveEnabled,
		autoSaveInterval: cfg.AutoSaveInterval,
		lastAutoSave:     now,
	}
}

// =============================================================================
// CREDENTIALS
// =============================================================================

// Current returns the credentials the coordinator attaches to each send.
// An expired session reports an empty session ID so sends are refused
// until the session is renewed.
func (m *Manager) Current() relay.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastActivity) >= m.timeout {
		return relay.Credentials{UserID: m.userID}
	}
	return relay.Credentials{
		SessionID: m.sessionID,
		UserID:    m.userID,
		Bearer:    m.bearer,
	}
}

// SetBearer installs the bearer token, typically loaded from the vault.
func (m *Manager) SetBearer(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bearer = token
}

// HasBearer reports whether a bearer token is installed.
func (m *Manager) HasBearer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bearer != ""
}

// Renew issues a fresh session ID and resets the activity clock.
func (m *Manager) Renew() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.sessionID = "sess_" + uuid.NewString()
	m.startTime = now
	m.lastActivity = now
	m.warningShown = false
}

// =============================================================================
// SESSION STATE
// =============================================================================

// SessionID returns the current session ID.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Duration returns how long the session has been active.
func (m *Manager) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.startTime)
}

// IdleTime returns how long since last activity.
func (m *Manager) IdleTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastActivity)
}

// RemainingTime returns time until the session expires.
func (m *Manager) RemainingTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.timeout - time.Since(m.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired returns true if the session has been idle past its timeout.
func (m *Manager) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastActivity) >= m.timeout
}

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// RecordActivity updates the last activity timestamp.
// Called on user input and on each send.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
	m.warningShown = false
}

// MarkDirty indicates the conversation has unsaved changes.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isDirty = true
}

// MarkClean indicates the conversation has been saved.
func (m *Manager) MarkClean() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isDirty = false
	m.lastAutoSave = time.Now()
}

// IsDirty returns whether the conversation has unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDirty
}

// ShouldShowWarning returns true if the expiry warning should be shown.
func (m *Manager) ShouldShowWarning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.warningShown {
		return false
	}
	idle := time.Since(m.lastActivity)
	threshold := m.timeout - m.warningBefore
	return idle >= threshold && idle < m.timeout
}

// ShouldAutoSave returns true if auto-save should trigger.
func (m *Manager) ShouldAutoSave() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.autoSaveEnabled || !m.isDirty {
		return false
	}
	return time.Since(m.lastAutoSave) >= m.autoSaveInterval
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check session state.
type TickMsg struct {
	Time time.Time
}

// TimeoutWarningMsg indicates the session is about to expire.
type TimeoutWarningMsg struct {
	Remaining time.Duration
}

// TimeoutMsg indicates the session has expired.
type TimeoutMsg struct{}

// AutoSaveMsg indicates the conversation should be saved.
type AutoSaveMsg struct{}

// TickCmd returns a command that ticks once per second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick processes a tick and returns appropriate messages.
func (m *Manager) HandleTick() tea.Cmd {
	var cmds []tea.Cmd

	if m.ShouldShowWarning() {
		remaining := m.RemainingTime()
		cmds = append(cmds, func() tea.Msg {
			return TimeoutWarningMsg{Remaining: remaining}
		})
		m.mu.Lock()
		m.warningShown = true
		m.mu.Unlock()
	}

	if m.IsExpired() {
		cmds = append(cmds, func() tea.Msg {
			return TimeoutMsg{}
		})
	}

	if m.ShouldAutoSave() {
		cmds = append(cmds, func() tea.Msg {
			return AutoSaveMsg{}
		})
	}

	cmds = append(cmds, TickCmd())
	return tea.Batch(cmds...)
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	SessionID     string
	UserID        string
	StartTime     time.Time
	Duration      time.Duration
	IdleTime      time.Duration
	RemainingTime time.Duration
	IsDirty       bool
	IsExpired     bool
}

// GetStatus returns a snapshot of the session state.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	idle := now.Sub(m.lastActivity)
	remaining := m.timeout - idle
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		SessionID:     m.sessionID,
		UserID:        m.userID,
		StartTime:     m.startTime,
		Duration:      now.Sub(m.startTime),
		IdleTime:      idle,
		RemainingTime: remaining,
		IsDirty:       m.isDirty,
		IsExpired:     idle >= m.timeout,
	}
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Seconds())
		return util.IntToString(secs) + "s"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return util.IntToString(mins) + "m"
	}
	return util.IntToString(mins) + "m " + util.IntToString(secs) + "s"
}
