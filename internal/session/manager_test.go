// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 30*time.Minute {
		t.Errorf("Default Timeout = %v, want 30m", cfg.Timeout)
	}
	if cfg.WarningBefore != 2*time.Minute {
		t.Errorf("Default WarningBefore = %v, want 2m", cfg.WarningBefore)
	}
	if !cfg.AutoSaveEnabled {
		t.Error("Default AutoSaveEnabled should be true")
	}
	if cfg.AutoSaveInterval != 30*time.Second {
		t.Errorf("Default AutoSaveInterval = %v, want 30s", cfg.AutoSaveInterval)
	}
}

// =============================================================================
// MANAGER TESTS
// =============================================================================

func TestNewManager(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UserID = "user-7"
	m := NewManager(cfg)

	if m == nil {
		t.Fatal("NewManager returned nil")
	}
	if !strings.HasPrefix(m.SessionID(), "sess_") {
		t.Errorf("SessionID should start with 'sess_', got %q", m.SessionID())
	}

	creds := m.Current()
	if creds.SessionID != m.SessionID() {
		t.Errorf("Current().SessionID = %q, want %q", creds.SessionID, m.SessionID())
	}
	if creds.UserID != "user-7" {
		t.Errorf("Current().UserID = %q, want user-7", creds.UserID)
	}
	if creds.Bearer != "" {
		t.Error("new manager should carry no bearer token")
	}
}

func TestSetBearer(t *testing.T) {
	m := NewManager(DefaultConfig())

	if m.HasBearer() {
		t.Error("HasBearer should be false before SetBearer")
	}

	m.SetBearer("tok-123")
	if !m.HasBearer() {
		t.Error("HasBearer should be true after SetBearer")
	}
	if got := m.Current().Bearer; got != "tok-123" {
		t.Errorf("Current().Bearer = %q, want tok-123", got)
	}
}

func TestExpiredSessionReportsEmptyCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond
	m := NewManager(cfg)
	m.SetBearer("tok")

	time.Sleep(20 * time.Millisecond)

	if !m.IsExpired() {
		t.Fatal("session should be expired")
	}
	creds := m.Current()
	if creds.SessionID != "" {
		t.Errorf("expired session should report empty SessionID, got %q", creds.SessionID)
	}
}

func TestRecordActivityResetsIdle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	m := NewManager(cfg)

	time.Sleep(30 * time.Millisecond)
	m.RecordActivity()
	time.Sleep(30 * time.Millisecond)

	// 60ms elapsed total but only 30ms since last activity.
	if m.IsExpired() {
		t.Error("activity should have reset the idle clock")
	}
}

func TestRenewIssuesNewSessionID(t *testing.T) {
	m := NewManager(DefaultConfig())
	before := m.SessionID()

	m.Renew()
	after := m.SessionID()

	if before == after {
		t.Error("Renew should issue a new session ID")
	}
	if !strings.HasPrefix(after, "sess_") {
		t.Errorf("renewed SessionID should start with 'sess_', got %q", after)
	}
}

func TestDirtyTracking(t *testing.T) {
	m := NewManager(DefaultConfig())

	if m.IsDirty() {
		t.Error("new session should be clean")
	}
	m.MarkDirty()
	if !m.IsDirty() {
		t.Error("MarkDirty should set dirty")
	}
	m.MarkClean()
	if m.IsDirty() {
		t.Error("MarkClean should clear dirty")
	}
}

func TestShouldAutoSave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoSaveInterval = 10 * time.Millisecond
	m := NewManager(cfg)

	if m.ShouldAutoSave() {
		t.Error("clean session should not auto-save")
	}

	m.MarkDirty()
	time.Sleep(20 * time.Millisecond)
	if !m.ShouldAutoSave() {
		t.Error("dirty session past interval should auto-save")
	}
}

func TestShouldShowWarning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.WarningBefore = 80 * time.Millisecond
	m := NewManager(cfg)

	if m.ShouldShowWarning() {
		t.Error("warning should not show immediately")
	}

	time.Sleep(40 * time.Millisecond)
	if !m.ShouldShowWarning() {
		t.Error("warning should show inside the warning window")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m 30s"},
		{5 * time.Minute, "5m"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// =============================================================================
// VAULT TESTS
// =============================================================================

func TestVaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	v := NewVault(path)

	if v.Exists() {
		t.Error("vault should not exist before Store")
	}

	if err := v.Store("secret-token", "passphrase"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !v.Exists() {
		t.Error("vault should exist after Store")
	}

	got, err := v.Load("passphrase")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != "secret-token" {
		t.Errorf("Load = %q, want secret-token", got)
	}
}

func TestVaultWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	v := NewVault(path)

	if err := v.Store("secret", "right"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if _, err := v.Load("wrong"); err != ErrDecryptFailed {
		t.Errorf("Load with wrong passphrase = %v, want ErrDecryptFailed", err)
	}
}

func TestVaultMissingFile(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), "nope"))

	if _, err := v.Load("pass"); err != ErrNoToken {
		t.Errorf("Load on missing file = %v, want ErrNoToken", err)
	}
}

func TestVaultRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	v := NewVault(path)

	if err := v.Store("secret", "pass"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := v.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if v.Exists() {
		t.Error("vault should not exist after Remove")
	}

	// Removing a missing vault is not an error.
	if err := v.Remove(); err != nil {
		t.Errorf("second Remove = %v, want nil", err)
	}
}
