// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}

	// Verify styles are initialized by rendering a test string
	styles := map[string]lipgloss.Style{
		"HeaderTitle":   theme.HeaderTitle,
		"UserText":      theme.UserText,
		"AssistantText": theme.AssistantText,
		"ErrorText":     theme.ErrorText,
		"ProgressLine":  theme.ProgressLine,
		"StatusBar":     theme.StatusBar,
		"InputPrompt":   theme.InputPrompt,
	}
	for name, style := range styles {
		if style.Render("test") == "" {
			t.Errorf("style %s should render non-empty output", name)
		}
	}
}

func TestThemeSetSize(t *testing.T) {
	theme := NewTheme()
	theme.SetSize(120, 40)

	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("SetSize stored %dx%d, want 120x40", theme.Width, theme.Height)
	}
}
