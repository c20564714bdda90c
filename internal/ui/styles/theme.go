// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel     lipgloss.Style
	UserText      lipgloss.Style
	AssistantText lipgloss.Style
	SystemText    lipgloss.Style
	ErrorText     lipgloss.Style
	CancelledText lipgloss.Style
	Timestamp     lipgloss.Style

	// ==========================================================================
	// STREAMING STYLES
	// ==========================================================================

	ProgressLine lipgloss.Style
	ProgressStep lipgloss.Style
	ModelBadge   lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputText        lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusOK     lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.UserText = lipgloss.NewStyle().
		Foreground(UserFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBorder).
		PaddingLeft(1)

	t.AssistantText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBorder).
		PaddingLeft(1)

	t.SystemText = lipgloss.NewStyle().
		Foreground(SystemFg).
		Italic(true)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)

	t.CancelledText = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Streaming
	t.ProgressLine = lipgloss.NewStyle().
		Foreground(Indigo)

	t.ProgressStep = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ModelBadge = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.InputText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusOK = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.StatusBusy = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Teal)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize records the current terminal dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
