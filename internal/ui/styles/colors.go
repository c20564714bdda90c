// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for relay-tui.
// All colors use Lip Gloss AdaptiveColor for automatic light/dark detection.
package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Indigo - Primary accent, assistant messages
var Indigo = lipgloss.AdaptiveColor{Light: "#4F46E5", Dark: "#818CF8"}

// Teal - Brand color, user highlights, prompts
var Teal = lipgloss.AdaptiveColor{Light: "#0D9488", Dark: "#2DD4BF"}

// Emerald - Success states, completed replies
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose - Errors and failed sends
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Warnings, cancelled sends, provider switches
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// =============================================================================
// SURFACE AND TEXT COLORS
// =============================================================================

// Surface - Main background
var Surface = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}

// SurfaceDim - Slightly darker/lighter surface for status bar
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}

// Overlay - Borders and separators
var Overlay = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}

// TextSecondary - Labels, less prominent text
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}

// TextMuted - Hints, timestamps, progress steps
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// =============================================================================
// MESSAGE COLORS
// =============================================================================

// User message - teal tones
var UserFg = lipgloss.AdaptiveColor{Light: "#115E59", Dark: "#CCFBF1"}
var UserBorder = lipgloss.AdaptiveColor{Light: "#14B8A6", Dark: "#14B8A6"}

// Assistant message - soft indigo tones
var AssistantFg = lipgloss.AdaptiveColor{Light: "#3730A3", Dark: "#E0E7FF"}
var AssistantBorder = lipgloss.AdaptiveColor{Light: "#A5B4FC", Dark: "#818CF8"}

// System notices - amber tones
var SystemFg = lipgloss.AdaptiveColor{Light: "#92400E", Dark: "#FEF3C7"}
