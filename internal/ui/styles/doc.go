// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the relay-tui
application.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection, and the Theme detects the terminal color profile via termenv.

# Color System (colors.go)

  - Teal - brand color, user messages and prompts
  - Indigo - assistant messages and streaming progress
  - Emerald - completed replies
  - Amber - warnings, cancellations, provider switches
  - Rose - errors and failed sends

# Theme (theme.go)

Theme bundles the configured lipgloss styles for the header, message
list, streaming progress line, input area, and status bar. Create one
with NewTheme and share it across views:

	theme := styles.NewTheme()
	header := theme.HeaderTitle.Render("relay")
*/
package styles
