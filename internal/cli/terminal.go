// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for the relay CLI.
//
// TTY detection decides whether the CLI renders markdown, shows colors,
// and prompts interactively. Piped output gets plain text and no prompts.
package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTTY returns true if stdin is a terminal. Interactive prompts are only
// possible when this holds.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

const (
	// DefaultTerminalWidth is the fallback width when detection fails.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width used for wrapping.
	MinTerminalWidth = 40
)

// TerminalWidth returns the current terminal width, clamped to a sane
// minimum. Returns DefaultTerminalWidth when detection fails.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

var (
	colorOnce    sync.Once
	colorEnabled bool
)

// ColorEnabled reports whether colored output should be used. Honors
// NO_COLOR and falls back to termenv profile detection.
func ColorEnabled() bool {
	colorOnce.Do(func() {
		if _, set := os.LookupEnv("NO_COLOR"); set {
			colorEnabled = false
			return
		}
		if !IsStdoutTTY() {
			colorEnabled = false
			return
		}
		colorEnabled = termenv.ColorProfile() != termenv.Ascii
	})
	return colorEnabled
}

// ReadSecret prompts on stderr and reads a line from stdin without echo.
// Falls back to a plain (echoed) read when stdin is not a terminal, so
// piped input still works.
func ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if !IsTTY() {
		var line string
		if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
