// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import "strings"

// =============================================================================
// TEXT ACCUMULATOR
// =============================================================================

// Accumulator is the append-only text buffer for the in-flight assistant
// message. It is decoupled from commit timing so arbitrarily many text
// events can arrive without forcing a UI write apiece.
//
// PERFORMANCE: strings.Builder avoids quadratic allocations.
type Accumulator struct {
	buf strings.Builder
}

// Append adds text to the buffer. Content only grows during an operation;
// there is no truncation or rewriting.
func (a *Accumulator) Append(text string) {
	a.buf.WriteString(text)
}

// Snapshot returns the full accumulated text.
func (a *Accumulator) Snapshot() string {
	return a.buf.String()
}

// Len returns the number of accumulated bytes.
func (a *Accumulator) Len() int {
	return a.buf.Len()
}

// Clear resets the buffer for a new operation.
func (a *Accumulator) Clear() {
	a.buf.Reset()
}
