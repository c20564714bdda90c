// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across relay: UTF-8 safe
// string truncation, numeric conversion, and crash-safe file writing.
//
//	// Truncate long strings safely for display
//	preview := util.TruncateRunes(longText, 60)
//
//	// Write files atomically to prevent partial config or vault state
//	err := util.AtomicWriteFileWithDir(path, data, 0600, 0700)
package util
