// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the typed events carried on the relay response
// stream and the decoder that turns raw bytes into them.
//
// The relay service answers a send request with a newline-delimited stream
// of JSON records. Each record is one event: a content delta, a progress
// report, a model switch, a metadata patch, an out-of-band action request,
// a warning, an error, or the terminal done marker. The Decoder consumes
// the stream exactly once and yields events in arrival order regardless of
// how the transport splits the bytes.
package protocol
