// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import "errors"

// Error variables for the send lifecycle. Guarding-stage kinds are reported
// synchronously and never mutate message state; mid-stream kinds mark the
// assistant message with an error status while preserving partial content.
var (
	// ErrNoSession indicates no active session identity is available.
	ErrNoSession = errors.New("no active session")

	// ErrAlreadySending indicates a send is already in flight for this
	// conversation.
	ErrAlreadySending = errors.New("a send is already in flight")

	// ErrAuthRequired indicates the caller lacks a valid bearer credential.
	ErrAuthRequired = errors.New("authentication required")

	// ErrEmptyResponseBody indicates the relay answered without a readable
	// body.
	ErrEmptyResponseBody = errors.New("empty response body")

	// ErrTransportFailure indicates the transport exhausted its retries.
	ErrTransportFailure = errors.New("transport failure")

	// ErrStreamIncomplete indicates the stream ended without a done event
	// or faulted mid-read.
	ErrStreamIncomplete = errors.New("stream ended before completion")

	// ErrUpstreamEvent indicates the relay delivered an error event on the
	// stream.
	ErrUpstreamEvent = errors.New("upstream error event")

	// ErrCancelled indicates the operation was cancelled. Cancellation is
	// not a failure and is kept distinct from error states.
	ErrCancelled = errors.New("operation cancelled")

	// ErrAttachmentNotFound is returned by attachment resolvers for unknown
	// identifiers. The coordinator drops such references silently.
	ErrAttachmentNotFound = errors.New("attachment not found")
)
