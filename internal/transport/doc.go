// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport performs HTTP requests against the relay service with
// bounded automatic retry.
//
// Transient failures - network errors, 5xx responses, and 429 rate limits -
// are retried with exponential backoff. Other 4xx responses are returned to
// the caller on the first attempt since the server will never accept them.
// Cancellation of the request context aborts the in-flight attempt and any
// backoff wait immediately.
package transport
