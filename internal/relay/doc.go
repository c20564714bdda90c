// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay owns the send lifecycle for a conversation: it issues the
// request to the model-routing service, decodes the incremental response,
// reconciles events into the conversation's message state, and governs
// retry, cancellation, and UI-commit pacing.
//
// One Coordinator serves one conversation. At most one send operation is in
// flight at a time; a second send is rejected while the first is running.
// Event application is strictly ordered. Visible state reaches the UI only
// through throttled commits, and every termination path - done, error,
// cancellation, abrupt stream end - performs exactly one final flush so no
// accumulated text is lost.
package relay
