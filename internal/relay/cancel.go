// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"sync"
)

// =============================================================================
// CANCEL MANAGEMENT (THREAD-SAFE)
// =============================================================================

// cancelManager holds the cancel function for the current send operation
// with mutex protection, since cancellation can arrive from the UI loop
// while the operation runs on another goroutine.
//
// Cancel is idempotent: invoking it twice, or after the operation finished
// naturally, is a no-op.
type cancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// set stores a new cancel function, cancelling any previous one first so
// contexts are never leaked.
func (cm *cancelManager) set(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
	}
	cm.cancelFunc = fn
}

// cancel invokes the stored cancel function and clears it.
func (cm *cancelManager) cancel() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
		cm.cancelFunc = nil
	}
}

// clear cancels the context (if present) and removes the cancel function.
// Called at finalization to invalidate the operation's token.
func (cm *cancelManager) clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
		cm.cancelFunc = nil
	}
}
