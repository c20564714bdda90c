// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"sync"
	"time"
)

// DefaultCommitDelay is the debounce window for UI commits. Roughly 30fps:
// fast enough to feel live, slow enough to keep renders cheap.
const DefaultCommitDelay = 33 * time.Millisecond

// =============================================================================
// COMMIT SCHEDULER
// =============================================================================

// CommitScheduler coalesces rapid event arrivals into throttled commits.
//
// Schedule stores the latest pending commit and arms a timer if none is
// armed; when the timer fires, the latest commit runs (trailing-edge
// semantics). Bursts arriving faster than the window collapse into a single
// execution, and a pending commit is never delayed past one window.
//
// Each send operation owns its scheduler exclusively. Flush or Stop is
// called before a new operation resets state, so a stale timer can never
// commit on behalf of a finished operation.
type CommitScheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending func()
	stopped bool
}

// NewCommitScheduler creates a scheduler with the given debounce window.
// A non-positive delay falls back to DefaultCommitDelay.
func NewCommitScheduler(delay time.Duration) *CommitScheduler {
	if delay <= 0 {
		delay = DefaultCommitDelay
	}
	return &CommitScheduler{delay: delay}
}

// Schedule registers fn as the pending commit. If a commit is already
// pending, fn replaces it; the armed timer keeps its deadline so bursts
// cannot postpone execution indefinitely.
func (s *CommitScheduler) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.pending = fn
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.fire)
	}
}

// fire runs the pending commit when the timer expires.
func (s *CommitScheduler) fire() {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.timer = nil
	stopped := s.stopped
	s.mu.Unlock()

	if fn != nil && !stopped {
		fn()
	}
}

// Flush executes any pending commit synchronously and cancels the timer.
// The coordinator calls this as its final action when a stream ends so no
// residual text or metadata is lost to a window that never fires.
func (s *CommitScheduler) Flush() {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Stop cancels any pending commit without running it and rejects further
// scheduling. Used when an operation is superseded rather than finished.
func (s *CommitScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Pending reports whether a commit is waiting for the timer.
func (s *CommitScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
