// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitScheduler_CoalescesBursts(t *testing.T) {
	sched := NewCommitScheduler(30 * time.Millisecond)

	var runs atomic.Int32
	var lastSeen atomic.Int32

	for i := 1; i <= 20; i++ {
		n := int32(i)
		sched.Schedule(func() {
			runs.Add(1)
			lastSeen.Store(n)
		})
	}

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), runs.Load(), "burst should collapse into one commit")
	assert.Equal(t, int32(20), lastSeen.Load(), "latest pending commit should win")
}

func TestCommitScheduler_BoundedDelay(t *testing.T) {
	sched := NewCommitScheduler(20 * time.Millisecond)

	done := make(chan time.Time, 1)
	start := time.Now()
	sched.Schedule(func() { done <- time.Now() })

	select {
	case fired := <-done:
		elapsed := fired.Sub(start)
		assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("commit never fired")
	}
}

func TestCommitScheduler_FlushRunsPendingSynchronously(t *testing.T) {
	sched := NewCommitScheduler(time.Hour)

	var runs atomic.Int32
	sched.Schedule(func() { runs.Add(1) })

	require.True(t, sched.Pending())
	sched.Flush()
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, sched.Pending())

	// Second flush with nothing pending is a no-op.
	sched.Flush()
	assert.Equal(t, int32(1), runs.Load())
}

func TestCommitScheduler_StopDropsPending(t *testing.T) {
	sched := NewCommitScheduler(10 * time.Millisecond)

	var runs atomic.Int32
	sched.Schedule(func() { runs.Add(1) })
	sched.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load(), "stopped scheduler must not commit")

	// Scheduling after Stop is rejected.
	sched.Schedule(func() { runs.Add(1) })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

func TestAccumulator_AppendAndClear(t *testing.T) {
	var acc Accumulator
	acc.Append("Hi")
	acc.Append(" there")

	assert.Equal(t, "Hi there", acc.Snapshot())
	assert.Equal(t, 8, acc.Len())

	acc.Clear()
	assert.Equal(t, "", acc.Snapshot())
	assert.Equal(t, 0, acc.Len())
}
