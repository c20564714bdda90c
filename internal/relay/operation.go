// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/protocol"
)

// =============================================================================
// SEND OPERATION
// =============================================================================

// operation carries all mutable per-send state: the target assistant
// message identity, the text accumulator, the metadata mapping, the
// progress pair, and the operation status. It is created in Preparing and
// discarded at Finalizing; nothing here outlives the send.
type operation struct {
	id          string
	userMsgID   string
	assistantID string

	acc      Accumulator
	metadata map[string]any

	// rawProgress is the last value reported by the relay (clamped).
	// progress is the UI-visible value and never decreases.
	rawProgress float64
	progress    float64
	step        string

	status model.Status

	cancel cancelManager
}

func newOperation(userMsgID, assistantID string) *operation {
	return &operation{
		id:          model.NewID(),
		userMsgID:   userMsgID,
		assistantID: assistantID,
		metadata:    map[string]any{},
		status:      model.StatusStreaming,
	}
}

// =============================================================================
// EVENT APPLICATION
// =============================================================================

// applyText appends a content delta.
func (op *operation) applyText(content string) {
	op.acc.Append(content)
}

// applyProgress records a progress report. Out-of-range values are clamped,
// not rejected; the displayed value is capped at the maximum seen so the UI
// never shows progress moving backwards.
func (op *operation) applyProgress(value float64, step string) {
	value = clampProgress(value)
	op.rawProgress = value
	if value > op.progress {
		op.progress = value
	}
	if step != "" {
		op.step = step
	}
}

// applyModelSwitch merges routing information into metadata and appends any
// content delta the switch carries.
func (op *operation) applyModelSwitch(ev *protocol.Event) {
	if ev.Model != "" {
		op.metadata["model"] = ev.Model
	}
	if ev.Provider != "" {
		op.metadata["provider"] = ev.Provider
	}
	op.mergeMetadata(ev.Metadata)
	if ev.Content != "" {
		op.acc.Append(ev.Content)
	}
}

// applyMetadata shallow-merges a metadata patch; later keys win.
func (op *operation) applyMetadata(patch map[string]any) {
	op.mergeMetadata(patch)
}

// applyWarning records a non-fatal diagnostic into metadata.
func (op *operation) applyWarning(ev *protocol.Event) {
	warnings, _ := op.metadata["warnings"].([]string)
	op.metadata["warnings"] = append(warnings, ev.Message)
}

// applyError marks the operation failed and appends a visible annotation to
// the accumulated text. Partial output already streamed stays visible.
func (op *operation) applyError(ev *protocol.Event) {
	op.status = model.StatusError
	msg := ev.Message
	if msg == "" {
		msg = "the relay reported an error"
	}
	if op.acc.Len() > 0 {
		op.acc.Append("\n\n")
	}
	op.acc.Append("[error: " + msg + "]")
	if ev.Code != "" {
		op.metadata["error_code"] = ev.Code
	}
}

// applyDone marks successful termination. An earlier error event keeps its
// error status; progress snaps to 100 only on a clean completion.
func (op *operation) applyDone() {
	if op.status == model.StatusError {
		return
	}
	op.status = model.StatusComplete
	op.progress = 100
}

func (op *operation) mergeMetadata(patch map[string]any) {
	for k, v := range patch {
		op.metadata[k] = v
	}
}

// snapshot produces the UI-visible view of the operation's state.
func (op *operation) snapshot() model.Update {
	meta := make(map[string]any, len(op.metadata))
	for k, v := range op.metadata {
		meta[k] = v
	}
	return model.Update{
		MessageID: op.assistantID,
		Content:   op.acc.Snapshot(),
		Status:    op.status,
		Progress:  op.progress,
		Step:      op.step,
		Metadata:  meta,
	}
}

func clampProgress(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
