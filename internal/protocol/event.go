// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
)

// =============================================================================
// EVENT KINDS
// =============================================================================

// Kind discriminates the event types on the relay stream.
type Kind string

const (
	// KindText carries a content delta for the assistant message.
	KindText Kind = "text"

	// KindProgress carries a 0-100 progress value and a step label.
	KindProgress Kind = "progress"

	// KindModelSwitch announces a provider/model change mid-stream,
	// optionally carrying a content delta of its own.
	KindModelSwitch Kind = "model_switch"

	// KindMetadata carries a key/value patch for the message metadata.
	KindMetadata Kind = "metadata"

	// KindActionRequest asks the client to invoke an external handler.
	KindActionRequest Kind = "action_request"

	// KindWarning is a non-fatal diagnostic from the relay.
	KindWarning Kind = "warning"

	// KindError reports a failure that terminates the stream.
	KindError Kind = "error"

	// KindDone marks successful termination of the stream.
	KindDone Kind = "done"
)

// knownKinds is the set of record types the decoder recognizes.
// Anything else on the wire is treated as non-event padding.
var knownKinds = map[Kind]bool{
	KindText:          true,
	KindProgress:      true,
	KindModelSwitch:   true,
	KindMetadata:      true,
	KindActionRequest: true,
	KindWarning:       true,
	KindError:         true,
	KindDone:          true,
}

// =============================================================================
// EVENT TYPE
// =============================================================================

// Event is one decoded record from the relay stream.
// Which fields are meaningful depends on Kind.
type Event struct {
	Kind Kind `json:"type"`

	// Content delta (text, model_switch).
	Content string `json:"content,omitempty"`

	// Progress reporting (progress).
	Progress float64 `json:"progress,omitempty"`
	Step     string  `json:"step,omitempty"`

	// Routing information (model_switch).
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Metadata patch (metadata, model_switch, warning diagnostics).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Action dispatch (action_request).
	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Human-readable text for warning and error events.
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// IsDone returns true for the terminal done marker.
func (e *Event) IsDone() bool {
	return e.Kind == KindDone
}

// parseEvent decodes a single stream line into an Event.
// Returns nil if the line is not a recognized event.
func parseEvent(line []byte) *Event {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil
	}
	if !knownKinds[ev.Kind] {
		return nil
	}
	return &ev
}
