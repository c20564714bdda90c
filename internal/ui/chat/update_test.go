// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"net/http"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tallgrass-io/relay-tui/internal/config"
	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/relay"
	"github.com/tallgrass-io/relay-tui/internal/session"
	"github.com/tallgrass-io/relay-tui/internal/transport"
)

func testModel(t *testing.T) Model {
	t.Helper()
	conv := model.NewConversation()
	sess := session.NewManager(session.DefaultConfig())
	tc := transport.NewClientWithHTTP(&http.Client{}, transport.Options{MaxAttempts: 1})
	coord := relay.NewCoordinator(relay.Config{Endpoint: "http://invalid"}, tc, sess, conv)

	m := New(coord, sess, nil, config.Default())
	// Simulate the initial resize so the viewport exists.
	return apply(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
}

// apply runs one update and re-asserts the concrete model type.
func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want chat.Model", next)
	}
	return nm
}

// =============================================================================
// BRIDGE TESTS
// =============================================================================

func TestBridgeForwardsCallbacks(t *testing.T) {
	b := NewBridge()
	cb := b.Callbacks()

	user := model.NewUserMessage("hi")
	assistant := model.NewAssistantPlaceholder()
	cb.OnMessages(*user, *assistant)
	cb.OnUpdate(model.Update{MessageID: assistant.ID, Content: "partial"})

	first := b.Await()()
	if _, ok := first.(PairAddedMsg); !ok {
		t.Fatalf("first bridged msg = %T, want PairAddedMsg", first)
	}
	second := b.Await()()
	commit, ok := second.(CommitMsg)
	if !ok {
		t.Fatalf("second bridged msg = %T, want CommitMsg", second)
	}
	if commit.Update.Content != "partial" {
		t.Errorf("commit content = %q", commit.Update.Content)
	}
}

func TestBridgeActionHandlerNeverFails(t *testing.T) {
	b := NewBridge()
	if err := b.Callbacks().OnAction("refresh", nil); err != nil {
		t.Errorf("OnAction = %v, want nil", err)
	}
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestPairAddedAppendsMessages(t *testing.T) {
	m := testModel(t)

	user := model.NewUserMessage("hello")
	assistant := model.NewAssistantPlaceholder()
	m = apply(t, m, PairAddedMsg{User: *user, Assistant: *assistant})

	if len(m.Messages()) != 2 {
		t.Fatalf("got %d messages, want 2", len(m.Messages()))
	}
	if m.Messages()[1].Status != model.StatusStreaming {
		t.Errorf("placeholder status = %q", m.Messages()[1].Status)
	}
}

func TestCommitFoldsIntoPlaceholder(t *testing.T) {
	m := testModel(t)

	user := model.NewUserMessage("hello")
	assistant := model.NewAssistantPlaceholder()
	m = apply(t, m, PairAddedMsg{User: *user, Assistant: *assistant})

	m = apply(t, m, CommitMsg{Update: model.Update{
		MessageID: assistant.ID,
		Content:   "Hi there",
		Status:    model.StatusComplete,
		Progress:  100,
		Metadata:  map[string]any{"model": "relay-large"},
	}})

	got := m.Messages()[1]
	if got.Content != "Hi there" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Status != model.StatusComplete {
		t.Errorf("status = %q", got.Status)
	}
	if m.provider != "relay-large" {
		t.Errorf("provider = %q, want relay-large", m.provider)
	}
}

func TestCommitForUnknownMessageIsIgnored(t *testing.T) {
	m := testModel(t)

	m = apply(t, m, CommitMsg{Update: model.Update{MessageID: "ghost", Content: "boo"}})
	if len(m.Messages()) != 0 {
		t.Errorf("unknown commit should not create messages, got %d", len(m.Messages()))
	}
}

func TestSendResultClearsStreamingState(t *testing.T) {
	m := testModel(t)
	m.state = StateStreaming
	m.progress = 40

	m = apply(t, m, SendResultMsg{Err: nil})
	if m.Streaming() {
		t.Error("state should be ready after send result")
	}
	if m.progress != 0 {
		t.Errorf("progress = %v, want reset", m.progress)
	}
}

func TestCancelledSendIsNotAnError(t *testing.T) {
	m := testModel(t)
	m.state = StateStreaming

	m = apply(t, m, SendResultMsg{Err: relay.ErrCancelled})
	if m.state == StateError {
		t.Error("cancellation must not enter the error state")
	}
	if m.lastErr != nil {
		t.Errorf("lastErr = %v, want nil", m.lastErr)
	}
}

func TestSubmitIgnoredWhileStreaming(t *testing.T) {
	m := testModel(t)
	m.state = StateStreaming
	m.input.SetValue("second message")

	if cmd := m.submit(); cmd != nil {
		t.Error("submit while streaming should be a no-op")
	}
	if m.input.Value() != "second message" {
		t.Error("input should be preserved when submit is refused")
	}
}

func TestViewRendersWithoutPanic(t *testing.T) {
	m := testModel(t)

	user := model.NewUserMessage("hello")
	user.Timestamp = time.Now()
	assistant := model.NewAssistantPlaceholder()
	assistant.Content = "partial reply"
	m = apply(t, m, PairAddedMsg{User: *user, Assistant: *assistant})

	if out := m.View(); out == "" {
		t.Error("View should render non-empty output")
	}
}
