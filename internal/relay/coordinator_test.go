// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/transport"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type stubCreds struct{ creds Credentials }

func (s stubCreds) Current() Credentials { return s.creds }

func validCreds() stubCreds {
	return stubCreds{Credentials{SessionID: "sess-1", UserID: "user-1", Bearer: "tok-abc"}}
}

type stubResolver map[string]model.Attachment

func (r stubResolver) Resolve(_ context.Context, id string) (*model.Attachment, error) {
	if a, ok := r[id]; ok {
		return &a, nil
	}
	return nil, ErrAttachmentNotFound
}

// sink collects coordinator callbacks under a mutex.
type sink struct {
	mu      sync.Mutex
	pairs   int
	updates []model.Update
}

func (s *sink) callbacks() Callbacks {
	return Callbacks{
		OnMessages: func(user, assistant model.Message) {
			s.mu.Lock()
			s.pairs++
			s.mu.Unlock()
		},
		OnUpdate: func(u model.Update) {
			s.mu.Lock()
			s.updates = append(s.updates, u)
			s.mu.Unlock()
		},
	}
}

func (s *sink) last(t *testing.T) model.Update {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.updates, "no updates delivered")
	return s.updates[len(s.updates)-1]
}

func (s *sink) all() []model.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Update, len(s.updates))
	copy(out, s.updates)
	return out
}

// ndjsonServer streams the given records and captures the request body.
func ndjsonServer(t *testing.T, lines []string) (*httptest.Server, *[]byte) {
	t.Helper()
	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			io.WriteString(w, line+"\n")
			flusher.Flush()
		}
	}))
	return server, &captured
}

func testCoordinator(endpoint string, conv *model.Conversation) (*Coordinator, *sink) {
	tc := transport.NewClientWithHTTP(&http.Client{}, transport.Options{
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
	})
	c := NewCoordinator(Config{
		Endpoint:    endpoint,
		APIKey:      "svc-key",
		CommitDelay: 5 * time.Millisecond,
	}, tc, validCreds(), conv)

	s := &sink{}
	c.SetCallbacks(s.callbacks())
	return c, s
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestSend_HappyPath(t *testing.T) {
	server, captured := ndjsonServer(t, []string{
		`{"type":"progress","progress":5,"step":"thinking"}`,
		`{"type":"text","content":"Hi"}`,
		`{"type":"text","content":" there"}`,
		`{"type":"done"}`,
	})
	defer server.Close()

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	err := c.Send(context.Background(), "hello", nil, nil)
	require.NoError(t, err)

	final := s.last(t)
	assert.Equal(t, "Hi there", final.Content)
	assert.Equal(t, model.StatusComplete, final.Status)
	assert.Equal(t, float64(100), final.Progress)

	// Optimistic pair landed once, and the conversation message matches.
	assert.Equal(t, 1, s.pairs)
	require.Equal(t, 2, conv.MessageCount())
	assistant := conv.Messages[1]
	assert.Equal(t, "Hi there", assistant.Content)
	assert.Equal(t, model.StatusComplete, assistant.Status)

	// Request carried identity, credentials, and text.
	var req map[string]any
	require.NoError(t, json.Unmarshal(*captured, &req))
	assert.Equal(t, "sess-1", req["session_id"])
	assert.Equal(t, "user-1", req["user_id"])
	assert.Equal(t, "hello", req["text"])

	assert.False(t, c.InFlight(), "guard must clear after completion")
}

func TestSend_ModelSwitchAndWarning(t *testing.T) {
	server, _ := ndjsonServer(t, []string{
		`{"type":"text","content":"Hello"}`,
		`{"type":"model_switch","content":" world","model":"relay-large-2","provider":"cloud","metadata":{"tier":"a"}}`,
		`{"type":"metadata","metadata":{"tier":"b"}}`,
		`{"type":"warning","message":"provider degraded, rerouted"}`,
		`{"type":"text","content":"!"}`,
		`{"type":"done"}`,
	})
	defer server.Close()

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	err := c.Send(context.Background(), "hello", nil, nil)
	require.NoError(t, err)

	final := s.last(t)
	// Switch deltas interleave with plain text in arrival order.
	assert.Equal(t, "Hello world!", final.Content)
	assert.Equal(t, model.StatusComplete, final.Status)

	// Routing keys land in metadata, and the later patch wins the tier key.
	assert.Equal(t, "relay-large-2", final.Metadata["model"])
	assert.Equal(t, "cloud", final.Metadata["provider"])
	assert.Equal(t, "b", final.Metadata["tier"])

	// Warnings accumulate without disturbing content or status.
	warnings, ok := final.Metadata["warnings"].([]string)
	require.True(t, ok, "warnings must be a string slice, got %T", final.Metadata["warnings"])
	assert.Equal(t, []string{"provider degraded, rerouted"}, warnings)
}

func TestSend_GuardRejections(t *testing.T) {
	conv := model.NewConversation()
	tc := transport.NewClientWithHTTP(&http.Client{}, transport.Options{MaxAttempts: 1})

	noSession := NewCoordinator(Config{Endpoint: "http://invalid"}, tc, stubCreds{Credentials{Bearer: "tok"}}, conv)
	assert.ErrorIs(t, noSession.Send(context.Background(), "hi", nil, nil), ErrNoSession)

	noAuth := NewCoordinator(Config{Endpoint: "http://invalid"}, tc, stubCreds{Credentials{SessionID: "s"}}, conv)
	assert.ErrorIs(t, noAuth.Send(context.Background(), "hi", nil, nil), ErrAuthRequired)

	// Guard rejections never mutate message state.
	assert.Equal(t, 0, conv.MessageCount())
}

func TestSend_RejectsConcurrentSend(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		w.(http.Flusher).Flush()
		<-release
		io.WriteString(w, `{"type":"done"}`+"\n")
	}))
	defer server.Close()
	defer close(release)

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Send(context.Background(), "first", nil, nil) }()

	// Wait until the first send holds the guard.
	require.Eventually(t, c.InFlight, time.Second, time.Millisecond)

	err := c.Send(context.Background(), "second", nil, nil)
	assert.ErrorIs(t, err, ErrAlreadySending)

	// The rejected send added no optimistic messages.
	assert.Equal(t, 1, s.pairs)
	assert.Equal(t, 2, conv.MessageCount())

	release <- struct{}{}
	require.NoError(t, <-firstDone)
}

func TestSend_CancelMidStream(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.ReadAll(r.Body)
		io.WriteString(w, `{"type":"text","content":"partial"}`+"\n")
		w.(http.Flusher).Flush()
		close(started)
		// Hold the stream open until the client goes away.
		<-r.Context().Done()
	}))
	defer server.Close()

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "hello", nil, nil) }()

	<-started
	time.Sleep(20 * time.Millisecond) // let the text event apply
	c.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not stop after cancel")
	}

	final := s.last(t)
	assert.Equal(t, model.StatusCancelled, final.Status)
	assert.Equal(t, "partial", final.Content, "partial text preserved, no error annotation")

	// Cancel after completion is a no-op.
	c.Cancel()
	assert.False(t, c.InFlight())
}

func TestSend_UpstreamErrorEvent(t *testing.T) {
	server, _ := ndjsonServer(t, []string{
		`{"type":"text","content":"some output"}`,
		`{"type":"error","message":"router exploded","code":"E42"}`,
		`{"type":"done"}`,
	})
	defer server.Close()

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	err := c.Send(context.Background(), "hello", nil, nil)
	assert.ErrorIs(t, err, ErrUpstreamEvent)

	final := s.last(t)
	assert.Equal(t, model.StatusError, final.Status)
	assert.Contains(t, final.Content, "some output", "partial output preserved")
	assert.Contains(t, final.Content, "router exploded", "visible annotation appended")
	assert.Equal(t, "E42", final.Metadata["error_code"])
}

func TestSend_AbruptStreamEnd(t *testing.T) {
	server, _ := ndjsonServer(t, []string{
		`{"type":"text","content":"cut off"}`,
		// no done marker
	})
	defer server.Close()

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	err := c.Send(context.Background(), "hello", nil, nil)
	assert.ErrorIs(t, err, ErrStreamIncomplete)

	final := s.last(t)
	assert.Equal(t, model.StatusError, final.Status)
	assert.Contains(t, final.Content, "cut off")
	assert.False(t, c.InFlight(), "operation must not stay stuck in streaming")
}

func TestSend_ProgressClampedAndMonotonic(t *testing.T) {
	server, _ := ndjsonServer(t, []string{
		`{"type":"progress","progress":150,"step":"warp"}`,
		`{"type":"progress","progress":30,"step":"later"}`,
		`{"type":"text","content":"x"}`,
	})
	defer server.Close()

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	_ = c.Send(context.Background(), "hello", nil, nil)

	for _, u := range s.all() {
		assert.LessOrEqual(t, u.Progress, float64(100))
	}
	final := s.last(t)
	assert.Equal(t, float64(100), final.Progress, "display progress never decreases below the clamped maximum")
	assert.Equal(t, "later", final.Step, "step label still tracks the latest report")
}

func TestSend_DropsUnresolvedAttachments(t *testing.T) {
	server, captured := ndjsonServer(t, []string{`{"type":"done"}`})
	defer server.Close()

	conv := model.NewConversation()
	c, _ := testCoordinator(server.URL, conv)
	c.SetAttachmentResolver(stubResolver{
		"a1": {ID: "a1", Name: "notes.txt", Mime: "text/plain", URL: "https://files/a1", Size: 12},
	})

	err := c.Send(context.Background(), "see attachment", []string{"a1", "missing"}, nil)
	require.NoError(t, err)

	var req struct {
		Attachments []model.Attachment `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal(*captured, &req))
	require.Len(t, req.Attachments, 1, "unresolved identifiers are dropped, not fatal")
	assert.Equal(t, "notes.txt", req.Attachments[0].Name)
}

func TestSend_ActionHandlerFailureIsIsolated(t *testing.T) {
	server, _ := ndjsonServer(t, []string{
		`{"type":"action_request","action":"refresh_quota","payload":{"scope":"chat"}}`,
		`{"type":"text","content":"after action"}`,
		`{"type":"done"}`,
	})
	defer server.Close()

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	var called string
	cb := s.callbacks()
	cb.OnAction = func(name string, payload json.RawMessage) error {
		called = name
		return assert.AnError
	}
	c.SetCallbacks(cb)

	err := c.Send(context.Background(), "hello", nil, nil)
	require.NoError(t, err, "handler failure must not abort the stream")
	assert.Equal(t, "refresh_quota", called)
	assert.Equal(t, "after action", s.last(t).Content)
}

func TestSend_TransportFailureAnnotates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	conv := model.NewConversation()
	c, s := testCoordinator(server.URL, conv)

	err := c.Send(context.Background(), "hello", nil, nil)
	require.Error(t, err)

	final := s.last(t)
	assert.Equal(t, model.StatusError, final.Status)
	assert.Contains(t, final.Content, "[error:")
}
