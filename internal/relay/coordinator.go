// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/tallgrass-io/relay-tui/internal/model"
	"github.com/tallgrass-io/relay-tui/internal/protocol"
	"github.com/tallgrass-io/relay-tui/internal/transport"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Credentials identifies the session and caller for an outgoing send.
type Credentials struct {
	SessionID string
	UserID    string
	Bearer    string
}

// CredentialSource supplies the current session identity and bearer
// credential. Absence of either is a guarding-stage rejection, never a
// runtime fault deep in the stream.
type CredentialSource interface {
	Current() Credentials
}

// AttachmentResolver resolves a referenced attachment identifier into a
// descriptor. Unknown identifiers return ErrAttachmentNotFound.
type AttachmentResolver interface {
	Resolve(ctx context.Context, id string) (*model.Attachment, error)
}

// MemorySource supplies prior memory snippets relevant to the outgoing text.
type MemorySource interface {
	Relevant(ctx context.Context, text string, limit int) ([]string, error)
}

// ActionHandler is invoked for action_request events. Its failure is
// isolated: logged, never allowed to abort the stream.
type ActionHandler func(name string, payload json.RawMessage) error

// Callbacks connect the coordinator to the UI layer.
type Callbacks struct {
	// OnMessages delivers the optimistic user message and assistant
	// placeholder, appended in one transition.
	OnMessages func(user, assistant model.Message)

	// OnUpdate delivers throttled snapshots of the streaming assistant
	// message.
	OnUpdate func(model.Update)

	// OnAction handles out-of-band action requests (optional).
	OnAction ActionHandler
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds the coordinator's service parameters.
type Config struct {
	// Endpoint is the relay's send URL.
	Endpoint string

	// APIKey is the service key sent alongside the bearer credential.
	APIKey string

	// ProviderHint optionally steers the relay's routing decision.
	ProviderHint string

	// CommitDelay is the UI debounce window (0 = DefaultCommitDelay).
	CommitDelay time.Duration

	// MemoryLimit caps how many memory snippets accompany a send.
	MemoryLimit int
}

// sendRequest is the JSON body of a send submission.
type sendRequest struct {
	SessionID    string             `json:"session_id"`
	Text         string             `json:"text"`
	Attachments  []model.Attachment `json:"attachments,omitempty"`
	ImageIDs     []string           `json:"image_ids,omitempty"`
	ProviderHint string             `json:"provider_hint,omitempty"`
	UserID       string             `json:"user_id"`
	Memory       []string           `json:"memory,omitempty"`
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator owns the send lifecycle for one conversation.
type Coordinator struct {
	cfg       Config
	transport *transport.Client
	creds     CredentialSource
	attach    AttachmentResolver
	memory    MemorySource
	callbacks Callbacks
	logger    *log.Logger

	// Guarded state: one live operation at a time.
	mu       sync.Mutex
	inFlight bool
	op       *operation
	sched    *CommitScheduler
	conv     *model.Conversation
}

// NewCoordinator creates a coordinator for the given conversation.
func NewCoordinator(cfg Config, tc *transport.Client, creds CredentialSource, conv *model.Conversation) *Coordinator {
	if conv == nil {
		conv = model.NewConversation()
	}
	c := &Coordinator{
		cfg:       cfg,
		transport: tc,
		creds:     creds,
		logger:    log.Default(),
	}
	c.conv = conv
	return c
}

// SetAttachmentResolver wires the attachment-resolution collaborator.
func (c *Coordinator) SetAttachmentResolver(r AttachmentResolver) { c.attach = r }

// SetMemorySource wires the memory-snippet collaborator.
func (c *Coordinator) SetMemorySource(m MemorySource) { c.memory = m }

// SetCallbacks wires the UI callbacks.
func (c *Coordinator) SetCallbacks(cb Callbacks) { c.callbacks = cb }

// SetLogger replaces the default logger.
func (c *Coordinator) SetLogger(l *log.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Conversation returns the conversation this coordinator serves.
func (c *Coordinator) Conversation() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv
}

// InFlight reports whether a send operation is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Cancel aborts the in-flight operation, if any. Idempotent; a no-op after
// natural completion.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	op := c.op
	c.mu.Unlock()
	if op != nil {
		op.cancel.cancel()
	}
}

// =============================================================================
// SEND
// =============================================================================

// Send performs one complete send operation: guard, prepare, request,
// stream, finalize. It blocks until the operation reaches a terminal state
// and returns nil on clean completion, a guarding sentinel on synchronous
// rejection, or the terminal error kind otherwise.
func (c *Coordinator) Send(ctx context.Context, text string, attachmentIDs, imageIDs []string) error {
	// ----- Guarding -------------------------------------------------------
	creds := c.creds.Current()
	if creds.SessionID == "" {
		return ErrNoSession
	}
	if creds.Bearer == "" {
		return ErrAuthRequired
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrAlreadySending
	}
	c.inFlight = true

	// ----- Preparing ------------------------------------------------------
	// Retire the previous scheduler before any state reset so a stale timer
	// cannot commit into the new operation.
	if c.sched != nil {
		c.sched.Flush()
		c.sched.Stop()
	}
	c.sched = NewCommitScheduler(c.cfg.CommitDelay)

	userMsg := model.NewUserMessage(text)
	placeholder := model.NewAssistantPlaceholder()
	op := newOperation(userMsg.ID, placeholder.ID)
	c.op = op

	sched := c.sched
	c.mu.Unlock()

	opCtx, cancelFn := context.WithCancel(ctx)
	op.cancel.set(cancelFn)

	// ----- Finalizing (deferred) -----------------------------------------
	// Runs on every exit path: flush the last commit, release the guard,
	// invalidate the operation's cancellation token.
	defer func() {
		sched.Flush()
		c.mu.Lock()
		c.inFlight = false
		c.op = nil
		c.mu.Unlock()
		op.cancel.clear()
	}()

	attachments := c.resolveAttachments(opCtx, attachmentIDs)
	userMsg.Attachments = attachments

	c.mu.Lock()
	c.conv.AddPair(userMsg, placeholder)
	userCopy, placeholderCopy := *userMsg, *placeholder
	c.mu.Unlock()

	if c.callbacks.OnMessages != nil {
		c.callbacks.OnMessages(userCopy, placeholderCopy)
	}

	// ----- AwaitingResponse ----------------------------------------------
	resp, err := c.request(opCtx, creds, text, attachments, imageIDs)
	if err != nil {
		return c.failOp(op, sched, opCtx, err)
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return c.failOp(op, sched, opCtx, ErrEmptyResponseBody)
	}
	defer resp.Body.Close()

	// ----- Streaming ------------------------------------------------------
	return c.stream(opCtx, op, sched, resp.Body)
}

// request builds and performs the send submission.
func (c *Coordinator) request(ctx context.Context, creds Credentials, text string, attachments []model.Attachment, imageIDs []string) (*http.Response, error) {
	payload := sendRequest{
		SessionID:    creds.SessionID,
		Text:         text,
		Attachments:  attachments,
		ImageIDs:     imageIDs,
		ProviderHint: c.cfg.ProviderHint,
		UserID:       creds.UserID,
		Memory:       c.relevantMemory(ctx, text),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	req, err := transport.NewJSONRequest(ctx, c.cfg.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.Bearer)
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/x-ndjson")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}
	return resp, nil
}

// stream drives the decoder over the response body, applying each event in
// arrival order.
func (c *Coordinator) stream(ctx context.Context, op *operation, sched *CommitScheduler, body io.Reader) error {
	dec := protocol.NewDecoder(body)
	var upstreamErr bool

	for {
		select {
		case <-ctx.Done():
			return c.cancelOp(op, sched)
		default:
		}

		ev, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return c.cancelOp(op, sched)
			}
			return c.failOp(op, sched, ctx, fmt.Errorf("%w: %w", ErrStreamIncomplete, err))
		}

		c.mu.Lock()
		switch ev.Kind {
		case protocol.KindText:
			op.applyText(ev.Content)
		case protocol.KindProgress:
			op.applyProgress(ev.Progress, ev.Step)
		case protocol.KindModelSwitch:
			op.applyModelSwitch(ev)
		case protocol.KindMetadata:
			op.applyMetadata(ev.Metadata)
		case protocol.KindWarning:
			op.applyWarning(ev)
		case protocol.KindError:
			op.applyError(ev)
			upstreamErr = true
		case protocol.KindDone:
			op.applyDone()
		case protocol.KindActionRequest:
			// Handled outside the lock below.
		}
		c.mu.Unlock()

		if ev.Kind == protocol.KindActionRequest {
			c.dispatchAction(ev)
			continue
		}

		c.scheduleCommit(op, sched)

		if ev.IsDone() {
			break
		}
	}

	if !dec.SawDone() {
		// Connection closed without an explicit done marker.
		return c.failOp(op, sched, ctx, ErrStreamIncomplete)
	}

	if upstreamErr {
		return ErrUpstreamEvent
	}
	return nil
}

// dispatchAction invokes the registered action handler. Handler failures
// are logged and swallowed; they never abort message finalization.
func (c *Coordinator) dispatchAction(ev *protocol.Event) {
	handler := c.callbacks.OnAction
	if handler == nil {
		return
	}
	if err := handler(ev.Action, ev.Payload); err != nil {
		c.logger.Printf("action handler %q failed: %v", ev.Action, err)
	}
}

// =============================================================================
// TERMINAL PATHS
// =============================================================================

// failOp marks the operation failed, preserving any partial content, and
// returns the terminal error. A cancelled context takes precedence: caller
// intent beats whatever fault the teardown produced.
func (c *Coordinator) failOp(op *operation, sched *CommitScheduler, ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return c.cancelOp(op, sched)
	}

	c.mu.Lock()
	op.status = model.StatusError
	if op.acc.Len() > 0 {
		op.acc.Append("\n\n")
	}
	op.acc.Append("[error: " + userFacing(err) + "]")
	c.mu.Unlock()

	c.scheduleCommit(op, sched)
	return err
}

// cancelOp marks the operation cancelled. Cancellation is not a failure:
// no error annotation is appended, and the status is distinct from error.
func (c *Coordinator) cancelOp(op *operation, sched *CommitScheduler) error {
	c.mu.Lock()
	op.status = model.StatusCancelled
	c.mu.Unlock()

	c.scheduleCommit(op, sched)
	return ErrCancelled
}

// =============================================================================
// HELPERS
// =============================================================================

// scheduleCommit registers a commit of the operation's current state. The
// commit copies the operation into the conversation's placeholder message
// and hands an immutable snapshot to the UI.
func (c *Coordinator) scheduleCommit(op *operation, sched *CommitScheduler) {
	sched.Schedule(func() {
		c.mu.Lock()
		upd := op.snapshot()
		if msg := c.conv.FindMessage(op.assistantID); msg != nil {
			msg.Content = upd.Content
			msg.Status = upd.Status
			msg.Progress = upd.Progress
			msg.Step = upd.Step
			msg.Metadata = upd.Metadata
		}
		cb := c.callbacks.OnUpdate
		c.mu.Unlock()

		if cb != nil {
			cb(upd)
		}
	})
}

// resolveAttachments maps identifiers to descriptors, silently dropping
// any that fail to resolve.
func (c *Coordinator) resolveAttachments(ctx context.Context, ids []string) []model.Attachment {
	if c.attach == nil || len(ids) == 0 {
		return nil
	}
	out := make([]model.Attachment, 0, len(ids))
	for _, id := range ids {
		att, err := c.attach.Resolve(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrAttachmentNotFound) {
				c.logger.Printf("attachment %s dropped: %v", id, err)
			}
			continue
		}
		out = append(out, *att)
	}
	return out
}

// relevantMemory gathers prior memory snippets for the request. Failures
// degrade to an empty list.
func (c *Coordinator) relevantMemory(ctx context.Context, text string) []string {
	if c.memory == nil {
		return nil
	}
	limit := c.cfg.MemoryLimit
	if limit <= 0 {
		limit = 5
	}
	snippets, err := c.memory.Relevant(ctx, text, limit)
	if err != nil {
		c.logger.Printf("memory lookup failed: %v", err)
		return nil
	}
	return snippets
}

// userFacing reduces an internal error to text suitable for the message
// annotation.
func userFacing(err error) string {
	switch {
	case errors.Is(err, ErrEmptyResponseBody):
		return "the relay returned an empty response"
	case errors.Is(err, ErrTransportFailure):
		return "could not reach the relay"
	case errors.Is(err, ErrStreamIncomplete):
		return "the response stream ended unexpectedly"
	default:
		return err.Error()
	}
}
