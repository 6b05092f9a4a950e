// Package conversation owns the client-side state machine for one
// conversation with the assistant backend: the authoritative State, the
// turn controller that feeds decoded stream events through it, and the
// confirmation flow for tool calls the server pauses on.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/inviteflow/concierge/client"
	"github.com/inviteflow/concierge/quota"
)

const defaultHandoffDelay = 1500 * time.Millisecond

// EventStream yields decoded protocol events for one turn
type EventStream interface {
	Next() (client.Event, error)
	Close() error
}

// Backend is the assistant backend surface the controller needs
type Backend interface {
	StreamTurn(ctx context.Context, request *client.TurnRequest) (EventStream, error)
	Execute(ctx context.Context, request *client.ExecuteRequest) (*client.ToolResult, error)
}

// Archive persists the conversation between runs
type Archive interface {
	Save(messages []Message) error
	Clear() error
}

// BlockedError means the daily quota blocked the send before any request
// was made or the server answered 429. Notice is ready for display.
type BlockedError struct {
	Notice string
}

func (e *BlockedError) Error() string {
	return e.Notice
}

// TurnError is a turn-level failure with a user-facing notice. The notice
// is what the UI shows; Cause keeps the underlying detail.
type TurnError struct {
	Notice string
	Cause  error
}

func (e *TurnError) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Notice
}

func (e *TurnError) Unwrap() error {
	return e.Cause
}

// Controller orchestrates turns against the backend. One conversation, no
// concurrent turns: State.IsLoading gates new sends.
type Controller struct {
	backend Backend
	state   *State
	gate    *quota.Gate

	archive      Archive
	handoff      func(entityID string)
	handoffDelay time.Duration

	mu          sync.Mutex
	cancelTurn  context.CancelFunc
	handedOff   bool
}

// ControllerOption is a functional option for configuring the controller
type ControllerOption func(*Controller)

// WithArchive persists the message history after every turn
func WithArchive(archive Archive) ControllerOption {
	return func(c *Controller) {
		c.archive = archive
	}
}

// WithHandoff registers the callback invoked when a turn created an entity.
// The call is delayed by the hand-off grace period so the UI can show its
// success state first.
func WithHandoff(fn func(entityID string)) ControllerOption {
	return func(c *Controller) {
		c.handoff = fn
	}
}

// WithHandoffDelay overrides the hand-off grace period
func WithHandoffDelay(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.handoffDelay = d
	}
}

// NewController creates a turn controller
func NewController(backend Backend, state *State, gate *quota.Gate, opts ...ControllerOption) *Controller {
	c := &Controller{
		backend:      backend,
		state:        state,
		gate:         gate,
		handoffDelay: defaultHandoffDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the conversation state the controller drives
func (c *Controller) State() *State {
	return c.state
}

// Send runs one conversational turn: append the user message, open the
// stream, apply decoded events, and end in completion, a pending
// confirmation, or an error. Finish always runs, so the input is never left
// disabled.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("message is empty")
	}
	if c.state.IsLoading() {
		return fmt.Errorf("a turn is already in progress")
	}
	if c.state.PendingConfirmation() != nil {
		return fmt.Errorf("resolve the pending confirmation first")
	}
	if !c.gate.CanSend() {
		return &BlockedError{Notice: c.gate.BlockedNotice()}
	}

	// History and confirmations are captured before the optimistic append:
	// the new message travels in userMessage, not in the replayed history.
	prior := c.state.WireHistory()
	confirmed := c.state.ConfirmedToolCalls()
	userMessageID := c.state.AppendUserMessage(text)
	c.state.PrepareForSend()

	defer c.state.Finish()
	defer c.persist()

	ctx, cancel := context.WithCancel(ctx)
	c.armCancel(cancel)
	defer c.disarmCancel()

	stream, err := c.backend.StreamTurn(ctx, &client.TurnRequest{
		Messages:           prior,
		UserMessage:        text,
		ConfirmedToolCalls: confirmed,
	})
	if err != nil {
		if ctx.Err() != nil {
			// User-initiated abort: recovered silently.
			c.state.RollbackTurn(userMessageID)
			return nil
		}
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) && statusErr.IsRateLimited() {
			c.gate.Exhaust()
			notice := statusErr.Message
			if notice == "" {
				notice = c.gate.BlockedNotice()
			}
			return &BlockedError{Notice: notice}
		}
		return &TurnError{Notice: client.FailureNotice(client.FailureGeneric), Cause: err}
	}
	defer stream.Close()

	// The body is readable: give the UI an assistant slot to stream into.
	c.state.BeginAssistantMessage()
	c.gate.ConsumeOne()
	c.resetHandoff()

	for {
		event, err := stream.Next()
		if err != nil {
			if err == io.EOF {
				// Stream ended without a terminal event: silent success.
				break
			}
			if ctx.Err() != nil {
				c.state.RollbackTurn(userMessageID)
				return nil
			}
			return &TurnError{Notice: client.FailureNotice(client.FailureGeneric), Cause: err}
		}

		terminal, err := c.apply(event)
		if err != nil {
			return err
		}
		if terminal {
			break
		}
	}

	if c.state.PendingConfirmation() == nil && LooksLikeConfirmationRequest(c.state.LastAssistantContent()) {
		c.state.OfferQuickReplies()
	}

	return nil
}

// apply folds one decoded event into the state. It reports whether the
// event was terminal for the turn.
func (c *Controller) apply(event client.Event) (bool, error) {
	switch e := event.(type) {
	case client.TextEvent:
		c.state.AppendAssistantText(e.Content)

	case client.ToolStartEvent:
		c.state.StartTool(client.ToolCall(e))

	case client.ToolPendingEvent:
		c.state.InstallPending(client.ToolCall(e))

	case client.ToolResultEvent:
		c.state.RecordToolResult(client.ToolResult{
			ToolCallID: e.ID,
			Name:       e.Name,
			Success:    e.Success,
			Summary:    e.Summary,
			Data:       e.Data,
			Error:      e.Error,
		})

	case client.DoneEvent:
		c.gate.ApplyServer(e.RateLimit)
		if len(e.PendingConfirmations) > 0 {
			c.state.InstallPending(e.PendingConfirmations[0])
		} else if e.IsComplete && e.EntityID != "" {
			c.state.MarkComplete()
			c.scheduleHandoff(e.EntityID)
		}
		return true, nil

	case client.ErrorEvent:
		kind := client.ClassifyFailure(e.Message)
		return true, &TurnError{
			Notice: client.FailureNotice(kind),
			Cause:  fmt.Errorf("assistant error: %s", e.Message),
		}
	}

	return false, nil
}

// CancelTurn aborts the in-flight turn, if any. Cancelling twice is a
// no-op.
func (c *Controller) CancelTurn() {
	c.mu.Lock()
	cancel := c.cancelTurn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// ClearConversation resets the state and removes the persisted copy
func (c *Controller) ClearConversation() error {
	c.state.Clear()
	if c.archive != nil {
		return c.archive.Clear()
	}
	return nil
}

func (c *Controller) armCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancelTurn = cancel
	c.mu.Unlock()
}

func (c *Controller) disarmCancel() {
	c.mu.Lock()
	cancel := c.cancelTurn
	c.cancelTurn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Controller) resetHandoff() {
	c.mu.Lock()
	c.handedOff = false
	c.mu.Unlock()
}

// scheduleHandoff notifies the embedding application of a created entity
// after the grace period. At most one hand-off per turn.
func (c *Controller) scheduleHandoff(entityID string) {
	c.mu.Lock()
	if c.handedOff || c.handoff == nil {
		c.mu.Unlock()
		return
	}
	c.handedOff = true
	fn := c.handoff
	delay := c.handoffDelay
	c.mu.Unlock()

	time.AfterFunc(delay, func() {
		fn(entityID)
	})
}

// persist caches the conversation; best effort, a failed write never fails
// the turn.
func (c *Controller) persist() {
	if c.archive == nil {
		return
	}
	_ = c.archive.Save(c.state.Messages())
}

// clientBackend adapts *client.Client to the Backend interface
type clientBackend struct {
	c *client.Client
}

// NewBackend wraps the HTTP client for use by the controller
func NewBackend(c *client.Client) Backend {
	return clientBackend{c: c}
}

func (b clientBackend) StreamTurn(ctx context.Context, request *client.TurnRequest) (EventStream, error) {
	stream, err := b.c.StreamTurn(ctx, request)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (b clientBackend) Execute(ctx context.Context, request *client.ExecuteRequest) (*client.ToolResult, error) {
	return b.c.Execute(ctx, request)
}
