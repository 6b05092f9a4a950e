package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inviteflow/concierge/client"
)

// ToolStatus represents the UI-visible lifecycle of a tool call
type ToolStatus string

const (
	ToolStatusPending   ToolStatus = "pending"
	ToolStatusExecuting ToolStatus = "executing"
	ToolStatusSuccess   ToolStatus = "success"
	ToolStatusError     ToolStatus = "error"
)

// ExecutingTool tracks one tool call's lifecycle within a turn
type ExecutingTool struct {
	ID     string
	Name   string
	Status ToolStatus
}

// Message is a conversation message as held locally. The wire replays only
// role and content; id and timestamp are client-side identity.
type Message struct {
	ID        string
	Role      client.Role
	Content   string
	Timestamp time.Time
}

// State is the single authoritative conversation state. All mutation goes
// through the named transition methods below; nothing else writes fields.
// Reads return copies, so snapshots taken by the UI never alias live state.
type State struct {
	mu sync.RWMutex

	messages            []Message
	isLoading           bool
	isStreaming         bool
	currentActivity     string
	pendingConfirmation *client.ToolCall
	executingTools      []ExecutingTool
	toolResults         []client.ToolResult
	confirmedToolCalls  map[string]struct{}
	isComplete          bool
	offerQuickReplies   bool
}

// NewState creates an empty conversation state
func NewState() *State {
	return &State{
		confirmedToolCalls: make(map[string]struct{}),
	}
}

// PrepareForSend resets turn-scoped fields at the start of a new turn.
// Messages persist; tool artifacts, pending confirmation and completion do
// not.
func (s *State) PrepareForSend() {
	s.mu.Lock()
	s.isLoading = true
	s.isStreaming = false
	s.currentActivity = activityThinking
	s.pendingConfirmation = nil
	s.executingTools = nil
	s.toolResults = nil
	s.isComplete = false
	s.offerQuickReplies = false
	s.mu.Unlock()
}

// AppendUserMessage appends the user's message optimistically and returns
// its id so the turn can roll it back on cancellation.
func (s *State) AppendUserMessage(content string) string {
	msg := Message{
		ID:        uuid.New().String(),
		Role:      client.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg.ID
}

// BeginAssistantMessage appends an empty assistant message for the stream to
// fill, created as soon as a readable response body is confirmed.
func (s *State) BeginAssistantMessage() string {
	msg := Message{
		ID:        uuid.New().String(),
		Role:      client.RoleAssistant,
		Content:   "",
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg.ID
}

// AppendAssistantText appends streamed content to the in-flight assistant
// message. The first chunk flips the state from thinking to typing.
func (s *State) AppendAssistantText(content string) {
	s.mu.Lock()
	if !s.isStreaming {
		s.isStreaming = true
		s.currentActivity = ""
	}
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == client.RoleAssistant {
		s.messages[n-1].Content += content
	}
	s.mu.Unlock()
}

// AppendAssistantMessage appends a complete assistant message, used for the
// synthetic confirmation after a successful execute call.
func (s *State) AppendAssistantMessage(content string) {
	msg := Message{
		ID:        uuid.New().String(),
		Role:      client.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// StartTool registers a tool the server began executing
func (s *State) StartTool(call client.ToolCall) {
	s.mu.Lock()
	s.executingTools = append(s.executingTools, ExecutingTool{
		ID:     call.ID,
		Name:   call.Name,
		Status: ToolStatusExecuting,
	})
	s.currentActivity = ActivityLabel(call.Name)
	s.mu.Unlock()
}

// RecordToolResult appends a tool's terminal outcome and settles the
// matching executing tool.
func (s *State) RecordToolResult(result client.ToolResult) {
	s.mu.Lock()
	s.toolResults = append(s.toolResults, result)

	status := ToolStatusSuccess
	if !result.Success {
		status = ToolStatusError
	}
	for i := range s.executingTools {
		if s.executingTools[i].ID == result.ToolCallID {
			s.executingTools[i].Status = status
			break
		}
	}
	s.currentActivity = ""
	s.mu.Unlock()
}

// InstallPending installs a tool call awaiting user approval. Streaming and
// loading are forced off first: a pending confirmation and an active stream
// never coexist.
func (s *State) InstallPending(call client.ToolCall) {
	s.mu.Lock()
	s.isStreaming = false
	s.isLoading = false
	s.currentActivity = ""
	callCopy := call
	s.pendingConfirmation = &callCopy

	// A tool announced via tool_start that then paused must not linger as
	// executing.
	for i := range s.executingTools {
		if s.executingTools[i].ID == call.ID && s.executingTools[i].Status == ToolStatusExecuting {
			s.executingTools[i].Status = ToolStatusPending
		}
	}
	s.mu.Unlock()
}

// BeginConfirm marks the pending tool as executing for the dedicated
// execute call. It reports false when the given id no longer matches the
// pending confirmation, or when an execute call is already in flight: a
// confirmed call reaches the backend exactly once.
func (s *State) BeginConfirm(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingConfirmation == nil || s.pendingConfirmation.ID != id {
		return false
	}
	if s.isLoading {
		return false
	}

	s.isLoading = true
	s.currentActivity = ActivityLabel(s.pendingConfirmation.Name)
	s.confirmedToolCalls[id] = struct{}{}

	found := false
	for i := range s.executingTools {
		if s.executingTools[i].ID == id {
			s.executingTools[i].Status = ToolStatusExecuting
			found = true
		}
	}
	if !found {
		s.executingTools = append(s.executingTools, ExecutingTool{
			ID:     id,
			Name:   s.pendingConfirmation.Name,
			Status: ToolStatusExecuting,
		})
	}
	return true
}

// ResolvePendingWith folds an execute result into the state, keyed to the
// originating tool-call id. A result arriving after the pending
// confirmation moved on is stale and is dropped.
func (s *State) ResolvePendingWith(id string, result client.ToolResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingConfirmation == nil || s.pendingConfirmation.ID != id {
		return false
	}

	if result.ToolCallID == "" {
		result.ToolCallID = id
	}

	s.toolResults = append(s.toolResults, result)
	status := ToolStatusSuccess
	if !result.Success {
		status = ToolStatusError
	}
	for i := range s.executingTools {
		if s.executingTools[i].ID == id {
			s.executingTools[i].Status = status
		}
	}

	s.pendingConfirmation = nil
	s.currentActivity = ""
	return true
}

// ClearPending drops the pending confirmation without executing it. The
// user declining is always a valid no-op transition.
func (s *State) ClearPending(id string) {
	s.mu.Lock()
	if s.pendingConfirmation != nil && (id == "" || s.pendingConfirmation.ID == id) {
		s.pendingConfirmation = nil
	}
	s.mu.Unlock()
}

// OfferQuickReplies flags that the last assistant message reads like a
// confirmation request. Advisory only; no other transition depends on it.
func (s *State) OfferQuickReplies() {
	s.mu.Lock()
	s.offerQuickReplies = true
	s.mu.Unlock()
}

// MarkComplete records that the turn finished with a created entity
func (s *State) MarkComplete() {
	s.mu.Lock()
	s.isComplete = true
	s.mu.Unlock()
}

// Finish ends a turn: loading, streaming and activity are always cleared so
// the input is never left disabled, success or failure.
func (s *State) Finish() {
	s.mu.Lock()
	s.isLoading = false
	s.isStreaming = false
	s.currentActivity = ""
	s.mu.Unlock()
}

// RollbackTurn removes the optimistic user message of a cancelled turn and
// any tool artifacts the aborted stream produced, so a retried send does
// not duplicate history.
func (s *State) RollbackTurn(userMessageID string) {
	s.mu.Lock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == userMessageID && s.messages[i].Role == client.RoleUser {
			// Also drop the empty assistant slot streamed after it.
			s.messages = s.messages[:i]
			break
		}
	}
	s.executingTools = nil
	s.toolResults = nil
	s.pendingConfirmation = nil
	s.mu.Unlock()
}

// Clear resets the conversation to its initial value, messages included
func (s *State) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.isLoading = false
	s.isStreaming = false
	s.currentActivity = ""
	s.pendingConfirmation = nil
	s.executingTools = nil
	s.toolResults = nil
	s.confirmedToolCalls = make(map[string]struct{})
	s.isComplete = false
	s.offerQuickReplies = false
	s.mu.Unlock()
}

// RestoreMessages replaces the message history, used when loading the
// cached conversation at startup.
func (s *State) RestoreMessages(messages []Message) {
	s.mu.Lock()
	s.messages = make([]Message, len(messages))
	copy(s.messages, messages)
	s.mu.Unlock()
}

// Read-side accessors. All return copies.

// Messages returns a copy of the conversation history
func (s *State) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// WireHistory returns the history in wire shape for replay to the server
func (s *State) WireHistory() []client.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]client.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		history = append(history, client.Message{Role: msg.Role, Content: msg.Content})
	}
	return history
}

// LastAssistantContent returns the content of the final assistant message,
// or the empty string when there is none.
func (s *State) LastAssistantContent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == client.RoleAssistant {
			return s.messages[i].Content
		}
	}
	return ""
}

// IsLoading reports whether a turn or execute call is in flight
func (s *State) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// IsStreaming reports whether assistant text is currently streaming in
func (s *State) IsStreaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isStreaming
}

// CurrentActivity returns the human-readable activity line, if any
func (s *State) CurrentActivity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentActivity
}

// PendingConfirmation returns a copy of the tool call awaiting approval, or
// nil.
func (s *State) PendingConfirmation() *client.ToolCall {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pendingConfirmation == nil {
		return nil
	}
	call := *s.pendingConfirmation
	return &call
}

// ExecutingTools returns a copy of the turn's tool lifecycle records
func (s *State) ExecutingTools() []ExecutingTool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]ExecutingTool, len(s.executingTools))
	copy(tools, s.executingTools)
	return tools
}

// ToolResults returns a copy of the turn's result log
func (s *State) ToolResults() []client.ToolResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]client.ToolResult, len(s.toolResults))
	copy(results, s.toolResults)
	return results
}

// ConfirmedToolCalls returns the ids the user has approved, for replay in
// the next turn request.
func (s *State) ConfirmedToolCalls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.confirmedToolCalls))
	for id := range s.confirmedToolCalls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsComplete reports whether the turn ended with a created entity
func (s *State) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isComplete
}

// QuickRepliesOffered reports whether the heuristic flagged the last
// assistant message as a confirmation request.
func (s *State) QuickRepliesOffered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offerQuickReplies
}
