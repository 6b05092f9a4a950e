package conversation

import (
	"testing"

	"github.com/inviteflow/concierge/client"
)

func TestAppendAssistantText_ConcatenatesInOrder(t *testing.T) {
	s := NewState()
	s.AppendUserMessage("plan a dinner")
	s.PrepareForSend()
	s.BeginAssistantMessage()

	chunks := []string{"Sure", ", ", "I can ", "help", " with that."}
	for _, chunk := range chunks {
		s.AppendAssistantText(chunk)
	}

	if got := s.LastAssistantContent(); got != "Sure, I can help with that." {
		t.Fatalf("unexpected assistant content: %q", got)
	}
}

func TestFirstTextFlipsThinkingToStreaming(t *testing.T) {
	s := NewState()
	s.AppendUserMessage("hi")
	s.PrepareForSend()
	s.BeginAssistantMessage()

	if !s.IsLoading() || s.IsStreaming() {
		t.Fatalf("expected loading without streaming before first byte")
	}
	if s.CurrentActivity() == "" {
		t.Fatalf("expected a thinking activity before first byte")
	}

	s.AppendAssistantText("H")
	if !s.IsStreaming() {
		t.Fatalf("expected streaming after first byte")
	}
	if s.CurrentActivity() != "" {
		t.Fatalf("expected activity cleared once streaming, got %q", s.CurrentActivity())
	}
}

func TestPrepareForSend_ResetsTurnArtifactsButKeepsMessages(t *testing.T) {
	s := NewState()
	s.AppendUserMessage("first")
	s.StartTool(client.ToolCall{ID: "t1", Name: "listEvents"})
	s.RecordToolResult(client.ToolResult{ToolCallID: "t1", Name: "listEvents", Success: true})
	s.InstallPending(client.ToolCall{ID: "t2", Name: "createEvent"})
	s.MarkComplete()

	s.AppendUserMessage("second")
	s.PrepareForSend()

	if len(s.Messages()) != 2 {
		t.Fatalf("expected messages to persist, got %d", len(s.Messages()))
	}
	if len(s.ExecutingTools()) != 0 || len(s.ToolResults()) != 0 {
		t.Fatalf("expected tool artifacts cleared")
	}
	if s.PendingConfirmation() != nil {
		t.Fatalf("expected pending confirmation cleared")
	}
	if s.IsComplete() {
		t.Fatalf("expected completion flag cleared")
	}
	if !s.IsLoading() {
		t.Fatalf("expected loading on")
	}
}

func TestStreamingAndPendingAreMutuallyExclusive(t *testing.T) {
	s := NewState()
	s.AppendUserMessage("hi")
	s.PrepareForSend()
	s.BeginAssistantMessage()
	s.AppendAssistantText("One moment")

	if !s.IsStreaming() {
		t.Fatalf("expected streaming before pending")
	}

	s.InstallPending(client.ToolCall{ID: "t1", Name: "createEvent"})

	if s.IsStreaming() {
		t.Fatalf("streaming and pending confirmation must never coexist")
	}
	if s.IsLoading() {
		t.Fatalf("expected loading off while awaiting confirmation")
	}
	if s.PendingConfirmation() == nil {
		t.Fatalf("expected pending confirmation installed")
	}
}

func TestToolLifecycle_StartThenResult(t *testing.T) {
	s := NewState()
	s.PrepareForSend()

	s.StartTool(client.ToolCall{ID: "t1", Name: "createEvent"})
	tools := s.ExecutingTools()
	if len(tools) != 1 || tools[0].Status != ToolStatusExecuting {
		t.Fatalf("unexpected tools after start: %#v", tools)
	}
	if s.CurrentActivity() != "Creating your event" {
		t.Fatalf("unexpected activity: %q", s.CurrentActivity())
	}

	s.RecordToolResult(client.ToolResult{ToolCallID: "t1", Name: "createEvent", Success: true, Summary: "done"})
	tools = s.ExecutingTools()
	if len(tools) != 1 {
		t.Fatalf("expected exactly one tool record, got %d", len(tools))
	}
	if tools[0].Status != ToolStatusSuccess {
		t.Fatalf("expected success status, got %q", tools[0].Status)
	}
	if s.CurrentActivity() != "" {
		t.Fatalf("expected activity cleared after result")
	}
}

func TestToolLifecycle_FailureResult(t *testing.T) {
	s := NewState()
	s.PrepareForSend()
	s.StartTool(client.ToolCall{ID: "t1", Name: "inviteGuests"})
	s.RecordToolResult(client.ToolResult{ToolCallID: "t1", Name: "inviteGuests", Success: false, Error: "smtp down"})

	tools := s.ExecutingTools()
	if tools[0].Status != ToolStatusError {
		t.Fatalf("expected error status, got %q", tools[0].Status)
	}
	results := s.ToolResults()
	if len(results) != 1 || results[0].Success {
		t.Fatalf("unexpected results: %#v", results)
	}
}

func TestInstallPending_SettlesStartedTool(t *testing.T) {
	s := NewState()
	s.PrepareForSend()
	s.StartTool(client.ToolCall{ID: "t1", Name: "createEvent"})
	s.InstallPending(client.ToolCall{ID: "t1", Name: "createEvent", Arguments: map[string]interface{}{"title": "X"}})

	for _, tool := range s.ExecutingTools() {
		if tool.Status == ToolStatusExecuting {
			t.Fatalf("tool left dangling in executing state: %#v", tool)
		}
	}

	pending := s.PendingConfirmation()
	if pending == nil || pending.ID != "t1" {
		t.Fatalf("unexpected pending confirmation: %#v", pending)
	}
	if title, _ := pending.Arguments["title"].(string); title != "X" {
		t.Fatalf("expected arguments preserved, got %#v", pending.Arguments)
	}
}

func TestBeginConfirm_RejectsSecondAttemptWhileExecuting(t *testing.T) {
	s := NewState()
	s.InstallPending(client.ToolCall{ID: "t1", Name: "createEvent"})

	if !s.BeginConfirm("t1") {
		t.Fatalf("expected first confirm attempt accepted")
	}
	if s.BeginConfirm("t1") {
		t.Fatalf("confirmed call must reach the backend exactly once")
	}

	s.ResolvePendingWith("t1", client.ToolResult{ToolCallID: "t1", Success: true})
	if s.BeginConfirm("t1") {
		t.Fatalf("expected no confirm attempt after the call resolved")
	}
}

func TestResolvePendingWith_MismatchedIDIgnored(t *testing.T) {
	s := NewState()
	s.InstallPending(client.ToolCall{ID: "t1", Name: "createEvent"})

	if s.ResolvePendingWith("t9", client.ToolResult{ToolCallID: "t9", Success: true}) {
		t.Fatalf("expected mismatched id to be rejected")
	}
	if s.PendingConfirmation() == nil {
		t.Fatalf("pending confirmation must survive a mismatched result")
	}
	if len(s.ToolResults()) != 0 {
		t.Fatalf("mismatched result must not be recorded")
	}
}

func TestRollbackTurn_RemovesOptimisticMessages(t *testing.T) {
	s := NewState()
	s.AppendUserMessage("earlier question")
	s.AppendAssistantMessage("earlier answer")

	id := s.AppendUserMessage("cancelled question")
	s.PrepareForSend()
	s.BeginAssistantMessage()
	s.StartTool(client.ToolCall{ID: "t1", Name: "listEvents"})

	s.RollbackTurn(id)

	messages := s.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected rollback to the prior history, got %d messages", len(messages))
	}
	if messages[1].Content != "earlier answer" {
		t.Fatalf("unexpected surviving message: %#v", messages[1])
	}
	if len(s.ExecutingTools()) != 0 || len(s.ToolResults()) != 0 {
		t.Fatalf("expected no tool residue after rollback")
	}
}

func TestClear_ResetsEverything(t *testing.T) {
	s := NewState()
	s.AppendUserMessage("hi")
	s.PrepareForSend()
	s.InstallPending(client.ToolCall{ID: "t1", Name: "createEvent"})
	s.BeginConfirm("t1")

	s.Clear()

	if len(s.Messages()) != 0 || s.PendingConfirmation() != nil || s.IsLoading() {
		t.Fatalf("expected pristine state after clear")
	}
	if len(s.ConfirmedToolCalls()) != 0 {
		t.Fatalf("expected confirmed ids cleared")
	}
}

func TestFinish_AlwaysReenablesInput(t *testing.T) {
	s := NewState()
	s.PrepareForSend()
	s.AppendAssistantText("partial")

	s.Finish()

	if s.IsLoading() || s.IsStreaming() || s.CurrentActivity() != "" {
		t.Fatalf("expected finish to clear loading, streaming and activity")
	}
}

func TestWireHistoryMirrorsMessages(t *testing.T) {
	s := NewState()
	s.AppendUserMessage("a")
	s.AppendAssistantMessage("b")

	history := s.WireHistory()
	if len(history) != 2 {
		t.Fatalf("expected 2 wire messages, got %d", len(history))
	}
	if history[0].Role != client.RoleUser || history[0].Content != "a" {
		t.Fatalf("unexpected first wire message: %#v", history[0])
	}
	if history[1].Role != client.RoleAssistant || history[1].Content != "b" {
		t.Fatalf("unexpected second wire message: %#v", history[1])
	}
}
