package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/inviteflow/concierge/client"
)

// Confirm executes the pending tool call the user approved via the
// dedicated non-streaming endpoint and folds the result back into the
// state. Whatever happens, the pending confirmation is resolved and loading
// is cleared; a failed execution leaves the conversation usable.
func (c *Controller) Confirm(ctx context.Context) error {
	pending := c.state.PendingConfirmation()
	if pending == nil {
		return fmt.Errorf("no pending confirmation")
	}
	if !c.state.BeginConfirm(pending.ID) {
		return fmt.Errorf("confirmation already being handled")
	}

	defer c.state.Finish()
	defer c.persist()
	c.resetHandoff()

	result, err := c.backend.Execute(ctx, &client.ExecuteRequest{
		ToolName:      pending.Name,
		ToolArguments: pending.Arguments,
	})
	if err != nil {
		c.state.ClearPending(pending.ID)
		kind := client.ClassifyFailure(err.Error())
		return &TurnError{Notice: client.FailureNotice(kind), Cause: err}
	}

	// Results are keyed to the originating tool-call id. If the pending
	// confirmation moved on while the call was in flight, the result is
	// stale and is dropped rather than applied.
	if !c.state.ResolvePendingWith(pending.ID, *result) {
		return nil
	}

	if !result.Success {
		notice := result.Error
		if notice == "" {
			notice = client.FailureNotice(client.FailureGeneric)
		}
		return &TurnError{Notice: notice, Cause: fmt.Errorf("tool %s failed: %s", pending.Name, result.Error)}
	}

	if entityID := result.EntityID(); entityID != "" && impliesCreation(pending.Name) {
		summary := result.Summary
		if summary == "" {
			summary = "Done! Your event is ready."
		}
		c.state.AppendAssistantMessage(summary)
		c.state.MarkComplete()
		c.scheduleHandoff(entityID)
	}

	return nil
}

// CancelPending declines the pending confirmation without calling the
// backend. Always a valid no-op transition.
func (c *Controller) CancelPending() {
	pending := c.state.PendingConfirmation()
	if pending == nil {
		return
	}
	c.state.ClearPending(pending.ID)
	c.state.Finish()
	c.persist()
}

func impliesCreation(toolName string) bool {
	return strings.Contains(strings.ToLower(toolName), "create")
}
