package client

import (
	"encoding/json"
)

// Role represents the role of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the wire shape of a conversation message as replayed to the
// assistant backend. Only role and content travel; local metadata stays local.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolCall represents a backend action the assistant proposes to run
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult is the terminal record of a tool's outcome
type ToolResult struct {
	ToolCallID string          `json:"toolCallId"`
	Name       string          `json:"name"`
	Success    bool            `json:"success"`
	Summary    string          `json:"summary"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// EntityID extracts a created-entity identifier from the result data, if the
// backend included one. Creation tools report the new id under "eventId" or
// a generic "id" key.
func (r *ToolResult) EntityID() string {
	if len(r.Data) == 0 {
		return ""
	}

	var data map[string]interface{}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return ""
	}

	for _, key := range []string{"eventId", "entityId", "id"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// TurnRequest is the body of a streaming turn request
type TurnRequest struct {
	Messages           []Message `json:"messages"`
	UserMessage        string    `json:"userMessage"`
	ConfirmedToolCalls []string  `json:"confirmedToolCalls"`
}

// ExecuteRequest is the body of a dedicated tool execution request
type ExecuteRequest struct {
	ToolName      string                 `json:"toolName"`
	ToolArguments map[string]interface{} `json:"toolArguments"`
}

// RateLimitInfo is the quota snapshot embedded in a turn's terminal event
type RateLimitInfo struct {
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	IsAdmin   bool   `json:"isAdmin"`
	ResetEta  string `json:"resetEta,omitempty"`
}

// UsageSnapshot is the response of the read-only usage query
type UsageSnapshot struct {
	PromptsUsed      int       `json:"promptsUsed"`
	DailyLimit       int       `json:"dailyLimit"`
	PromptsRemaining int       `json:"promptsRemaining"`
	IsAdmin          bool      `json:"isAdmin"`
	Status           string    `json:"status"` // "normal", "warning", "critical", "exceeded"
	PercentageUsed   float64   `json:"percentageUsed"`
	TimeUntilReset   *ResetEta `json:"timeUntilReset,omitempty"`
}

// ResetEta carries a pre-formatted time-until-reset for display
type ResetEta struct {
	Formatted string `json:"formatted"`
}

// ErrorBody is the JSON error shape of non-2xx responses
type ErrorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// DisplayMessage returns whichever of the two fields the server filled in
func (e *ErrorBody) DisplayMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
