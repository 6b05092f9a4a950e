package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Event is a decoded protocol event from a turn stream. The set of
// implementations is closed: TextEvent, ToolStartEvent, ToolPendingEvent,
// ToolResultEvent, DoneEvent and ErrorEvent. Consumers switch over the
// concrete type instead of comparing event-name strings.
type Event interface {
	eventName() string
}

// TextEvent carries a chunk of assistant message content
type TextEvent struct {
	Content string `json:"content"`
}

// ToolStartEvent announces a tool the server started executing
type ToolStartEvent ToolCall

// ToolPendingEvent is the confirmation boundary: a tool call paused by the
// server awaiting explicit user approval
type ToolPendingEvent ToolCall

// ToolResultEvent carries the terminal outcome of a server-executed tool
type ToolResultEvent struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Success bool            `json:"success"`
	Summary string          `json:"summary"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DoneEvent is the terminal event of a turn
type DoneEvent struct {
	Message              string         `json:"message"`
	ToolCalls            []ToolCall     `json:"toolCalls"`
	ToolResults          []ToolResult   `json:"toolResults"`
	PendingConfirmations []ToolCall     `json:"pendingConfirmations"`
	IsComplete           bool           `json:"isComplete"`
	EntityID             string         `json:"entityId,omitempty"`
	RateLimit            *RateLimitInfo `json:"rateLimit,omitempty"`
}

// ErrorEvent signals a turn-level failure reported by the server
type ErrorEvent struct {
	Message string `json:"message"`
}

func (TextEvent) eventName() string        { return "text" }
func (ToolStartEvent) eventName() string   { return "tool_start" }
func (ToolPendingEvent) eventName() string { return "tool_pending" }
func (ToolResultEvent) eventName() string  { return "tool_result" }
func (DoneEvent) eventName() string        { return "done" }
func (ErrorEvent) eventName() string       { return "error" }

// ProtocolError reports a stream that violated the wire protocol. It is
// fatal for the current turn.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// Decoder turns an incrementally-delivered byte stream into typed events.
//
// The framing is line-oriented: a line beginning with "event: " names the
// events that follow, a line beginning with "data: " carries the JSON payload
// for the current event name, and blank lines are ignored. Only complete
// lines are ever parsed; a partial line at a buffer boundary is held until
// the next chunk delivers the rest. A partial line left dangling at EOF is a
// truncated trailing chunk and is dropped silently rather than parsed.
type Decoder struct {
	r     *bufio.Reader
	event string
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next decoded event. It returns io.EOF when the stream
// ends cleanly (including a truncated trailing line), a *ProtocolError for
// malformed payloads or unknown event names, and the underlying read error
// for transport failures.
func (d *Decoder) Next() (Event, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// A cut line at EOF is an incomplete chunk, never parsed.
				return nil, io.EOF
			}
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		if name, ok := strings.CutPrefix(line, "event: "); ok {
			d.event = name
			continue
		}

		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			// Lines outside the event:/data: framing carry nothing.
			continue
		}

		if d.event == "" {
			return nil, &ProtocolError{Reason: "data line before any event name"}
		}

		event, err := decodePayload(d.event, []byte(data))
		if err != nil {
			return nil, err
		}
		return event, nil
	}
}

func decodePayload(name string, data []byte) (Event, error) {
	unmarshal := func(v interface{}) error {
		if err := json.Unmarshal(data, v); err != nil {
			return &ProtocolError{Reason: fmt.Sprintf("malformed %s payload: %v", name, err)}
		}
		return nil
	}

	var event Event
	switch name {
	case "text":
		var e TextEvent
		if err := unmarshal(&e); err != nil {
			return nil, err
		}
		event = e
	case "tool_start":
		var e ToolStartEvent
		if err := unmarshal(&e); err != nil {
			return nil, err
		}
		event = e
	case "tool_pending":
		var e ToolPendingEvent
		if err := unmarshal(&e); err != nil {
			return nil, err
		}
		event = e
	case "tool_result":
		var e ToolResultEvent
		if err := unmarshal(&e); err != nil {
			return nil, err
		}
		event = e
	case "done":
		var e DoneEvent
		if err := unmarshal(&e); err != nil {
			return nil, err
		}
		event = e
	case "error":
		var e ErrorEvent
		if err := unmarshal(&e); err != nil {
			return nil, err
		}
		event = e
	default:
		return nil, &ProtocolError{Reason: fmt.Sprintf("unknown event %q", name)}
	}
	return event, nil
}
