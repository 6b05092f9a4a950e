package client

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader delivers its payload in fixed-size chunks so tests can force
// lines to split at arbitrary buffer boundaries.
type chunkReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.size
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func drain(t *testing.T, dec *Decoder) []Event {
	t.Helper()
	var events []Event
	for {
		event, err := dec.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		events = append(events, event)
	}
}

func TestDecoder_TextThenDone(t *testing.T) {
	stream := "event: text\n" +
		"data: {\"content\":\"Hi\"}\n" +
		"event: text\n" +
		"data: {\"content\":\" there\"}\n" +
		"event: done\n" +
		"data: {\"message\":\"ok\",\"toolCalls\":[],\"toolResults\":[],\"pendingConfirmations\":[],\"isComplete\":false}\n"

	events := drain(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	if text, ok := events[0].(TextEvent); !ok || text.Content != "Hi" {
		t.Fatalf("unexpected first event: %#v", events[0])
	}
	if text, ok := events[1].(TextEvent); !ok || text.Content != " there" {
		t.Fatalf("unexpected second event: %#v", events[1])
	}
	done, ok := events[2].(DoneEvent)
	if !ok {
		t.Fatalf("expected DoneEvent, got %#v", events[2])
	}
	if done.IsComplete {
		t.Fatalf("expected isComplete=false")
	}
}

func TestDecoder_RechunkingYieldsIdenticalEvents(t *testing.T) {
	stream := "event: text\n" +
		"data: {\"content\":\"Sounds \"}\n" +
		"event: tool_start\n" +
		"data: {\"id\":\"t1\",\"name\":\"createEvent\",\"arguments\":{\"title\":\"Demo\"}}\n" +
		"event: tool_result\n" +
		"data: {\"id\":\"t1\",\"name\":\"createEvent\",\"success\":true,\"summary\":\"Created\"}\n" +
		"event: done\n" +
		"data: {\"message\":\"ok\",\"toolCalls\":[],\"toolResults\":[],\"pendingConfirmations\":[],\"isComplete\":false}\n"

	reference := drain(t, NewDecoder(strings.NewReader(stream)))

	for _, size := range []int{1, 2, 3, 5, 7, 16, 64, 1024} {
		events := drain(t, NewDecoder(&chunkReader{data: []byte(stream), size: size}))
		if len(events) != len(reference) {
			t.Fatalf("chunk size %d: expected %d events, got %d", size, len(reference), len(events))
		}
		for i := range events {
			if events[i].eventName() != reference[i].eventName() {
				t.Fatalf("chunk size %d: event %d is %q, want %q",
					size, i, events[i].eventName(), reference[i].eventName())
			}
		}
	}
}

func TestDecoder_ToolPendingPayload(t *testing.T) {
	stream := "event: tool_pending\n" +
		"data: {\"id\":\"t1\",\"name\":\"createEvent\",\"arguments\":{\"title\":\"X\"}}\n"

	events := drain(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	pending, ok := events[0].(ToolPendingEvent)
	if !ok {
		t.Fatalf("expected ToolPendingEvent, got %#v", events[0])
	}
	if pending.ID != "t1" || pending.Name != "createEvent" {
		t.Fatalf("unexpected payload: %#v", pending)
	}
	if title, _ := pending.Arguments["title"].(string); title != "X" {
		t.Fatalf("expected arguments title X, got %v", pending.Arguments["title"])
	}
}

func TestDecoder_TruncatedTrailingChunkIsSilent(t *testing.T) {
	stream := "event: text\n" +
		"data: {\"content\":\"Hi\"}\n" +
		"event: done\n" +
		"data: {\"message\":\"ok\",\"toolC"

	events := drain(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 1 {
		t.Fatalf("expected only the complete text event, got %d events", len(events))
	}
}

func TestDecoder_MalformedCompleteLineIsFatal(t *testing.T) {
	stream := "event: text\n" +
		"data: {\"content\":\n"

	dec := NewDecoder(strings.NewReader(stream))
	_, err := dec.Next()
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestDecoder_UnknownEventNameIsFatal(t *testing.T) {
	stream := "event: shrug\n" +
		"data: {}\n"

	dec := NewDecoder(strings.NewReader(stream))
	_, err := dec.Next()
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestDecoder_DataBeforeEventNameIsFatal(t *testing.T) {
	dec := NewDecoder(strings.NewReader("data: {\"content\":\"Hi\"}\n"))
	_, err := dec.Next()
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestDecoder_BlankLinesAndCRLFIgnored(t *testing.T) {
	stream := "event: text\r\n" +
		"\r\n" +
		"data: {\"content\":\"Hi\"}\r\n" +
		"\n"

	events := drain(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if text, ok := events[0].(TextEvent); !ok || text.Content != "Hi" {
		t.Fatalf("unexpected event: %#v", events[0])
	}
}

func TestDecoder_EventNameAppliesToSubsequentData(t *testing.T) {
	stream := "event: text\n" +
		"data: {\"content\":\"a\"}\n" +
		"data: {\"content\":\"b\"}\n"

	events := drain(t, NewDecoder(strings.NewReader(stream)))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for i, want := range []string{"a", "b"} {
		if text, ok := events[i].(TextEvent); !ok || text.Content != want {
			t.Fatalf("event %d: got %#v, want content %q", i, events[i], want)
		}
	}
}
