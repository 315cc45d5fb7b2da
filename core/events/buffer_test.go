package events

import "testing"

type testEvent string

func (e testEvent) EventType() string { return string(e) }

type captureEmitter struct {
	seen []string
}

func (c *captureEmitter) Emit(evt Event) {
	c.seen = append(c.seen, evt.EventType())
}

func TestBufferFlushOrder(t *testing.T) {
	buf := NewBuffer()
	buf.Emit(testEvent("first"))
	buf.Emit(testEvent("second"))
	buf.Emit(nil)
	if buf.Len() != 2 {
		t.Fatalf("expected 2 buffered events, got %d", buf.Len())
	}

	sink := &captureEmitter{}
	buf.Flush(sink)
	if len(sink.seen) != 2 || sink.seen[0] != "first" || sink.seen[1] != "second" {
		t.Fatalf("flush order mismatch: %v", sink.seen)
	}
	if buf.Len() != 0 {
		t.Fatalf("flush must clear the buffer, got %d", buf.Len())
	}

	// A second flush forwards nothing.
	buf.Flush(sink)
	if len(sink.seen) != 2 {
		t.Fatalf("second flush must be a no-op, got %v", sink.seen)
	}
}

func TestBufferFlushNilSink(t *testing.T) {
	buf := NewBuffer()
	buf.Emit(testEvent("dropped"))
	buf.Flush(nil)
	if buf.Len() != 0 {
		t.Fatalf("flush with nil sink must still clear the buffer")
	}
}
