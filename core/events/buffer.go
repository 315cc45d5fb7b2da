package events

// Buffer collects events emitted during a state transition so they can be
// forwarded only after the transition commits. An aborted transition drops
// the buffer, keeping subscribers from observing state that never persisted.
type Buffer struct {
	pending []Event
}

// NewBuffer returns an empty event buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Flush forwards all buffered events to the sink in emission order and clears
// the buffer. A nil sink discards the events.
func (b *Buffer) Flush(sink Emitter) {
	if b == nil {
		return
	}
	pending := b.pending
	b.pending = nil
	if sink == nil {
		return
	}
	for _, evt := range pending {
		sink.Emit(evt)
	}
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.pending)
}
