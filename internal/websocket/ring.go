package websocket

import (
	"encoding/json"
	"strings"
	"sync"
)

// EventRingBuffer maintains a fixed-size window of recent events.
type EventRingBuffer struct {
	events []Event
	head   int // next write position
	tail   int // oldest event
	size   int
	count  int
	mutex  sync.RWMutex
	full   bool
}

// DefaultRingSize is used when NewEventRingBuffer is given a non-positive size.
const DefaultRingSize = 4096

func NewEventRingBuffer(size int) *EventRingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &EventRingBuffer{
		events: make([]Event, size),
		size:   size,
	}
}

// Add stores event, overwriting the oldest entry once the buffer is full.
func (rb *EventRingBuffer) Add(event Event) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()

	rb.events[rb.head] = event
	rb.head = (rb.head + 1) % rb.size

	if rb.full {
		rb.tail = (rb.tail + 1) % rb.size
		return
	}
	rb.count++
	if rb.head == rb.tail {
		rb.full = true
	}
}

// All returns every buffered event, oldest first.
func (rb *EventRingBuffer) All() []Event {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return rb.lastLocked(rb.count)
}

// Tail returns up to the last n events, oldest first.
func (rb *EventRingBuffer) Tail(n int) []Event {
	if n <= 0 {
		return []Event{}
	}
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return rb.lastLocked(n)
}

func (rb *EventRingBuffer) lastLocked(n int) []Event {
	if n > rb.count {
		n = rb.count
	}
	out := make([]Event, n)
	if n == 0 {
		return out
	}
	start := (rb.head - n + rb.size) % rb.size
	if start < rb.head {
		copy(out, rb.events[start:rb.head])
		return out
	}
	first := copy(out, rb.events[start:])
	copy(out[first:], rb.events[:rb.head])
	return out
}

func (rb *EventRingBuffer) Count() int {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return rb.count
}

// encodeNDJSON encodes events one per line. When maxBytes is positive the
// newest events that fit are kept, in chronological order.
func encodeNDJSON(events []Event, maxBytes int) ([]byte, int) {
	encoded := make([][]byte, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		encoded = append(encoded, data)
	}

	start := 0
	if maxBytes > 0 {
		budget := maxBytes
		start = len(encoded)
		for i := len(encoded) - 1; i >= 0; i-- {
			cost := len(encoded[i]) + 1
			if cost > budget {
				break
			}
			budget -= cost
			start = i
		}
	}

	var sb strings.Builder
	for _, data := range encoded[start:] {
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), len(encoded) - start
}
