package session

import (
	"sync"

	"github.com/maauso/video-splitter/internal/run"
)

// EventType identifies a session event.
type EventType string

const (
	// EventEngine is emitted when engine initialization finishes, either way.
	EventEngine EventType = "engine"
	// EventError is emitted when the error state is set.
	EventError EventType = "error"
)

// Event is a notification delivered to session subscribers. Run events keep
// their run.EventType as Type.
type Event struct {
	Type      EventType
	Run       *run.Event
	Error     *ErrorState
	Readiness Readiness
}

func runEvent(ev run.Event) Event {
	return Event{Type: EventType(ev.Type), Run: &ev}
}

const subscriberBuffer = 64

// Hub fans session events out to subscribers in publication order. A
// subscriber that falls behind by more than its buffer is disconnected.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber. The returned channel is closed when
// the subscriber is cancelled, falls behind, or the hub closes.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() { h.remove(ch) }
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}
