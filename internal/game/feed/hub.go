package feed

import (
	"sync"
	"time"
)

// DefaultBacklog is the number of recent messages a new subscriber receives.
const DefaultBacklog = 50

// Hub keeps the most recent messages and broadcasts new ones to subscribers.
//
// Invariant: recent holds at most limit messages in publication order.
type Hub struct {
	mu          sync.Mutex
	limit       int
	recent      []Message
	subscribers map[chan<- Message]string
}

// NewHub creates a Hub retaining limit messages.
//
// Precondition: limit > 0.
// Postcondition: Returns a non-nil *Hub with no subscribers.
func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = DefaultBacklog
	}
	return &Hub{
		limit:       limit,
		subscribers: make(map[chan<- Message]string),
	}
}

// Hydrate replaces the backlog with msgs, oldest first. It is used once at
// startup with messages loaded from storage.
func (h *Hub) Hydrate(msgs []Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(msgs) > h.limit {
		msgs = msgs[len(msgs)-h.limit:]
	}
	h.recent = append([]Message(nil), msgs...)
}

// Subscribe registers ch for viewer and returns the backlog visible to
// viewer, oldest first. If ch is full when a message is published, the
// message is dropped for that subscriber (non-blocking).
//
// Precondition: ch must not be nil.
func (h *Hub) Subscribe(viewer string, ch chan<- Message) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[ch] = viewer
	return visible(h.recent, viewer)
}

// Unsubscribe removes ch from the subscriber list.
func (h *Hub) Unsubscribe(ch chan<- Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, ch)
}

// Publish appends m to the backlog and delivers it to every subscriber
// allowed to see it.
//
// Postcondition: A whisper reaches only its sender and recipient.
func (h *Hub) Publish(m Message) {
	h.mu.Lock()
	h.recent = append(h.recent, m)
	if over := len(h.recent) - h.limit; over > 0 {
		h.recent = append([]Message(nil), h.recent[over:]...)
	}
	targets := make([]chan<- Message, 0, len(h.subscribers))
	for ch, viewer := range h.subscribers {
		if m.VisibleTo(viewer) {
			targets = append(targets, ch)
		}
	}
	h.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- m:
		default:
		}
	}
}

// Recent returns the backlog visible to viewer, oldest first.
func (h *Hub) Recent(viewer string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return visible(h.recent, viewer)
}

// PurgeBefore drops backlog messages created before cutoff and reports how
// many were removed. A zero cutoff removes everything.
func (h *Hub) PurgeBefore(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.recent[:0:0]
	for _, m := range h.recent {
		if !cutoff.IsZero() && !m.CreatedAt.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	removed := len(h.recent) - len(kept)
	h.recent = kept
	return removed
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func visible(msgs []Message, viewer string) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.VisibleTo(viewer) {
			out = append(out, m)
		}
	}
	return out
}
