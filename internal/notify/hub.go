package notify

import (
	"sync"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Hub fans notifications out to in-process subscribers. Slow subscribers
// lose events rather than block the reconciler.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan transponder.Notification
	next int
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan transponder.Notification)}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. The channel is closed on cancel.
func (h *Hub) Subscribe() (<-chan transponder.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan transponder.Notification, 16)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *Hub) broadcast(n transponder.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
			// Drop for slow consumers.
		}
	}
}
