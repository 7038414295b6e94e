package server

import (
	"sync"
)

// Hub wakes long-polls waiting on a channel when a record is appended to it.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan struct{}]struct{}),
	}
}

// Subscribe registers a waiter. The returned func must be called once the
// waiter is done.
func (h *Hub) Subscribe(channel string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[chan struct{}]struct{})
	}
	h.subs[channel][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[channel], ch)
		if len(h.subs[channel]) == 0 {
			delete(h.subs, channel)
		}
	}
}

func (h *Hub) Notify(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[channel] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Waiting is the number of subscribed waiters across all channels.
func (h *Hub) Waiting() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
