package events

import (
	"sync"
)

type Message struct {
	Name    string
	Payload any
}

// Hub broadcasts emissions to every live subscriber. A subscriber that falls
// behind loses messages instead of stalling the download.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Message]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{subs: make(map[chan Message]struct{}), buffer: buffer}
}

func (h *Hub) Subscribe() chan Message {
	ch := make(chan Message, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Emit(name string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- Message{Name: name, Payload: payload}:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
