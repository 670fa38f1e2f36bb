package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tally-books/tally/internal/domain"
	"github.com/tally-books/tally/internal/infra/observability"
)

// Kind says what a commit did to the ledger.
type Kind string

const (
	KindRecorded Kind = "recorded"
	KindDeleted  Kind = "deleted"
)

// Commit is published after a ledger effect has been committed.
type Commit struct {
	ID          uuid.UUID          `json:"id"`
	Kind        Kind               `json:"kind"`
	Transaction domain.Transaction `json:"transaction"`
	At          time.Time          `json:"at"`
}

// Hub fans commit notifications out to subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Commit
	next   int
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{subs: make(map[int]chan Commit), buffer: buffer}
}

// Subscribe registers a subscriber. Call cancel to unregister; the channel
// is closed afterwards.
func (h *Hub) Subscribe() (<-chan Commit, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Commit, h.buffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers c to every subscriber that has room.
func (h *Hub) Publish(c Commit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- c:
		default:
			observability.HubDropped.Inc()
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
