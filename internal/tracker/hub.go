// Package tracker streams visit-state growth to websocket clients.
package tracker

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"placecraft/internal/logger"
	"placecraft/internal/placement"
)

// subscriberBuffer is how many events a slow client may lag behind before
// further events are dropped for it.
const subscriberBuffer = 64

// Event is the wire form of a placement.VisitChange.
type Event struct {
	ID        string    `json:"id"`
	Placement string    `json:"placement"`
	Added     []string  `json:"added"`
	Previous  []string  `json:"previous"`
	Visit     []string  `json:"visit"`
	At        time.Time `json:"at"`
}

func EventFromChange(c placement.VisitChange) Event {
	return Event{
		ID:        c.ID.String(),
		Placement: c.Placement.Name(),
		Added:     flags(c.Added),
		Previous:  flags(c.Previous),
		Visit:     flags(c.Current()),
		At:        c.At,
	}
}

func flags(v placement.VisitState) []string {
	out := v.Flags()
	if out == nil {
		return []string{}
	}
	return out
}

type Option func(*Hub)

func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Hub) { h.log = log }
}

// Hub fans events out to subscribers. Sends never block: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan Event
	nextID      uint64
	closed      bool
	log         logrus.FieldLogger
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{subscribers: make(map[uint64]chan Event)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register returns a subscriber id and its event channel. The channel is
// closed by Unregister or Close.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return h.nextID, ch
	}
	h.subscribers[h.nextID] = ch
	return h.nextID, ch
}

func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

func (h *Hub) Broadcast(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- e:
		default:
			logger.Or(h.log).WithFields(logrus.Fields{
				"subscriber": id,
				"placement":  e.Placement,
			}).Debug("subscriber lagging, event dropped")
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Attach feeds the process-wide visit channel into the hub. The returned func
// detaches it.
func (h *Hub) Attach() func() {
	return placement.Subscribe(func(c placement.VisitChange) {
		h.Broadcast(EventFromChange(c))
	})
}

// Close disconnects every subscriber. Later registrations get a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
