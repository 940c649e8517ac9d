package queue

import "sync"

// Table identifies which queue table a change touched.
type Table string

const (
	TableAnalysisRequests Table = "analysis_requests"
	TableExpenseSaves     Table = "expense_saves"
)

// Op identifies the kind of mutation a change represents.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one mutation to a queue table. Every store write path
// publishes exactly one Change, which is what lets live views (pending
// counters, the daemon's drain trigger) track the queue without re-polling.
type Change struct {
	Table  Table
	Op     Op
	ID     int64
	UserID string
	Status Status
}

// ChangeHub fans store mutations out to subscribers.
type ChangeHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Change
}

// NewChangeHub constructs an empty hub.
func NewChangeHub() *ChangeHub {
	return &ChangeHub{subs: make(map[int]chan Change)}
}

const subscriberBuffer = 128

// Subscribe registers a new subscriber and returns its channel together with
// a cancel function. The channel is buffered; a subscriber that falls more
// than subscriberBuffer events behind misses the overflow and should
// re-query the store to resynchronize.
func (h *ChangeHub) Subscribe() (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Change, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Publish delivers a change to every subscriber without blocking.
func (h *ChangeHub) Publish(change Change) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
