package syncer

import (
	"context"
	"sync"

	"pennysync/internal/network"
	"pennysync/internal/queue"
)

// Snapshot is one consistent read of the UI-facing signals.
type Snapshot struct {
	PendingCount int
	IsSyncing    bool
	IsOnline     bool
}

// Counters keeps the pending-count badge live by recomputing from store
// change events rather than polling. Failed rows are invisible here: they
// are neither pending nor syncing, and require a dedicated failed-status
// read to discover.
type Counters struct {
	store   *queue.Store
	monitor *network.Monitor
	orch    *Orchestrator
	userID  string

	mu      sync.Mutex
	pending int
	subs    map[int]chan Snapshot
	nextSub int
	cancel  func()
	done    chan struct{}
	running bool
}

func newCounters(store *queue.Store, monitor *network.Monitor, orch *Orchestrator, userID string) *Counters {
	return &Counters{
		store:   store,
		monitor: monitor,
		orch:    orch,
		userID:  userID,
		subs:    make(map[int]chan Snapshot),
	}
}

// Start computes the initial count and begins tracking store changes.
func (c *Counters) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	count, err := c.store.PendingCount(ctx, c.userID)
	if err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return err
	}

	changes, cancelChanges := c.store.Changes().Subscribe()
	done := make(chan struct{})

	c.mu.Lock()
	c.pending = count
	c.cancel = cancelChanges
	c.done = done
	c.mu.Unlock()

	go c.track(ctx, changes, done)
	return nil
}

// Stop ends tracking and closes all subscriber channels.
func (c *Counters) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()
}

// PendingCount returns the live count of pending rows for the user across
// both tables.
func (c *Counters) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// IsSyncing reports whether a drain is currently processing rows.
func (c *Counters) IsSyncing() bool {
	return c.orch.IsSyncing()
}

// IsOnline reports the network monitor's current state.
func (c *Counters) IsOnline() bool {
	return c.monitor.Online()
}

// Snapshot returns all three signals in one read.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		PendingCount: c.PendingCount(),
		IsSyncing:    c.IsSyncing(),
		IsOnline:     c.IsOnline(),
	}
}

// Subscribe delivers a Snapshot after every store change affecting the
// user. The channel is buffered; a slow consumer misses intermediate
// snapshots but always receives a fresh one afterwards.
func (c *Counters) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Snapshot, 16)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (c *Counters) track(ctx context.Context, changes <-chan queue.Change, done chan struct{}) {
	defer close(done)
	for change := range changes {
		if change.UserID != "" && change.UserID != c.userID {
			continue
		}
		count, err := c.store.PendingCount(ctx, c.userID)
		if err != nil {
			continue
		}

		c.mu.Lock()
		c.pending = count
		subs := make([]chan Snapshot, 0, len(c.subs))
		for _, ch := range c.subs {
			subs = append(subs, ch)
		}
		c.mu.Unlock()

		snapshot := c.Snapshot()
		for _, ch := range subs {
			// Drop the stale snapshot if the consumer has not kept up.
			select {
			case ch <- snapshot:
			default:
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- snapshot:
				default:
				}
			}
		}
	}
}
