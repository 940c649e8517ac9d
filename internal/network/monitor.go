package network

import (
	"context"
	"log/slog"
	"sync"

	"pennysync/internal/logging"
)

// Source reports platform connectivity. Watch returns the current state and
// a channel of subsequent states; the channel closes when the source stops.
// Sources report raw platform signal only, no reachability probing.
type Source interface {
	Watch(ctx context.Context) (bool, <-chan bool, error)
}

// Monitor tracks a single connectivity boolean and fans transitions out to
// subscribers. No debouncing: a flapping link produces flapping transitions,
// each of which may trigger a drain attempt downstream. False positives only
// cost a failed remote call.
type Monitor struct {
	logger *slog.Logger
	source Source

	mu      sync.Mutex
	online  bool
	subs    map[int]chan bool
	nextSub int
	quit    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// NewMonitor creates a monitor over the given source.
func NewMonitor(logger *slog.Logger, source Source) *Monitor {
	return &Monitor{
		logger: logging.NewComponentLogger(logger, "network-monitor"),
		source: source,
		subs:   make(map[int]chan bool),
	}
}

// Start reads the initial state from the source and begins watching for
// transitions.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	initial, events, err := m.source.Watch(ctx)
	if err != nil {
		return err
	}

	m.online = initial
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	m.wg.Add(1)
	go m.watchLoop(events, quit)

	m.logger.Info("network monitor started",
		logging.String(logging.FieldEventType, "network_monitor_started"),
		logging.Bool("online", initial),
	)
	return nil
}

// Stop ends watching and closes all subscriber channels.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.quit)
	m.quit = nil
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	m.mu.Unlock()

	m.logger.Info("network monitor stopped",
		logging.String(logging.FieldEventType, "network_monitor_stopped"),
	)
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers for transition events. Each value sent is the new
// state after a transition; same-state platform events are suppressed.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan bool, 16)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (m *Monitor) watchLoop(events <-chan bool, quit <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-quit:
			return
		case state, ok := <-events:
			if !ok {
				return
			}
			m.transition(state)
		}
	}
}

func (m *Monitor) transition(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]chan bool, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed",
		logging.String(logging.FieldEventType, "connectivity_changed"),
		logging.Bool("online", online),
	)

	for _, ch := range subs {
		select {
		case ch <- online:
		default:
		}
	}
}
