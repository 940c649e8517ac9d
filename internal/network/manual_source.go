package network

import (
	"context"
	"sync"
)

// ManualSource is a Source driven by explicit Set calls. Tests and
// environments without netlink access use it.
type ManualSource struct {
	mu      sync.Mutex
	online  bool
	events  chan bool
	watched bool
}

// NewManualSource creates a manual source starting in the given state.
func NewManualSource(online bool) *ManualSource {
	return &ManualSource{online: online, events: make(chan bool, 16)}
}

// Watch implements Source.
func (s *ManualSource) Watch(ctx context.Context) (bool, <-chan bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched = true
	return s.online, s.events, nil
}

// Set records a new state and emits it to the watcher.
func (s *ManualSource) Set(online bool) {
	s.mu.Lock()
	s.online = online
	watched := s.watched
	s.mu.Unlock()

	if !watched {
		return
	}
	select {
	case s.events <- online:
	default:
	}
}
