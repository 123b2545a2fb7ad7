// Package connectivity reports whether the origin is reachable and
// announces transitions between online and offline.
package connectivity

import (
	"sync"
)

// Source is the injectable connectivity signal consumed by the sync queue
// and its scheduler.
type Source interface {
	// Online reports the last known state.
	Online() bool
	// Changes delivers the new state on every transition. The channel is
	// shared; only one consumer should read from it.
	Changes() <-chan bool
}

// Static is a manually driven Source. Tests flip it with Set.
type Static struct {
	mu      sync.Mutex
	online  bool
	changes chan bool
}

// NewStatic returns a Source fixed at online until Set says otherwise.
func NewStatic(online bool) *Static {
	return &Static{online: online, changes: make(chan bool, 8)}
}

// Online reports the current state.
func (s *Static) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Changes returns the transition channel.
func (s *Static) Changes() <-chan bool {
	return s.changes
}

// Set changes the state, emitting a transition when it differs.
func (s *Static) Set(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.online == online {
		return
	}
	s.online = online
	notify(s.changes, online)
}

// notify emits without blocking; a full channel drops the oldest value so
// consumers always see the latest state.
func notify(ch chan bool, online bool) {
	for {
		select {
		case ch <- online:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
