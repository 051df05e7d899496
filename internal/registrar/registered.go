package registrar

import (
	"sync"

	"github.com/sharath018/campus-events-backend/internal/portal"
)

// RegisteredSet caches the events the user is registered for. Entries
// added after a local success are provisional until the next refresh
// overwrites the set with the backend's list.
type RegisteredSet struct {
	mu      sync.RWMutex
	entries map[string]registeredEntry
	order   []string
}

type registeredEntry struct {
	event       portal.Event
	provisional bool
}

func NewRegisteredSet() *RegisteredSet {
	return &RegisteredSet{entries: make(map[string]registeredEntry)}
}

func (s *RegisteredSet) Contains(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[eventID]
	return ok
}

func (s *RegisteredSet) IsProvisional(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[eventID].provisional
}

// AddProvisional appends e unless it is already present.
func (s *RegisteredSet) AddProvisional(e portal.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.ID]; ok {
		return false
	}
	s.entries[e.ID] = registeredEntry{event: e, provisional: true}
	s.order = append(s.order, e.ID)
	return true
}

// Reconcile replaces the whole set with authoritative data.
func (s *RegisteredSet) Reconcile(events []portal.Event) {
	entries := make(map[string]registeredEntry, len(events))
	order := make([]string, 0, len(events))
	for _, e := range events {
		if _, dup := entries[e.ID]; dup {
			continue
		}
		entries[e.ID] = registeredEntry{event: e}
		order = append(order, e.ID)
	}
	s.mu.Lock()
	s.entries = entries
	s.order = order
	s.mu.Unlock()
}

func (s *RegisteredSet) Events() []portal.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portal.Event, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].event)
	}
	return out
}

func (s *RegisteredSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
