// Package store holds the canonical incident collection currently served.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
)

// Snapshot is one immutable version of the canonical collection.
// Callers must treat Incidents as read-only.
type Snapshot struct {
	Version     uint64            `json:"version"`
	Incidents   []domain.Incident `json:"-"`
	LastUpdated *time.Time        `json:"lastUpdated,omitempty"`
	LoadedAt    time.Time         `json:"loadedAt"`
	Source      string            `json:"source,omitempty"`
	Report      domain.Report     `json:"report"`
}

// Len returns the number of incidents in the snapshot.
func (s Snapshot) Len() int { return len(s.Incidents) }

// Listener is notified after each replacement.
type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Store swaps whole snapshots atomically so readers never observe a partial
// update. Replace is expected to have a single caller at a time.
type Store struct {
	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	nextID    int
	listeners []subscription
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Current returns the latest snapshot, or the zero snapshot before the first
// replacement.
func (s *Store) Current() Snapshot {
	if snap := s.current.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

// Loaded reports whether a snapshot has been stored.
func (s *Store) Loaded() bool {
	return s.current.Load() != nil
}

// Replace installs next as the current snapshot with the following version
// number and then notifies listeners in subscription order. The incident
// slice is copied so later changes by the caller are not visible to readers.
func (s *Store) Replace(next Snapshot) Snapshot {
	next.Incidents = append([]domain.Incident(nil), next.Incidents...)

	s.mu.Lock()
	if prev := s.current.Load(); prev != nil {
		next.Version = prev.Version + 1
	} else {
		next.Version = 1
	}
	s.current.Store(&next)
	listeners := append([]subscription(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(next)
	}
	return next
}

// Subscribe registers fn for change notifications and returns a function that
// removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}
