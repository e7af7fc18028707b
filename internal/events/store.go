package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is an ordered, append-only, newest-first notification store.
// It is the only state the UI reads directly; state machines subscribe
// through the Dispatcher instead.
type Store struct {
	mu    sync.Mutex
	items []Notification
	clock func() time.Time
}

func NewStore() *Store {
	return &Store{clock: time.Now}
}

// Append records a notification derived from a channel event and returns it.
func (s *Store) Append(e Event) Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := Notification{
		ID:            uuid.NewString(),
		Type:          TypeForEvent(e.Name),
		EventName:     e.Name,
		CorrelationID: e.CorrelationID,
		Payload:       e.Payload,
		CreatedAt:     s.clock().UTC(),
	}
	// newest first
	s.items = append([]Notification{n}, s.items...)
	return n
}

// List returns up to limit notifications, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Notification, n)
	copy(out, s.items[:n])
	return out
}

// MarkRead flags a notification as read. Returns false if the id is unknown.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].Read {
			now := s.clock().UTC()
			s.items[i].Read = true
			s.items[i].ReadAt = &now
		}
		return true
	}
	return false
}

// Unread counts notifications not yet marked read.
func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for i := range s.items {
		if !s.items[i].Read {
			count++
		}
	}
	return count
}
