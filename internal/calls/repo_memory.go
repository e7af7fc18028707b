package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRecorder is an in-memory session mirror useful for tests.
// It is not intended for production use.
type MemoryRecorder struct {
	mu       sync.Mutex
	sessions map[string]CallSession
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{sessions: make(map[string]CallSession)}
}

func (r *MemoryRecorder) Save(ctx context.Context, s CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *MemoryRecorder) Get(id string) (CallSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *MemoryRecorder) ListSessions(ctx context.Context, from, to time.Time) ([]CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallSession
	for _, s := range r.sessions {
		if s.CreatedAt.Before(from) || !s.CreatedAt.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
