package escrow

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests and early
// development. Not intended for production; replace with PostgresRepo.
type MemoryRepo struct {
	mu  sync.Mutex
	txs map[string]Transaction
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{txs: make(map[string]Transaction)}
}

func (r *MemoryRepo) Insert(ctx context.Context, t Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs[t.ID] = t
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Transaction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	return t, ok, nil
}

func (r *MemoryRepo) Update(ctx context.Context, t Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs[t.ID] = t
	return nil
}

func (r *MemoryRepo) DeletePending(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.txs, id)
	return nil
}

// ListTransactions returns transactions created in [from, to), for reporting.
func (r *MemoryRepo) ListTransactions(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for _, t := range r.txs {
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Len reports the number of stored transactions.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txs)
}
