package fees

import (
	"context"
	"time"

	"meetnmart/internal/escrow"
)

// MemoryRepo is a simple in-memory schedule useful for tests and early
// development. Not intended for production.
type MemoryRepo struct {
	Rates []CommissionRate
}

func (r *MemoryRepo) FindRate(ctx context.Context, kind escrow.Kind, at time.Time) (CommissionRate, bool, error) {
	_ = ctx

	// Prefer the most recent effective rate.
	var best CommissionRate
	found := false

	for _, rate := range r.Rates {
		if rate.Kind != kind {
			continue
		}
		if rate.Status != RateStatusActive {
			continue
		}
		if at.Before(rate.EffectiveFrom) {
			continue
		}
		if rate.EffectiveTo != nil && !at.Before(*rate.EffectiveTo) {
			continue
		}

		if !found || rate.EffectiveFrom.After(best.EffectiveFrom) {
			best = rate
			found = true
		}
	}

	return best, found, nil
}
