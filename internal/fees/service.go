package fees

import (
	"context"
	"errors"
	"time"

	"meetnmart/internal/escrow"
)

var (
	ErrRateNotFound  = errors.New("fees: rate not found")
	ErrInvalidFeeReq = errors.New("fees: invalid request")
)

// RateRepository abstracts commission schedule persistence.
type RateRepository interface {
	FindRate(ctx context.Context, kind escrow.Kind, at time.Time) (CommissionRate, bool, error)
}

// Service computes the platform cut taken when an escrow hold is released.
//
// Contract:
// - Pure calculation + repository lookups; no money movement here.
// - The payout side reads Commission to split the released amount.
type Service struct {
	repo  RateRepository
	clock func() time.Time
}

func NewService(repo RateRepository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

type CommissionRequest struct {
	Kind        escrow.Kind
	AmountMinor int64

	// At determines which effective rate to use. If zero, service clock is used.
	At time.Time
}

type Commission struct {
	Kind escrow.Kind `json:"kind"`

	AmountMinor   int64 `json:"amount_minor"`
	PlatformMinor int64 `json:"platform_minor"`
	PayeeNetMinor int64 `json:"payee_net_minor"`

	RateBps  int64  `json:"rate_bps"`
	Currency string `json:"currency"`
}

// CommissionFor resolves the effective rate and splits the amount.
func (s *Service) CommissionFor(ctx context.Context, req CommissionRequest) (Commission, error) {
	if !escrow.ValidKind(req.Kind) {
		return Commission{}, ErrInvalidFeeReq
	}
	if req.AmountMinor <= 0 {
		return Commission{}, ErrInvalidFeeReq
	}
	if s.repo == nil {
		return Commission{}, errors.New("fees: repository not configured")
	}

	at := req.At
	if at.IsZero() {
		at = s.clock().UTC()
	}

	rate, ok, err := s.repo.FindRate(ctx, req.Kind, at)
	if err != nil {
		return Commission{}, err
	}
	if !ok {
		return Commission{}, ErrRateNotFound
	}

	platform := platformCut(req.AmountMinor, rate.RateBps, rate.MinFeeMinor)

	return Commission{
		Kind:          req.Kind,
		AmountMinor:   req.AmountMinor,
		PlatformMinor: platform,
		PayeeNetMinor: req.AmountMinor - platform,
		RateBps:       rate.RateBps,
		Currency:      rate.Currency,
	}, nil
}

func platformCut(amountMinor, rateBps, minFeeMinor int64) int64 {
	if amountMinor <= 0 {
		return 0
	}
	if rateBps < 0 {
		rateBps = 0
	}

	// round up so fractional minor units favor the platform ledger,
	// never the rounding error
	cut := (amountMinor*rateBps + 9999) / 10000
	if cut < minFeeMinor {
		cut = minFeeMinor
	}
	if cut > amountMinor {
		cut = amountMinor
	}
	return cut
}
