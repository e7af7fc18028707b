package reporting

import (
	"context"
	"errors"
	"time"

	"meetnmart/internal/calls"
	"meetnmart/internal/escrow"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
// Implementations should query the mirrored records, which are the
// cross-device source of truth.
type Repository interface {
	ListSessions(ctx context.Context, from, to time.Time) ([]calls.CallSession, error)
	ListTransactions(ctx context.Context, from, to time.Time) ([]escrow.Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListSessions(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{}
	for _, c := range rows {
		out.TotalCalls++
		if c.DeliveryAgentID != "" {
			out.CallsWithDelivery++
		}
		if c.StartedAt != nil && c.EndedAt != nil {
			out.TotalDurationSeconds += int(c.EndedAt.Sub(*c.StartedAt) / time.Second)
		}
		switch c.Status {
		case calls.CallStatusEnded:
			out.EndedCalls++
		case calls.CallStatusRejected:
			out.RejectedCalls++
		case calls.CallStatusTimedOut:
			out.TimedOutCalls++
		case calls.CallStatusActive:
			out.ActiveCalls++
		case calls.CallStatusRequested, calls.CallStatusRinging, calls.CallStatusAccepted:
			// not counted separately
		}
	}
	if out.EndedCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.EndedCalls
	}
	return out, nil
}

func (s *Service) EscrowSummary(ctx context.Context, req EscrowSummaryRequest) (EscrowSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return EscrowSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return EscrowSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListTransactions(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return EscrowSummary{}, err
	}

	// Money totals are meaningless across currencies. Without an explicit
	// filter the summary adopts the first row's currency and skips the rest.
	filter := req.Currency
	out := EscrowSummary{Currency: filter}
	for _, t := range rows {
		if filter == "" {
			filter = t.Currency
			out.Currency = filter
		}
		if t.Currency != filter {
			continue
		}

		out.TotalTransactions++
		switch t.Kind {
		case escrow.KindSale:
			out.SaleCount++
		case escrow.KindDelivery:
			out.DeliveryCount++
		}
		switch t.Status {
		case escrow.StatusHeld:
			out.HeldCount++
			out.HeldMinor += t.AmountMinor
		case escrow.StatusReleased:
			out.ReleasedCount++
			out.ReleasedMinor += t.AmountMinor
		case escrow.StatusDisputed:
			out.DisputedCount++
			out.HeldMinor += t.AmountMinor
		case escrow.StatusRefunded:
			out.RefundedCount++
			out.RefundedMinor += t.AmountMinor
		case escrow.StatusPending:
			// pending is client-side only; excluded from money totals
		}
	}
	return out, nil
}
