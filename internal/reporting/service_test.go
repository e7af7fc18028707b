package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetnmart/internal/calls"
	"meetnmart/internal/escrow"
)

type fakeRepo struct {
	sessions []calls.CallSession
	txs      []escrow.Transaction
}

func (r *fakeRepo) ListSessions(ctx context.Context, from, to time.Time) ([]calls.CallSession, error) {
	return r.sessions, nil
}

func (r *fakeRepo) ListTransactions(ctx context.Context, from, to time.Time) ([]escrow.Transaction, error) {
	return r.txs, nil
}

func tr(from, to time.Time) TimeRange { return TimeRange{From: from, To: to} }

func TestCallsSummary(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	start1 := base.Add(time.Hour)
	end1 := start1.Add(120 * time.Second)
	start2 := base.Add(2 * time.Hour)
	end2 := start2.Add(60 * time.Second)

	svc := NewService(&fakeRepo{sessions: []calls.CallSession{
		{ID: "c1", Status: calls.CallStatusEnded, StartedAt: &start1, EndedAt: &end1, DeliveryAgentID: "agent"},
		{ID: "c2", Status: calls.CallStatusEnded, StartedAt: &start2, EndedAt: &end2},
		{ID: "c3", Status: calls.CallStatusRejected},
		{ID: "c4", Status: calls.CallStatusTimedOut},
		{ID: "c5", Status: calls.CallStatusActive, StartedAt: &start2},
	}})

	out, err := svc.CallsSummary(ctx, CallsSummaryRequest{Range: tr(base, base.Add(24*time.Hour))})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if out.TotalCalls != 5 || out.EndedCalls != 2 || out.RejectedCalls != 1 || out.TimedOutCalls != 1 || out.ActiveCalls != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.CallsWithDelivery != 1 {
		t.Fatalf("expected 1 call with delivery, got %d", out.CallsWithDelivery)
	}
	if out.TotalDurationSeconds != 180 || out.AverageDurationSeconds != 90 {
		t.Fatalf("unexpected durations: %+v", out)
	}
}

func TestEscrowSummary(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	svc := NewService(&fakeRepo{txs: []escrow.Transaction{
		{ID: "t1", Kind: escrow.KindSale, Status: escrow.StatusHeld, AmountMinor: 1000, Currency: "NGN"},
		{ID: "t2", Kind: escrow.KindSale, Status: escrow.StatusReleased, AmountMinor: 2000, Currency: "NGN"},
		{ID: "t3", Kind: escrow.KindDelivery, Status: escrow.StatusDisputed, AmountMinor: 500, Currency: "NGN"},
		{ID: "t4", Kind: escrow.KindSale, Status: escrow.StatusRefunded, AmountMinor: 700, Currency: "NGN"},
		{ID: "t5", Kind: escrow.KindSale, Status: escrow.StatusPending, AmountMinor: 9999, Currency: "NGN"},
	}})

	out, err := svc.EscrowSummary(ctx, EscrowSummaryRequest{Range: tr(base, base.Add(24 * time.Hour))})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if out.TotalTransactions != 5 || out.SaleCount != 4 || out.DeliveryCount != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	// disputed money is still held money
	if out.HeldMinor != 1500 {
		t.Fatalf("expected 1500 held (incl. disputed), got %d", out.HeldMinor)
	}
	if out.ReleasedMinor != 2000 || out.RefundedMinor != 700 {
		t.Fatalf("unexpected money totals: %+v", out)
	}
	if out.Currency != "NGN" {
		t.Fatalf("expected currency inferred, got %q", out.Currency)
	}
}

func TestEscrowSummary_CurrencyFilter(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	svc := NewService(&fakeRepo{txs: []escrow.Transaction{
		{ID: "t1", Kind: escrow.KindSale, Status: escrow.StatusHeld, AmountMinor: 1000, Currency: "NGN"},
		{ID: "t2", Kind: escrow.KindSale, Status: escrow.StatusHeld, AmountMinor: 4000, Currency: "GHS"},
	}})

	out, err := svc.EscrowSummary(ctx, EscrowSummaryRequest{Range: tr(base, base.Add(time.Hour)), Currency: "NGN"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if out.TotalTransactions != 1 || out.HeldMinor != 1000 {
		t.Fatalf("expected NGN only, got %+v", out)
	}
}

func TestEscrowSummary_MixedCurrenciesAdoptFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	svc := NewService(&fakeRepo{txs: []escrow.Transaction{
		{ID: "t1", Kind: escrow.KindSale, Status: escrow.StatusHeld, AmountMinor: 1000, Currency: "NGN"},
		{ID: "t2", Kind: escrow.KindSale, Status: escrow.StatusHeld, AmountMinor: 4000, Currency: "GHS"},
		{ID: "t3", Kind: escrow.KindSale, Status: escrow.StatusHeld, AmountMinor: 2000, Currency: "NGN"},
	}})

	// without a filter the first row's currency wins; other currencies must
	// not leak into the money totals
	out, err := svc.EscrowSummary(ctx, EscrowSummaryRequest{Range: tr(base, base.Add(time.Hour))})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if out.Currency != "NGN" {
		t.Fatalf("expected NGN adopted, got %q", out.Currency)
	}
	if out.TotalTransactions != 2 || out.HeldMinor != 3000 {
		t.Fatalf("expected NGN-only totals, got %+v", out)
	}
}

func TestSummaries_InvalidRange(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeRepo{})
	now := time.Now()

	if _, err := svc.CallsSummary(ctx, CallsSummaryRequest{Range: tr(now, now)}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty range: expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.EscrowSummary(ctx, EscrowSummaryRequest{Range: tr(now, now.Add(-time.Hour))}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("inverted range: expected ErrInvalidRequest, got %v", err)
	}
}
