package fees

import (
	"context"
	"errors"
	"testing"
	"time"

	"meetnmart/internal/escrow"
)

func TestPlatformCut(t *testing.T) {
	cases := []struct {
		amount, rateBps, minFee, want int64
	}{
		{10000, 500, 0, 500},   // 5% flat
		{10001, 500, 0, 501},   // fractional kobo rounds up
		{1000, 500, 100, 100},  // min fee floor
		{50, 500, 100, 50},     // fee capped at the amount
		{10000, 0, 0, 0},       // zero rate
		{10000, -10, 0, 0},     // negative rate clamped
	}
	for _, tc := range cases {
		if got := platformCut(tc.amount, tc.rateBps, tc.minFee); got != tc.want {
			t.Fatalf("platformCut(%d, %d, %d) = %d, want %d", tc.amount, tc.rateBps, tc.minFee, got, tc.want)
		}
	}
}

func TestCommissionFor(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(&MemoryRepo{Rates: []CommissionRate{
		{Kind: escrow.KindSale, RateBps: 500, MinFeeMinor: 100, Currency: "NGN", Status: RateStatusActive, EffectiveFrom: from},
	}})

	comm, err := svc.CommissionFor(ctx, CommissionRequest{Kind: escrow.KindSale, AmountMinor: 20000, At: from.Add(time.Hour)})
	if err != nil {
		t.Fatalf("commission: %v", err)
	}
	if comm.PlatformMinor != 1000 || comm.PayeeNetMinor != 19000 {
		t.Fatalf("unexpected split: %+v", comm)
	}
	if comm.Currency != "NGN" || comm.RateBps != 500 {
		t.Fatalf("unexpected rate echo: %+v", comm)
	}
}

func TestCommissionFor_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&MemoryRepo{})

	if _, err := svc.CommissionFor(ctx, CommissionRequest{Kind: "tip", AmountMinor: 100}); !errors.Is(err, ErrInvalidFeeReq) {
		t.Fatalf("bad kind: expected ErrInvalidFeeReq, got %v", err)
	}
	if _, err := svc.CommissionFor(ctx, CommissionRequest{Kind: escrow.KindSale, AmountMinor: 0}); !errors.Is(err, ErrInvalidFeeReq) {
		t.Fatalf("zero amount: expected ErrInvalidFeeReq, got %v", err)
	}
	if _, err := svc.CommissionFor(ctx, CommissionRequest{Kind: escrow.KindSale, AmountMinor: 100}); !errors.Is(err, ErrRateNotFound) {
		t.Fatalf("empty schedule: expected ErrRateNotFound, got %v", err)
	}
}

func TestFindRate_EffectiveWindows(t *testing.T) {
	ctx := context.Background()
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)

	repo := &MemoryRepo{Rates: []CommissionRate{
		{Kind: escrow.KindSale, RateBps: 500, Status: RateStatusActive, EffectiveFrom: jan},
		{Kind: escrow.KindSale, RateBps: 400, Status: RateStatusActive, EffectiveFrom: jun},
		{Kind: escrow.KindSale, RateBps: 100, Status: RateStatusArchived, EffectiveFrom: dec},
		{Kind: escrow.KindDelivery, RateBps: 300, Status: RateStatusActive, EffectiveFrom: jan, EffectiveTo: &jun},
	}}

	rate, ok, _ := repo.FindRate(ctx, escrow.KindSale, jun.Add(time.Hour))
	if !ok || rate.RateBps != 400 {
		t.Fatalf("expected most recent effective rate 400, got %+v ok=%v", rate, ok)
	}

	rate, ok, _ = repo.FindRate(ctx, escrow.KindSale, jan.Add(time.Hour))
	if !ok || rate.RateBps != 500 {
		t.Fatalf("expected 500 before june, got %+v ok=%v", rate, ok)
	}

	// archived rates never apply
	rate, ok, _ = repo.FindRate(ctx, escrow.KindSale, dec.Add(time.Hour))
	if !ok || rate.RateBps != 400 {
		t.Fatalf("archived rate must be skipped, got %+v ok=%v", rate, ok)
	}

	// effective_to is exclusive
	if _, ok, _ = repo.FindRate(ctx, escrow.KindDelivery, jun); ok {
		t.Fatalf("expected no delivery rate at window end")
	}
	if _, ok, _ = repo.FindRate(ctx, escrow.KindDelivery, jan); !ok {
		t.Fatalf("expected delivery rate at window start")
	}
}
