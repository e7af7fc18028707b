package payments

import (
	"context"
	"fmt"
	"sync"
)

// FakeProvider is an in-memory provider for tests and local development.
type FakeProvider struct {
	mu      sync.Mutex
	charges map[string]ChargeResult

	// FailInitialize, when set, is returned from InitializeCharge.
	FailInitialize error
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{charges: make(map[string]ChargeResult)}
}

func (p *FakeProvider) Name() string { return "fake" }

func (p *FakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (p *FakeProvider) InitializeCharge(ctx context.Context, req ChargeRequest) (Checkout, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailInitialize != nil {
		return Checkout{}, p.FailInitialize
	}
	p.charges[req.Reference] = ChargeResult{
		Reference:   req.Reference,
		Status:      ChargeStatusPending,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}
	return Checkout{
		Reference:        req.Reference,
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
	}, nil
}

func (p *FakeProvider) VerifyCharge(ctx context.Context, reference string) (ChargeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.charges[reference]
	if !ok {
		return ChargeResult{}, ErrChargeNotFound
	}
	return r, nil
}

// CompleteCharge marks a charge with the given outcome, simulating the payer
// finishing (or abandoning) hosted checkout.
func (p *FakeProvider) CompleteCharge(reference string, status ChargeStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.charges[reference]
	if !ok {
		return fmt.Errorf("payments: unknown reference %q", reference)
	}
	r.Status = status
	p.charges[reference] = r
	return nil
}
