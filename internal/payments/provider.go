package payments

import (
	"context"
	"errors"
)

var (
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	ErrChargeNotFound      = errors.New("payments: charge not found")
)

// Provider defines the provider-agnostic escrow payment interface.
//
// Rules:
// - No provider SDK calls outside payments adapters.
// - The widget/checkout flow is asynchronous: InitializeCharge returns a
//   checkout the payer completes elsewhere; the outcome arrives later via
//   webhook. Callers must not treat an initialized charge as captured.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	InitializeCharge(ctx context.Context, req ChargeRequest) (Checkout, error)

	// VerifyCharge fetches the authoritative charge state by reference.
	// Used to reconcile when webhooks are missed.
	VerifyCharge(ctx context.Context, reference string) (ChargeResult, error)
}

// ChargeRequest asks the provider to collect AmountMinor into escrow.
type ChargeRequest struct {
	// Reference is our unique correlation id for this charge.
	Reference string `json:"reference"`

	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`

	// PayerEmail is required by hosted checkout providers.
	PayerEmail string `json:"payer_email"`

	// Metadata travels with the charge and comes back on the webhook.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Checkout is the hosted payment page handed to the payer.
type Checkout struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code,omitempty"`
}

type ChargeStatus string

const (
	ChargeStatusSuccess   ChargeStatus = "success"
	ChargeStatusFailed    ChargeStatus = "failed"
	ChargeStatusAbandoned ChargeStatus = "abandoned"
	ChargeStatusPending   ChargeStatus = "pending"
)

// ChargeResult is the provider's view of a charge.
type ChargeResult struct {
	Reference   string       `json:"reference"`
	Status      ChargeStatus `json:"status"`
	AmountMinor int64        `json:"amount_minor"`
	Currency    string       `json:"currency"`
}
