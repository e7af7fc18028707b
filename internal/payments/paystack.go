package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"meetnmart/internal/config"
)

// PaystackProvider adapts the hosted Paystack transaction API.
type PaystackProvider struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewPaystackProvider(cfg config.PaymentsConfig) (*PaystackProvider, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("payments: secret key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.paystack.co"
	}
	return &PaystackProvider{
		baseURL:   base,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (p *PaystackProvider) Name() string { return "paystack" }

func (p *PaystackProvider) HealthCheck(ctx context.Context) error {
	// No dedicated health endpoint; a bad key fails loudly on first use.
	return nil
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *PaystackProvider) InitializeCharge(ctx context.Context, req ChargeRequest) (Checkout, error) {
	if req.Reference == "" || req.AmountMinor <= 0 || req.PayerEmail == "" {
		return Checkout{}, fmt.Errorf("payments: reference, amount and payer email are required")
	}

	body, err := json.Marshal(map[string]any{
		"reference": req.Reference,
		"amount":    req.AmountMinor,
		"currency":  req.Currency,
		"email":     req.PayerEmail,
		"metadata":  req.Metadata,
	})
	if err != nil {
		return Checkout{}, err
	}

	env, err := p.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return Checkout{}, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Checkout{}, fmt.Errorf("payments: decode initialize: %w", err)
	}
	return Checkout{
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

func (p *PaystackProvider) VerifyCharge(ctx context.Context, reference string) (ChargeResult, error) {
	if reference == "" {
		return ChargeResult{}, fmt.Errorf("payments: reference is required")
	}

	env, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return ChargeResult{}, err
	}

	var data struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ChargeResult{}, fmt.Errorf("payments: decode verify: %w", err)
	}
	return ChargeResult{
		Reference:   data.Reference,
		Status:      ChargeStatus(data.Status),
		AmountMinor: data.Amount,
		Currency:    data.Currency,
	}, nil
}

func (p *PaystackProvider) do(ctx context.Context, method, path string, body []byte) (paystackEnvelope, error) {
	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return paystackEnvelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return paystackEnvelope{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return paystackEnvelope{}, ErrChargeNotFound
	}
	if resp.StatusCode >= 500 {
		return paystackEnvelope{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var env paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return paystackEnvelope{}, fmt.Errorf("payments: decode response: %w", err)
	}
	if !env.Status {
		return paystackEnvelope{}, fmt.Errorf("payments: provider error: %s", env.Message)
	}
	return env, nil
}
