package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
type CallsSummaryRequest struct {
	Range TimeRange `json:"range"`
}

type CallsSummary struct {
	TotalCalls    int `json:"total_calls"`
	EndedCalls    int `json:"ended_calls"`
	RejectedCalls int `json:"rejected_calls"`
	TimedOutCalls int `json:"timed_out_calls"`
	ActiveCalls   int `json:"active_calls"`

	// CallsWithDelivery counts sessions a delivery agent joined.
	CallsWithDelivery int `json:"calls_with_delivery"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

// EscrowSummaryRequest requests aggregated escrow metrics.
// Volume is derived from transaction records scoped by creation time.
type EscrowSummaryRequest struct {
	Range    TimeRange `json:"range"`
	Currency string    `json:"currency,omitempty"`
}

type EscrowSummary struct {
	Currency string `json:"currency"`

	TotalTransactions int `json:"total_transactions"`
	HeldCount         int `json:"held_count"`
	ReleasedCount     int `json:"released_count"`
	DisputedCount     int `json:"disputed_count"`
	RefundedCount     int `json:"refunded_count"`

	SaleCount     int `json:"sale_count"`
	DeliveryCount int `json:"delivery_count"`

	HeldMinor     int64 `json:"held_minor"`
	ReleasedMinor int64 `json:"released_minor"`
	RefundedMinor int64 `json:"refunded_minor"`
}
