package fees

import (
	"time"

	"meetnmart/internal/escrow"
)

// CommissionRate is one row of the platform commission schedule.
// Rates are basis points of the transaction amount, with a minimum fee floor.
type CommissionRate struct {
	ID   string      `json:"id" db:"id"`
	Kind escrow.Kind `json:"kind" db:"kind"`

	RateBps     int64  `json:"rate_bps" db:"rate_bps"`
	MinFeeMinor int64  `json:"min_fee_minor" db:"min_fee_minor"`
	Currency    string `json:"currency" db:"currency"`

	Status RateStatus `json:"status" db:"status"`

	EffectiveFrom time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" db:"effective_to"`
}

type RateStatus string

const (
	RateStatusActive   RateStatus = "active"
	RateStatusArchived RateStatus = "archived"
)
