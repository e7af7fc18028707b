package escrow

import "time"

// Transaction is a monetary hold created during an active call.
//
// Money invariants:
// - AmountMinor > 0 at creation and immutable thereafter
// - status transitions are monotonic except the dispute resolution paths
// - released/refunded are terminal; further events are rejected
type Transaction struct {
	ID string `json:"id" db:"id"`

	// CallSessionID is the owning call. A transaction is never inferred;
	// it exists only because a user created it during that call.
	CallSessionID string `json:"call_session_id" db:"call_session_id"`

	PayerID string `json:"payer_id" db:"payer_id"`
	PayeeID string `json:"payee_id" db:"payee_id"`

	Kind Kind `json:"kind" db:"kind"`

	// AmountMinor is the amount in minor units (e.g., kobo). Always positive.
	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	Status Status `json:"status" db:"status"`

	// Reference is the provider-correlated unique charge reference.
	// Set when the provider confirms funds captured.
	Reference string `json:"reference,omitempty" db:"reference"`

	// DisputeReason is set when a party raises a dispute.
	DisputeReason string `json:"dispute_reason,omitempty" db:"dispute_reason"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

type Kind string

const (
	KindSale     Kind = "sale"
	KindDelivery Kind = "delivery"
)

func ValidKind(k Kind) bool { return k == KindSale || k == KindDelivery }

type Status string

const (
	// StatusPending is client-observed only: the payment widget was opened
	// but the provider has not confirmed capture. A pending transaction
	// must never be treated as safely escrowed.
	StatusPending Status = "pending"

	// StatusHeld means the provider confirmed funds captured into escrow.
	StatusHeld Status = "held"

	StatusReleased Status = "released"
	StatusDisputed Status = "disputed"
	StatusRefunded Status = "refunded"
)

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusReleased || s == StatusRefunded
}

// Transition is emitted on every escrow state change.
type Transition struct {
	TransactionID string    `json:"transaction_id"`
	CallSessionID string    `json:"call_session_id"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	At            time.Time `json:"at"`
}
