package calls

import "time"

// CallSession is one buyer↔seller call, optionally joined by a delivery agent.
//
// Lifecycle invariants:
// - exactly one of accepted/rejected/timed_out resolves a requested or ringing session
// - ended is reachable from active, or directly as a no-op terminal when never accepted
// - duration is defined only once the session has been active
// - terminal states are absorbing; a new call between the same parties needs a new id
type CallSession struct {
	ID string `json:"id" db:"id"`

	// RoomName is the video provider's room handle.
	RoomName string `json:"room_name" db:"room_name"`

	BuyerID         string `json:"buyer_id" db:"buyer_id"`
	SellerID        string `json:"seller_id" db:"seller_id"`
	DeliveryAgentID string `json:"delivery_agent_id,omitempty" db:"delivery_agent_id"`

	// Category is the market category the buyer called about.
	Category string `json:"category,omitempty" db:"category"`

	Status CallStatus `json:"status" db:"status"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	EndReason string `json:"end_reason,omitempty" db:"end_reason"`

	Participants []Participant `json:"participants"`
}

type CallStatus string

const (
	CallStatusRequested CallStatus = "requested"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusAccepted  CallStatus = "accepted"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusActive    CallStatus = "active"
	CallStatusEnded     CallStatus = "ended"
	CallStatusTimedOut  CallStatus = "timed_out"
)

// IsTerminal reports whether no further transition is permitted.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusEnded, CallStatusRejected, CallStatusTimedOut:
		return true
	}
	return false
}

type ParticipantRole string

const (
	RoleBuyer    ParticipantRole = "buyer"
	RoleSeller   ParticipantRole = "seller"
	RoleDelivery ParticipantRole = "delivery"
	RoleObserver ParticipantRole = "observer"
)

type Participant struct {
	UserID   string          `json:"user_id" db:"user_id"`
	Role     ParticipantRole `json:"role" db:"role"`
	JoinedAt time.Time       `json:"joined_at" db:"joined_at"`
	LeftAt   *time.Time      `json:"left_at,omitempty" db:"left_at"`
}

// Transition is the local event emitted on every state change.
// The UI and the escrow manager subscribe to these to gate their behavior.
type Transition struct {
	SessionID string     `json:"session_id"`
	From      CallStatus `json:"from"`
	To        CallStatus `json:"to"`
	Reason    string     `json:"reason,omitempty"`
	At        time.Time  `json:"at"`
}
