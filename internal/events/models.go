package events

import (
	"encoding/json"
	"time"
)

// Event is a message delivered by the external pub/sub channel.
//
// Delivery contract: at-least-once, no ordering guarantee across distinct
// event names. Consumers must dedupe on ID.
type Event struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// CorrelationID ties the event to a call session or escrow transaction.
	CorrelationID string `json:"correlation_id"`

	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Well-known event names published on the channel.
const (
	EventCallInvite     = "call.invite"
	EventCallAccepted   = "call.accepted"
	EventCallRejected   = "call.rejected"
	EventCallEnded      = "call.ended"
	EventDeliveryJoined = "call.delivery_joined"

	EventChargeSuccess = "payment.charge_success"
	EventChargeFailed  = "payment.charge_failed"

	EventDisputeResolved = "escrow.dispute_resolved"
)

type NotificationType string

const (
	NotificationCall    NotificationType = "call"
	NotificationPayment NotificationType = "payment"
	NotificationSystem  NotificationType = "system"
)

// Notification is the read-only projection the UI consumes.
// Created from channel events, marked read by user action, never otherwise mutated.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	EventName     string           `json:"event_name"`
	CorrelationID string           `json:"correlation_id,omitempty"`
	Payload       json.RawMessage  `json:"payload,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Read          bool             `json:"read"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
}

// TypeForEvent maps an event name to the notification bucket shown in the UI.
func TypeForEvent(name string) NotificationType {
	switch name {
	case EventCallInvite, EventCallAccepted, EventCallRejected, EventCallEnded, EventDeliveryJoined:
		return NotificationCall
	case EventChargeSuccess, EventChargeFailed, EventDisputeResolved:
		return NotificationPayment
	default:
		return NotificationSystem
	}
}
