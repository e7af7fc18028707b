package httpapi

import (
	"context"
	"encoding/json"

	"meetnmart/internal/calls"
	"meetnmart/internal/escrow"
	"meetnmart/internal/events"
	"meetnmart/internal/payments"
	"meetnmart/pkg/logger"
)

// Binder connects channel events to the state machines.
//
// Each live session/transaction gets a dispatcher subscription keyed by its
// id; terminal transitions tear the subscription down. Managers stay unaware
// of the channel, and duplicate deliveries die in their idempotent guards.
type Binder struct {
	Dispatcher *events.Dispatcher
	Calls      *calls.Manager
	Escrow     *escrow.Service
}

// Start hooks transition streams so subscriptions are cleaned up when a
// session or transaction resolves, and registers the invite listener that
// lets this node ring for sessions initiated elsewhere.
func (b *Binder) Start() {
	if b.Calls != nil && b.Dispatcher != nil {
		b.Calls.SubscribeTransitions(func(tr calls.Transition) {
			if tr.To.IsTerminal() {
				b.Dispatcher.Unsubscribe(tr.SessionID)
			}
		})
		b.Dispatcher.SubscribeEvent(events.EventCallInvite, b.handleInvite)
	}
	if b.Escrow != nil && b.Dispatcher != nil {
		b.Escrow.SubscribeTransitions(func(tr escrow.Transition) {
			if tr.To.IsTerminal() {
				b.Dispatcher.Unsubscribe(tr.TransactionID)
			}
		})
	}
}

type callInvitePayload struct {
	SessionID string `json:"session_id"`
	RoomName  string `json:"room_name"`
	BuyerID   string `json:"buyer_id"`
	SellerID  string `json:"seller_id"`
	Category  string `json:"category"`
}

// handleInvite registers invites published by other nodes so the callee's
// node can answer for the session. The initiating node already knows the
// session and skips its own invite.
func (b *Binder) handleInvite(ctx context.Context, e events.Event) {
	var inv callInvitePayload
	if err := json.Unmarshal(e.Payload, &inv); err != nil {
		logger.From(ctx).Warn("undecodable call invite", "event_id", e.ID, "err", err)
		return
	}
	if inv.SessionID == "" {
		inv.SessionID = e.CorrelationID
	}
	if _, known := b.Calls.Session(inv.SessionID); known {
		return
	}

	s, err := b.Calls.HandleInvite(ctx, calls.Invite{
		SessionID: inv.SessionID,
		RoomName:  inv.RoomName,
		BuyerID:   inv.BuyerID,
		SellerID:  inv.SellerID,
		Category:  inv.Category,
	})
	if err != nil {
		logger.From(ctx).Warn("inbound invite rejected", "session_id", inv.SessionID, "err", err)
		return
	}
	b.BindSession(s.ID)
}

// BindSession routes remote call events for one session into the manager.
func (b *Binder) BindSession(sessionID string) {
	if b.Dispatcher == nil {
		return
	}
	b.Dispatcher.Subscribe(sessionID, func(ctx context.Context, e events.Event) {
		var err error
		switch e.Name {
		case events.EventCallAccepted:
			err = b.Calls.RespondToInvite(ctx, sessionID, calls.DecisionAccept)
		case events.EventCallRejected:
			err = b.Calls.RespondToInvite(ctx, sessionID, calls.DecisionReject)
		case events.EventCallEnded:
			err = b.Calls.EndCall(ctx, sessionID, "remote hangup")
		default:
			return
		}
		if err != nil {
			logger.From(ctx).Warn("call event apply failed",
				"session_id", sessionID, "event", e.Name, "err", err)
		}
	})
}

// BindTransaction routes payment events for one transaction into the escrow
// manager. Success confirms funding with the captured amount; failure
// discards the pending hold.
func (b *Binder) BindTransaction(transactionID string) {
	if b.Dispatcher == nil {
		return
	}
	b.Dispatcher.Subscribe(transactionID, func(ctx context.Context, e events.Event) {
		switch e.Name {
		case events.EventChargeSuccess:
			var ce payments.ChargeEvent
			if err := json.Unmarshal(e.Payload, &ce); err != nil {
				logger.From(ctx).Warn("undecodable charge event", "transaction_id", transactionID, "err", err)
				return
			}
			conf := escrow.FundingConfirmation{
				Reference:   ce.Reference,
				AmountMinor: ce.AmountMinor,
				Currency:    ce.Currency,
			}
			if _, err := b.Escrow.ConfirmFunded(ctx, transactionID, conf); err != nil {
				logger.From(ctx).Warn("funding confirm failed",
					"transaction_id", transactionID, "reference", ce.Reference, "err", err)
			}
		case events.EventChargeFailed:
			if err := b.Escrow.Discard(ctx, transactionID); err != nil {
				logger.From(ctx).Warn("pending discard failed",
					"transaction_id", transactionID, "err", err)
			}
		}
	})
}
