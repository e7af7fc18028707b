package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"meetnmart/internal/auth"
	"meetnmart/internal/calls"
	"meetnmart/internal/escrow"
	"meetnmart/internal/events"
	"meetnmart/internal/fees"
	"meetnmart/internal/payments"
	"meetnmart/internal/rbac"
	"meetnmart/internal/reporting"
	"meetnmart/internal/rtc"
	"meetnmart/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PresenceControl is the slice of presence the API mutates directly.
type PresenceControl interface {
	Heartbeat(ctx context.Context, userID string) error
	SetDoNotDisturb(ctx context.Context, userID string, on bool) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Calls     *calls.Manager
	Escrow    *escrow.Service
	Fees      *fees.Service
	Reporting *reporting.Service

	RTC      rtc.Provider
	Payments payments.Provider
	Presence PresenceControl

	Store  *events.Store
	Binder *Binder

	// Publish sends an event onto the notification channel.
	Publish func(ctx context.Context, e events.Event) error

	// Currency is the platform settlement currency.
	Currency string

	// Resolve applies a moderation decision. Injected so the handler stays
	// free of audit plumbing.
	Resolve func(ctx context.Context, actorID, actorRole, ip, transactionID, outcome string) (escrow.Transaction, error)
}

/* ===================== auth ===================== */

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: credential validation lives in the identity backend; this endpoint
// trusts upstream verification middleware in production deployments.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

/* ===================== presence ===================== */

func (h Handlers) Heartbeat(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	if h.Presence == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if err := h.Presence.Heartbeat(c.Request.Context(), uid); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "heartbeat failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type dndRequest struct {
	Enabled bool `json:"enabled"`
}

func (h Handlers) SetDoNotDisturb(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	var req dndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if h.Presence == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "presence not configured"})
		return
	}
	if err := h.Presence.SetDoNotDisturb(c.Request.Context(), uid, req.Enabled); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"do_not_disturb": req.Enabled})
}

/* ===================== calls ===================== */

type initiateCallRequest struct {
	SellerID string `json:"seller_id"`
	Category string `json:"category,omitempty"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SellerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "seller_id required"})
		return
	}

	s, err := h.Calls.InitiateCall(c.Request.Context(), uid, req.SellerID, req.Category)
	if err != nil {
		switch {
		case errors.Is(err, calls.ErrInvalidTarget):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "seller unreachable"})
		case errors.Is(err, calls.ErrCallInProgress):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already in progress"})
		case errors.Is(err, calls.ErrProviderUnavailable):
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "call provider unavailable"})
		case errors.Is(err, calls.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call target"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call initiation failed"})
		}
		return
	}

	if h.Binder != nil {
		h.Binder.BindSession(s.ID)
	}
	h.publishCallEvent(c, events.EventCallInvite, s.ID, gin.H{
		"session_id": s.ID,
		"room_name":  s.RoomName,
		"buyer_id":   s.BuyerID,
		"seller_id":  s.SellerID,
		"category":   s.Category,
	})

	token := h.mintToken(c, s.RoomName, uid, true)
	c.JSON(http.StatusCreated, gin.H{"session": s, "room_token": token})
}

type respondRequest struct {
	Decision calls.Decision `json:"decision"`
}

func (h Handlers) RespondToInvite(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	sessionID := c.Param("session_id")
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if err := h.Calls.RespondToInvite(c.Request.Context(), sessionID, req.Decision); err != nil {
		switch {
		case errors.Is(err, calls.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		case errors.Is(err, calls.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "decision must be accept or reject"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "response failed"})
		}
		return
	}

	s, _ := h.Calls.Session(sessionID)
	if req.Decision == calls.DecisionAccept {
		h.publishCallEvent(c, events.EventCallAccepted, sessionID, gin.H{"session_id": sessionID})
		token := h.mintToken(c, s.RoomName, uid, false)
		c.JSON(http.StatusOK, gin.H{"session": s, "room_token": token})
		return
	}
	h.publishCallEvent(c, events.EventCallRejected, sessionID, gin.H{"session_id": sessionID})
	c.JSON(http.StatusOK, gin.H{"session": s})
}

// Connected is the media-connected signal from the client: accepted → active.
func (h Handlers) Connected(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.Calls.MarkConnected(c.Request.Context(), sessionID); err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	s, _ := h.Calls.Session(sessionID)
	c.JSON(http.StatusOK, gin.H{"session": s})
}

type endCallRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h Handlers) EndCall(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req endCallRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "local hangup"
	}

	if err := h.Calls.EndCall(c.Request.Context(), sessionID, req.Reason); err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "end failed"})
		return
	}

	// Remote notification is best-effort; the local transition already stands.
	h.publishCallEvent(c, events.EventCallEnded, sessionID, gin.H{"session_id": sessionID, "reason": req.Reason})

	s, _ := h.Calls.Session(sessionID)
	c.JSON(http.StatusOK, gin.H{"session": s})
}

type inviteDeliveryRequest struct {
	AgentID string `json:"agent_id"`
}

func (h Handlers) InviteDeliveryAgent(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req inviteDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AgentID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id required"})
		return
	}

	if err := h.Calls.InviteDeliveryAgent(c.Request.Context(), sessionID, req.AgentID); err != nil {
		switch {
		case errors.Is(err, calls.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		case errors.Is(err, calls.ErrSessionNotActive):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call not active"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invite failed"})
		}
		return
	}

	s, _ := h.Calls.Session(sessionID)
	h.publishCallEvent(c, events.EventDeliveryJoined, sessionID, gin.H{"session_id": sessionID, "agent_id": req.AgentID})
	token := h.mintToken(c, s.RoomName, req.AgentID, false)
	c.JSON(http.StatusOK, gin.H{"session": s, "room_token": token})
}

func (h Handlers) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	s, ok := h.Calls.Session(sessionID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	elapsed, _ := h.Calls.ElapsedSeconds(sessionID)
	c.JSON(http.StatusOK, gin.H{"session": s, "elapsed_seconds": elapsed})
}

/* ===================== escrow ===================== */

type createTransactionRequest struct {
	CallSessionID string      `json:"call_session_id"`
	Kind          escrow.Kind `json:"kind"`
	PayeeID       string      `json:"payee_id"`
	AmountMinor   int64       `json:"amount_minor"`
	PayerEmail    string      `json:"payer_email"`
}

// CreateTransaction records a pending hold and opens a provider checkout.
// A provider failure discards the pending record: state rolls back to
// pre-attempt rather than leaving a dangling transaction.
func (h Handlers) CreateTransaction(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	t, err := h.Escrow.Create(c.Request.Context(), escrow.CreateRequest{
		CallSessionID: req.CallSessionID,
		Kind:          req.Kind,
		PayerID:       uid,
		PayeeID:       req.PayeeID,
		AmountMinor:   req.AmountMinor,
		Currency:      h.Currency,
	})
	if err != nil {
		switch {
		case errors.Is(err, escrow.ErrInvalidAmount):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		case errors.Is(err, escrow.ErrNoActiveCall):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call session not active"})
		case errors.Is(err, escrow.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid transaction request"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "creation failed"})
		}
		return
	}

	checkout := payments.Checkout{}
	if h.Payments != nil {
		checkout, err = h.Payments.InitializeCharge(c.Request.Context(), payments.ChargeRequest{
			Reference:   "mnm_" + uuid.NewString(),
			AmountMinor: t.AmountMinor,
			Currency:    t.Currency,
			PayerEmail:  req.PayerEmail,
			Metadata:    map[string]string{"transaction_id": t.ID},
		})
		if err != nil {
			if derr := h.Escrow.Discard(c.Request.Context(), t.ID); derr != nil {
				logger.FromGin(c).Warn("pending rollback failed", "transaction_id", t.ID, "err", derr)
			}
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
			return
		}
	}

	if h.Binder != nil {
		h.Binder.BindTransaction(t.ID)
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": t, "checkout": checkout})
}

// ConfirmFunded is the client-side verification fallback for missed webhooks.
// The claimed reference is verified against the provider before the hold is
// confirmed; clients never get to assert a capture on their own, and a charge
// captured for a different amount or currency never confirms this hold.
func (h Handlers) ConfirmFunded(c *gin.Context) {
	id := c.Param("transaction_id")
	var req struct {
		Reference string `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Reference == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reference required"})
		return
	}

	if h.Payments == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "payments not configured"})
		return
	}
	res, err := h.Payments.VerifyCharge(c.Request.Context(), req.Reference)
	switch {
	case errors.Is(err, payments.ErrChargeNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown charge reference"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "charge verification unavailable"})
		return
	case res.Status != payments.ChargeStatusSuccess:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "charge not successful"})
		return
	}

	t, err := h.Escrow.ConfirmFunded(c.Request.Context(), id, escrow.FundingConfirmation{
		Reference:   req.Reference,
		AmountMinor: res.AmountMinor,
		Currency:    res.Currency,
	})
	if err != nil {
		h.escrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": t})
}

// Release pays out a held transaction and reports the commission split.
func (h Handlers) Release(c *gin.Context) {
	id := c.Param("transaction_id")

	t, err := h.Escrow.Release(c.Request.Context(), id)
	if err != nil {
		h.escrowError(c, err)
		return
	}

	resp := gin.H{"transaction": t}
	if h.Fees != nil {
		comm, ferr := h.Fees.CommissionFor(c.Request.Context(), fees.CommissionRequest{
			Kind:        t.Kind,
			AmountMinor: t.AmountMinor,
		})
		if ferr == nil {
			resp["commission"] = comm
		} else if !errors.Is(ferr, fees.ErrRateNotFound) {
			logger.FromGin(c).Warn("commission lookup failed", "transaction_id", id, "err", ferr)
		}
	}
	c.JSON(http.StatusOK, resp)
}

type disputeRequest struct {
	Reason string `json:"reason"`
}

func (h Handlers) MarkDisputed(c *gin.Context) {
	id := c.Param("transaction_id")
	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reason required"})
		return
	}

	t, err := h.Escrow.MarkDisputed(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.escrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": t})
}

type resolveRequest struct {
	// Outcome is "release" or "refund".
	Outcome string `json:"outcome"`
}

// ResolveDispute applies the external moderation decision.
// RBAC: moderator or super_admin.
func (h Handlers) ResolveDispute(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	role, _ := auth.Role(c.Request.Context())
	if !rbac.IsModerator(role) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	id := c.Param("transaction_id")
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Outcome != "release" && req.Outcome != "refund" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "outcome must be release or refund"})
		return
	}
	if h.Resolve == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "resolution not configured"})
		return
	}

	t, err := h.Resolve(c.Request.Context(), uid, role, c.ClientIP(), id, req.Outcome)
	if err != nil {
		h.escrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": t})
}

func (h Handlers) GetTransaction(c *gin.Context) {
	t, err := h.Escrow.Get(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		h.escrowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": t})
}

func (h Handlers) escrowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown transaction"})
	case errors.Is(err, escrow.ErrInvalidStateTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "operation illegal in current state"})
	case errors.Is(err, escrow.ErrReferenceConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "reference conflict"})
	case errors.Is(err, escrow.ErrChargeMismatch):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "captured charge does not match transaction"})
	case errors.Is(err, escrow.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "escrow operation failed"})
	}
}

/* ===================== notifications ===================== */

func (h Handlers) ListNotifications(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []events.Notification{}})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": h.Store.List(limit),
		"unread":        h.Store.Unread(),
	})
}

func (h Handlers) MarkNotificationRead(c *gin.Context) {
	if h.Store == nil || !h.Store.MarkRead(c.Param("notification_id")) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

/* ===================== reporting ===================== */

func (h Handlers) CallsSummary(c *gin.Context) {
	req, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{Range: req})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) EscrowSummary(c *gin.Context) {
	req, ok := parseRange(c)
	if !ok {
		return
	}
	out, err := h.Reporting.EscrowSummary(c.Request.Context(), reporting.EscrowSummaryRequest{
		Range:    req,
		Currency: c.Query("currency"),
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339"})
		return reporting.TimeRange{}, false
	}
	return reporting.TimeRange{From: from, To: to}, true
}

/* ===================== helpers ===================== */

func (h Handlers) publishCallEvent(c *gin.Context, name, sessionID string, payload gin.H) {
	if h.Publish == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	e := events.Event{
		ID:            uuid.NewString(),
		Name:          name,
		CorrelationID: sessionID,
		Payload:       body,
		OccurredAt:    time.Now().UTC(),
	}
	if err := h.Publish(c.Request.Context(), e); err != nil {
		logger.FromGin(c).Warn("event publish failed", "event", name, "session_id", sessionID, "err", err)
	}
}

func (h Handlers) mintToken(c *gin.Context, room, identity string, isHost bool) string {
	if h.RTC == nil || room == "" {
		return ""
	}
	token, err := h.RTC.AccessToken(room, identity, isHost)
	if err != nil {
		logger.FromGin(c).Warn("room token mint failed", "room", room, "identity", identity, "err", err)
		return ""
	}
	return token
}
