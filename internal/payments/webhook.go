package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"meetnmart/internal/events"
	"meetnmart/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const signatureHeader = "X-Paystack-Signature"

// ChargeEvent is the parsed webhook payload the rest of the system consumes.
type ChargeEvent struct {
	Reference   string       `json:"reference"`
	Status      ChargeStatus `json:"status"`
	AmountMinor int64        `json:"amount_minor"`
	Currency    string       `json:"currency"`

	// TransactionID is carried in charge metadata so the webhook can be
	// correlated without a reference lookup.
	TransactionID string `json:"transaction_id,omitempty"`
}

// WebhookHandler verifies and parses provider callbacks, then publishes
// payment events onto the notification channel. It never applies escrow
// transitions itself; the dispatcher routes the event to the manager.
type WebhookHandler struct {
	// Secret is the webhook signing secret from config.
	Secret string

	// Publish forwards the decoded event to the notification channel.
	Publish func(c *gin.Context, e events.Event) error
}

type webhookBody struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Metadata  struct {
			TransactionID string `json:"transaction_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// HandleChargeWebhook is the public webhook endpoint.
// Signature: hex(HMAC-SHA512(secret, raw body)).
func (h WebhookHandler) HandleChargeWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !validSignature(h.Secret, raw, c.GetHeader(signatureHeader)) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var name string
	switch body.Event {
	case "charge.success":
		name = events.EventChargeSuccess
	case "charge.failed":
		name = events.EventChargeFailed
	default:
		// Unknown provider events are acknowledged and ignored; the provider
		// retries on non-2xx and we do not want replays of events we skip.
		logger.FromGin(c).Debug("unhandled provider event", "event", body.Event)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ce := ChargeEvent{
		Reference:     body.Data.Reference,
		Status:        ChargeStatus(body.Data.Status),
		AmountMinor:   body.Data.Amount,
		Currency:      body.Data.Currency,
		TransactionID: body.Data.Metadata.TransactionID,
	}
	payload, err := json.Marshal(ce)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
		return
	}

	correlation := ce.TransactionID
	if correlation == "" {
		correlation = ce.Reference
	}

	if h.Publish != nil {
		e := events.Event{
			ID:            uuid.NewString(),
			Name:          name,
			CorrelationID: correlation,
			Payload:       payload,
			OccurredAt:    time.Now().UTC(),
		}
		if err := h.Publish(c, e); err != nil {
			// Non-2xx makes the provider retry, which is what we want here.
			logger.FromGin(c).Error("charge event publish failed", "reference", ce.Reference, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func validSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
