package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"meetnmart/internal/events"

	"github.com/gin-gonic/gin"
)

const testSecret = "whsec_test"

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, h WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/webhooks/payments/charge", h.HandleChargeWebhook)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/charge", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Paystack-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func chargeBody(event, reference, txID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": event,
		"data": map[string]any{
			"reference": reference,
			"status":    "success",
			"amount":    5000,
			"currency":  "NGN",
			"metadata":  map[string]any{"transaction_id": txID},
		},
	})
	return body
}

func TestChargeWebhook_Success(t *testing.T) {
	var published []events.Event
	h := WebhookHandler{
		Secret: testSecret,
		Publish: func(c *gin.Context, e events.Event) error {
			published = append(published, e)
			return nil
		},
	}

	body := chargeBody("charge.success", "ref-1", "tx-1")
	w := postWebhook(t, h, body, sign(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	e := published[0]
	if e.Name != events.EventChargeSuccess {
		t.Fatalf("expected %s, got %s", events.EventChargeSuccess, e.Name)
	}
	if e.CorrelationID != "tx-1" {
		t.Fatalf("expected transaction correlation, got %q", e.CorrelationID)
	}

	var ce ChargeEvent
	if err := json.Unmarshal(e.Payload, &ce); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ce.Reference != "ref-1" || ce.AmountMinor != 5000 || ce.Currency != "NGN" {
		t.Fatalf("unexpected charge event: %+v", ce)
	}
}

func TestChargeWebhook_FallsBackToReferenceCorrelation(t *testing.T) {
	var published []events.Event
	h := WebhookHandler{
		Secret: testSecret,
		Publish: func(c *gin.Context, e events.Event) error {
			published = append(published, e)
			return nil
		},
	}

	body := chargeBody("charge.failed", "ref-9", "")
	w := postWebhook(t, h, body, sign(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(published) != 1 || published[0].CorrelationID != "ref-9" {
		t.Fatalf("expected reference correlation, got %+v", published)
	}
	if published[0].Name != events.EventChargeFailed {
		t.Fatalf("expected %s, got %s", events.EventChargeFailed, published[0].Name)
	}
}

func TestChargeWebhook_RejectsBadSignature(t *testing.T) {
	var published int
	h := WebhookHandler{
		Secret: testSecret,
		Publish: func(c *gin.Context, e events.Event) error {
			published++
			return nil
		},
	}

	body := chargeBody("charge.success", "ref-1", "tx-1")

	if w := postWebhook(t, h, body, "deadbeef"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong signature: expected 401, got %d", w.Code)
	}
	if w := postWebhook(t, h, body, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: expected 401, got %d", w.Code)
	}
	if published != 0 {
		t.Fatalf("unverified callbacks must not publish")
	}
}

func TestChargeWebhook_IgnoresUnknownEvents(t *testing.T) {
	var published int
	h := WebhookHandler{
		Secret: testSecret,
		Publish: func(c *gin.Context, e events.Event) error {
			published++
			return nil
		},
	}

	body := chargeBody("transfer.success", "ref-1", "tx-1")
	w := postWebhook(t, h, body, sign(body))
	if w.Code != http.StatusOK {
		t.Fatalf("unknown events must be acked, got %d", w.Code)
	}
	if published != 0 {
		t.Fatalf("unknown events must not publish")
	}
}

func TestChargeWebhook_PublishFailureTriggersRetry(t *testing.T) {
	h := WebhookHandler{
		Secret: testSecret,
		Publish: func(c *gin.Context, e events.Event) error {
			return errors.New("channel down")
		},
	}

	body := chargeBody("charge.success", "ref-1", "tx-1")
	w := postWebhook(t, h, body, sign(body))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("publish failure must return non-2xx, got %d", w.Code)
	}
}
