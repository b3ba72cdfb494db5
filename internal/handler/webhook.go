package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/payment"
)

// Provider event types delivered to the webhook.
const (
	eventPaymentCompleted = "payment.completed"
	eventPaymentFailed    = "payment.failed"
)

// WebhookHandler receives payment provider notifications.  Signature
// verification happens here; the state machine behind it only ever sees
// authentic references.
type WebhookHandler struct {
	Secret   string
	Payments *payment.Service
	Log      *zap.Logger
}

// NewWebhookHandler returns the webhook handler.
func NewWebhookHandler(secret string, payments *payment.Service, log *zap.Logger) *WebhookHandler {
	if secret == "" || payments == nil || log == nil {
		panic("NewWebhookHandler: nil dependency")
	}
	return &WebhookHandler{Secret: secret, Payments: payments, Log: log}
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Ref string `json:"ref"`
	} `json:"data"`
}

// Handle processes POST /v1/payments/webhook.  Stale or unknown
// references return 200 so the provider stops retrying; only transport
// and storage failures return an error status.
func (h *WebhookHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	sig := c.Request().Header.Get("X-Signature")
	if !h.verify(body, sig) {
		h.Log.Warn("webhook signature mismatch")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Data.Ref == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	ctx := c.Request().Context()
	switch ev.Type {
	case eventPaymentCompleted:
		err = h.Payments.HandleCompleted(ctx, ev.Data.Ref)
	case eventPaymentFailed:
		err = h.Payments.HandleFailed(ctx, ev.Data.Ref)
	default:
		// Unknown event types are acknowledged and ignored.
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	if err != nil {
		h.Log.Error("webhook processing failed",
			zap.String("type", ev.Type),
			zap.String("ref", ev.Data.Ref),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// verify checks the hex-encoded HMAC-SHA256 of the raw body.
func (h *WebhookHandler) verify(body []byte, sig string) bool {
	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}
