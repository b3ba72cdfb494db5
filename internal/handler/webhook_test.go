package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/model"
	"github.com/hoangnm/court-booking/internal/payment"
	"github.com/hoangnm/court-booking/internal/queue"
	"github.com/hoangnm/court-booking/internal/repository"
)

// Minimal stubs; the webhook tests only exercise verification and the
// soft-failure path for unknown references.

type stubSessions struct{}

func (stubSessions) Insert(context.Context, *model.PaymentSession) error { return nil }
func (stubSessions) GetByProviderRef(context.Context, string) (*model.PaymentSession, error) {
	return nil, repository.ErrNotFound
}
func (stubSessions) UpdateStatusIf(context.Context, string, string, string) (bool, error) {
	return false, nil
}

type stubBookings struct{}

func (stubBookings) GetByID(context.Context, string) (*model.Booking, error) {
	return nil, repository.ErrNotFound
}
func (stubBookings) UpdateStatusIf(context.Context, string, string, string) (bool, error) {
	return false, nil
}
func (stubBookings) SetPaymentSession(context.Context, string, string) error { return nil }

type stubCourts struct{}

func (stubCourts) GetByID(context.Context, string) (*model.Court, error) {
	return &model.Court{}, nil
}

type stubCenters struct{}

func (stubCenters) GetByID(context.Context, string) (*model.Center, error) {
	return &model.Center{}, nil
}

type stubSignals struct{}

func (stubSignals) PublishBookingCompleted(context.Context, queue.BookingCompletedEvent) error {
	return nil
}

const testSecret = "whsec_test"

func newWebhookHandler(t *testing.T) *WebhookHandler {
	t.Helper()
	svc := payment.NewService(
		stubSessions{}, stubBookings{}, stubCourts{}, stubCenters{},
		payment.FakeProvider{}, stubSignals{}, "VND", zap.NewNop(),
	)
	return NewWebhookHandler(testSecret, svc, zap.NewNop())
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func post(h *WebhookHandler, body, sig string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sig != "" {
		req.Header.Set("X-Signature", sig)
	}
	rec := httptest.NewRecorder()
	_ = h.Handle(e.NewContext(req, rec))
	return rec
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h := newWebhookHandler(t)
	rec := post(h, `{"type":"payment.completed","data":{"ref":"pi_1"}}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	h := newWebhookHandler(t)
	body := `{"type":"payment.completed","data":{"ref":"pi_1"}}`
	tampered := `{"type":"payment.completed","data":{"ref":"pi_2"}}`
	rec := post(h, tampered, sign(body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookAcksUnknownReference(t *testing.T) {
	h := newWebhookHandler(t)
	body := `{"type":"payment.completed","data":{"ref":"pi_unknown"}}`
	rec := post(h, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("stale notification must be acknowledged, got %d", rec.Code)
	}
}

func TestWebhookAcksUnknownEventType(t *testing.T) {
	h := newWebhookHandler(t)
	body := `{"type":"payment.refund_created","data":{"ref":"pi_1"}}`
	rec := post(h, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown event types are ignored with 200, got %d", rec.Code)
	}
}

func TestWebhookRejectsEmptyRef(t *testing.T) {
	h := newWebhookHandler(t)
	body := `{"type":"payment.completed","data":{}}`
	rec := post(h, body, sign(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing ref, got %d", rec.Code)
	}
}
