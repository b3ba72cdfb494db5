// Package payment implements the payment-session lifecycle and the
// booking/payment state machine driven by provider notifications.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Provider creates payment sessions with the external payment provider.
// The core only needs session creation; webhook delivery is verified and
// parsed by the HTTP layer before it reaches the state machine.
type Provider interface {
	// CreateSession opens a provider-side session for the given amount and
	// returns the provider's opaque reference plus an optional client
	// secret for the front end.
	CreateSession(ctx context.Context, amountCents uint32, currency, bookingID string) (ref, clientSecret string, err error)
}

// HTTPProvider talks to a Stripe-style payment-intent API over HTTPS.  It
// is a constructed, injected client instance; no package-level state.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider returns a provider client for the given endpoint.
func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FakeProvider issues locally generated references without calling out.
// Used when no provider endpoint is configured, so development setups can
// exercise the full payment flow by posting webhooks with the returned
// reference.
type FakeProvider struct{}

// CreateSession returns a synthetic reference and client secret.
func (FakeProvider) CreateSession(_ context.Context, _ uint32, _, _ string) (string, string, error) {
	ref := "fake_" + uuid.NewString()
	return ref, "secret_" + ref, nil
}

type intentRequest struct {
	AmountCents uint32            `json:"amount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// CreateSession posts a payment intent and returns the provider
// reference.  The booking id travels in the intent metadata so provider
// dashboards can be correlated back to bookings.
func (p *HTTPProvider) CreateSession(ctx context.Context, amountCents uint32, currency, bookingID string) (string, string, error) {
	body, err := json.Marshal(intentRequest{
		AmountCents: amountCents,
		Currency:    currency,
		Metadata:    map[string]string{"booking_id": bookingID},
	})
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("create payment intent: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("create payment intent: provider returned %s", resp.Status)
	}
	var out intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode payment intent: %w", err)
	}
	return out.ID, out.ClientSecret, nil
}
