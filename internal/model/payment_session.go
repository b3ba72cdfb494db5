package model

import "time"

// Payment session statuses mirror booking statuses: the session is the
// local projection of provider-side state and is mutated idempotently by
// the payment state machine.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentCancelled = "CANCELLED"
)

// Payment methods accepted by the pay endpoint.  Only CARD reaches the
// external provider today; the others are settled at the counter and kept
// for parity with the mobile client.
const (
	MethodCard         = "CARD"
	MethodCash         = "CASH"
	MethodBankTransfer = "BANK_TRANSFER"
	MethodMomo         = "MOMO"
)

// PaymentSession is the local record of an outbound payment-provider
// session.  ProviderRef stores the provider's opaque session identifier
// and is the key by which webhook notifications are correlated back to a
// booking.
type PaymentSession struct {
	ID          string    `json:"id"`           // payment_sessions.id
	UserID      string    `json:"user_id"`      // payment_sessions.user_id
	BookingID   string    `json:"booking_id"`   // payment_sessions.booking_id
	AmountCents uint32    `json:"amount_cents"` // payment_sessions.amount_cents
	Currency    string    `json:"currency"`     // payment_sessions.currency
	Method      string    `json:"method"`       // payment_sessions.method
	ProviderRef *string   `json:"provider_ref"` // payment_sessions.provider_ref (nullable)
	Status      string    `json:"status"`       // payment_sessions.status
	CreatedAt   time.Time `json:"created_at"`   // payment_sessions.created_at
	UpdatedAt   time.Time `json:"updated_at"`   // payment_sessions.updated_at
}
