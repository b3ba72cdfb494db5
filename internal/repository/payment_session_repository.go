package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/hoangnm/court-booking/internal/model"
)

// PaymentSessionRepo provides access to the payment_sessions table.  The
// external provider is the source of truth for provider-side state; these
// rows are the local projection and are updated idempotently by the
// payment state machine.
type PaymentSessionRepo struct {
	db *sql.DB
}

// NewPaymentSessionRepo returns a new PaymentSessionRepo bound to the
// given database.
func NewPaymentSessionRepo(db *sql.DB) *PaymentSessionRepo { return &PaymentSessionRepo{db: db} }

// Insert persists a new payment session in status PENDING and populates
// the generated uuid on the provided model.
func (r *PaymentSessionRepo) Insert(ctx context.Context, s *model.PaymentSession) error {
	s.ID = uuid.NewString()
	s.Status = model.PaymentPending
	const q = `INSERT INTO payment_sessions (id, user_id, booking_id, amount_cents, currency, method, provider_ref, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.UserID, s.BookingID, s.AmountCents, s.Currency, s.Method, s.ProviderRef, s.Status,
	)
	return err
}

// GetByProviderRef looks a session up by the provider's opaque reference,
// the correlation key carried in webhook notifications.  ErrNotFound is
// returned for unknown references; callers treat that as a stale
// notification, not a failure.
func (r *PaymentSessionRepo) GetByProviderRef(ctx context.Context, ref string) (*model.PaymentSession, error) {
	const q = `SELECT id, user_id, booking_id, amount_cents, currency, method, provider_ref, status, created_at, updated_at
	           FROM payment_sessions WHERE provider_ref = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, ref))
}

// GetByBookingID returns the most recent payment session of a booking.
func (r *PaymentSessionRepo) GetByBookingID(ctx context.Context, bookingID string) (*model.PaymentSession, error) {
	const q = `SELECT id, user_id, booking_id, amount_cents, currency, method, provider_ref, status, created_at, updated_at
	           FROM payment_sessions WHERE booking_id = ? ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, bookingID))
}

// UpdateStatusIf transitions a session from one status to another and
// reports whether the transition happened, mirroring
// BookingRepo.UpdateStatusIf.
func (r *PaymentSessionRepo) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	const q = `UPDATE payment_sessions SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PaymentSessionRepo) scanOne(row *sql.Row) (*model.PaymentSession, error) {
	var s model.PaymentSession
	var ref sql.NullString
	err := row.Scan(
		&s.ID, &s.UserID, &s.BookingID, &s.AmountCents, &s.Currency, &s.Method,
		&ref, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if ref.Valid {
		v := ref.String
		s.ProviderRef = &v
	}
	return &s, nil
}
