package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hoangnm/court-booking/internal/model"
)

// BookingRepo provides access to the bookings table.  Bookings are the
// single source of truth for court occupancy: availability is decided by
// querying them, never by cached state.  Rows are inserted once and only
// their status (and payment session link) is ever updated afterwards.
// All timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Insert persists a new booking in status PENDING and populates the
// generated uuid and timestamps on the provided model.
func (r *BookingRepo) Insert(ctx context.Context, b *model.Booking) error {
	b.ID = uuid.NewString()
	b.Status = model.BookingPending
	const q = `INSERT INTO bookings (id, court_id, user_id, start_time, end_time, status)
	           VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q,
		b.ID, b.CourtID, b.UserID, b.StartTime.UTC(), b.EndTime.UTC(), b.Status,
	); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// HasOverlap reports whether any booking on the court with status other
// than CANCELLED intersects the half-open interval [start, end).  Two
// intervals intersect iff existing.start < end AND existing.end > start;
// the strict comparisons make adjacent bookings compatible.  This query
// mirrors model.Overlaps and is the only overlap predicate in SQL.
func (r *BookingRepo) HasOverlap(ctx context.Context, courtID string, start, end time.Time) (bool, error) {
	const q = `SELECT EXISTS (
	               SELECT 1 FROM bookings
	               WHERE court_id = ?
	                 AND status IN ('PENDING', 'COMPLETED')
	                 AND start_time < ?
	                 AND end_time > ?
	           )`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, courtID, end.UTC(), start.UTC()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// GetByID returns a single booking.  ErrNotFound is returned when the id
// does not exist.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	const q = `SELECT id, court_id, user_id, start_time, end_time, status, payment_session_id, created_at, updated_at
	           FROM bookings WHERE id = ?`
	var b model.Booking
	var sessionID sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.CourtID, &b.UserID, &b.StartTime, &b.EndTime, &b.Status,
		&sessionID, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		sid := sessionID.String
		b.PaymentSessionID = &sid
	}
	return &b, nil
}

// ListByUser returns all bookings created by the given user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	const q = `SELECT id, court_id, user_id, start_time, end_time, status, payment_session_id, created_at, updated_at
	           FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		var sessionID sql.NullString
		if err := rows.Scan(
			&b.ID, &b.CourtID, &b.UserID, &b.StartTime, &b.EndTime, &b.Status,
			&sessionID, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if sessionID.Valid {
			sid := sessionID.String
			b.PaymentSessionID = &sid
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateStatusIf transitions a booking from one status to another and
// reports whether the transition happened.  The conditional WHERE clause
// makes every caller idempotent: a redelivered cancel job or a replayed
// payment notification finds zero matching rows and changes nothing.
func (r *BookingRepo) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
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

// SetPaymentSession links a payment session to a booking.  The link is
// only written while the booking is still PENDING.
func (r *BookingRepo) SetPaymentSession(ctx context.Context, bookingID, sessionID string) error {
	const q = `UPDATE bookings SET payment_session_id = ? WHERE id = ? AND status = 'PENDING'`
	_, err := r.db.ExecContext(ctx, q, sessionID, bookingID)
	return err
}

// ListStalePending returns the ids of PENDING bookings created before the
// given cutoff.  The reconciler uses this as a backstop for cancel jobs
// that were lost between broker restarts.
func (r *BookingRepo) ListStalePending(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `SELECT id FROM bookings WHERE status = 'PENDING' AND created_at < ?`
	rows, err := r.db.QueryContext(ctx, q, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
