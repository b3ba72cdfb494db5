package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hoangnm/court-booking/internal/model"
)

// LoyaltyRepo provides access to the loyalty tables: the user_points
// ledger and the voucher catalogue with its per-user claims.
type LoyaltyRepo struct {
	db *sql.DB
}

// NewLoyaltyRepo returns a new LoyaltyRepo bound to the given database.
func NewLoyaltyRepo(db *sql.DB) *LoyaltyRepo { return &LoyaltyRepo{db: db} }

// InsertPoints appends a ledger entry.  The booking id is optional and
// only set for entries of type BOOKING.
func (r *LoyaltyRepo) InsertPoints(ctx context.Context, p *model.UserPoint) error {
	p.ID = uuid.NewString()
	const q = `INSERT INTO user_points (id, user_id, points, type, booking_id) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, p.ID, p.UserID, p.Points, p.Type, p.BookingID)
	return err
}

// HasBookingAward reports whether points were already awarded for the
// given booking.  Completion signals are delivered at least once; this
// lets the subscriber drop replays.
func (r *LoyaltyRepo) HasBookingAward(ctx context.Context, bookingID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM user_points WHERE booking_id = ? AND type = 'BOOKING')`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, bookingID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// TotalPoints returns the sum of a user's ledger entries.
func (r *LoyaltyRepo) TotalPoints(ctx context.Context, userID string) (int, error) {
	const q = `SELECT COALESCE(SUM(points), 0) FROM user_points WHERE user_id = ?`
	var total int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListUnlockable returns the vouchers whose required points are within the
// given total, ordered by required points.
func (r *LoyaltyRepo) ListUnlockable(ctx context.Context, totalPoints int) ([]model.Voucher, error) {
	const q = `SELECT id, name, description, required_points, discount_type, discount_value, valid_from, valid_to
	           FROM vouchers WHERE required_points <= ? ORDER BY required_points ASC`
	rows, err := r.db.QueryContext(ctx, q, totalPoints)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	vouchers := make([]model.Voucher, 0)
	for rows.Next() {
		var v model.Voucher
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Description, &v.RequiredPoints,
			&v.DiscountType, &v.DiscountValue, &v.ValidFrom, &v.ValidTo,
		); err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vouchers, nil
}

// GetVoucher returns a single voucher from the catalogue.  ErrNotFound is
// returned when the id does not exist.
func (r *LoyaltyRepo) GetVoucher(ctx context.Context, id string) (*model.Voucher, error) {
	const q = `SELECT id, name, description, required_points, discount_type, discount_value, valid_from, valid_to
	           FROM vouchers WHERE id = ?`
	var v model.Voucher
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&v.ID, &v.Name, &v.Description, &v.RequiredPoints,
		&v.DiscountType, &v.DiscountValue, &v.ValidFrom, &v.ValidTo,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// OwnedVoucherIDs returns the voucher ids already claimed by the user.
func (r *LoyaltyRepo) OwnedVoucherIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	const q = `SELECT voucher_id FROM user_vouchers WHERE user_id = ?`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	owned := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return owned, nil
}

// ClaimVouchers inserts CLAIMED user_vouchers rows for the given voucher
// ids in a single statement.  Passing an empty slice has no effect and
// returns nil.
func (r *LoyaltyRepo) ClaimVouchers(ctx context.Context, userID string, voucherIDs []string) error {
	if len(voucherIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	query := `INSERT INTO user_vouchers (id, user_id, voucher_id, status, claimed_at) VALUES `
	args := make([]interface{}, 0, len(voucherIDs)*5)
	placeholders := make([]string, 0, len(voucherIDs))
	for _, vid := range voucherIDs {
		placeholders = append(placeholders, "(?, ?, ?, 'CLAIMED', ?)")
		args = append(args, uuid.NewString(), userID, vid, now)
	}
	query += strings.Join(placeholders, ",")
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// ListUserVouchers returns the vouchers a user has claimed along with the
// claim status, newest first.
func (r *LoyaltyRepo) ListUserVouchers(ctx context.Context, userID string) ([]model.UserVoucher, error) {
	const q = `SELECT id, user_id, voucher_id, status, claimed_at
	           FROM user_vouchers WHERE user_id = ? ORDER BY claimed_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claims := make([]model.UserVoucher, 0)
	for rows.Next() {
		var uv model.UserVoucher
		if err := rows.Scan(&uv.ID, &uv.UserID, &uv.VoucherID, &uv.Status, &uv.ClaimedAt); err != nil {
			return nil, err
		}
		claims = append(claims, uv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claims, nil
}
