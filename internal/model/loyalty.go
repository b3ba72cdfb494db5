package model

import "time"

// Point entry types.
const (
	PointsBooking  = "BOOKING"
	PointsSpending = "ADDITIONAL_SPENDING"
	PointsRedeem   = "REDEEM"
)

// UserPoint is a single loyalty ledger entry.  Points are never updated in
// place; the user's balance is the sum over their entries.
type UserPoint struct {
	ID        string    // user_points.id
	UserID    string    // user_points.user_id
	Points    int       // user_points.points (negative for redemptions)
	Type      string    // user_points.type
	BookingID *string   // user_points.booking_id (nullable)
	CreatedAt time.Time // user_points.created_at
}

// Voucher is a reward unlockable by accumulated points.
type Voucher struct {
	ID             string    // vouchers.id
	Name           string    // vouchers.name
	Description    string    // vouchers.description
	RequiredPoints int       // vouchers.required_points
	DiscountType   string    // vouchers.discount_type (FIXED or PERCENTAGE)
	DiscountValue  float64   // vouchers.discount_value
	ValidFrom      time.Time // vouchers.valid_from
	ValidTo        time.Time // vouchers.valid_to
}

// UserVoucher links a claimed voucher to a user.
type UserVoucher struct {
	ID        string    // user_vouchers.id
	UserID    string    // user_vouchers.user_id
	VoucherID string    // user_vouchers.voucher_id
	Status    string    // user_vouchers.status (CLAIMED, USED, EXPIRED)
	ClaimedAt time.Time // user_vouchers.claimed_at
}
