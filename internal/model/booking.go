package model

import "time"

// Booking statuses.  A booking is created PENDING by the allocator and is
// transitioned to exactly one terminal status: COMPLETED by the payment
// state machine or CANCELLED by either the payment state machine or the
// delayed cancellation worker.  Bookings are never deleted; they form the
// audit trail of the court.
const (
	BookingPending   = "PENDING"
	BookingCompleted = "COMPLETED"
	BookingCancelled = "CANCELLED"
)

// Booking records a user's claim on one court for a half-open time
// interval [StartTime, EndTime).  For a given court, no two bookings with
// status other than CANCELLED may have intersecting intervals.
//
// Fields:
//
//	ID               – uuid primary key.
//	CourtID          – court being booked.
//	UserID           – user who made the booking.
//	StartTime        – interval start (inclusive), UTC.
//	EndTime          – interval end (exclusive), UTC.
//	Status           – PENDING, COMPLETED or CANCELLED.
//	PaymentSessionID – payment session linked by the pay endpoint (nullable).
//	CreatedAt        – creation timestamp.
//	UpdatedAt        – last update timestamp.
type Booking struct {
	ID               string    `json:"id"`                 // bookings.id
	CourtID          string    `json:"court_id"`           // bookings.court_id
	UserID           string    `json:"user_id"`            // bookings.user_id
	StartTime        time.Time `json:"start_time"`         // bookings.start_time
	EndTime          time.Time `json:"end_time"`           // bookings.end_time
	Status           string    `json:"status"`             // bookings.status
	PaymentSessionID *string   `json:"payment_session_id"` // bookings.payment_session_id (nullable)
	CreatedAt        time.Time `json:"created_at"`         // bookings.created_at
	UpdatedAt        time.Time `json:"updated_at"`         // bookings.updated_at
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.  The comparison is strict on both sides so
// that back-to-back bookings sharing a boundary instant do not conflict.
// This is the sole overlap predicate in the codebase; the SQL in the
// booking repository mirrors it exactly.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
