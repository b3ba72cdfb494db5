// Package queue defines message payloads exchanged over the message broker
// along with the publisher and consumers that move them.
package queue

// Queue names.  All queues are durable and all messages persistent so
// that scheduled cancellations and completion signals survive broker and
// process restarts.
const (
	// CancelWaitQueue parks cancel jobs for the duration of the payment
	// grace period.  It has no consumer: messages expire via their
	// per-message TTL and are dead-lettered into CancelQueue.
	CancelWaitQueue = "booking.cancel.wait"
	// CancelQueue is the work queue the cancellation consumer reads.
	CancelQueue = "booking.cancel"
	// CompletedQueue carries completion signals to downstream
	// subscribers (loyalty, email).
	CompletedQueue = "booking.completed"
)

// CancelJob asks the consumer to cancel one booking if it is still
// unpaid.  Firing is at-least-once; the conditional status update on the
// consumer side makes redelivery harmless.
type CancelJob struct {
	BookingID string `json:"booking_id"`
}

// BookingCompletedEvent is published exactly once per booking, when the
// payment state machine moves it to COMPLETED.  It carries enough for
// downstream consumers to act without querying the primary database.
type BookingCompletedEvent struct {
	BookingID   string `json:"booking_id"`
	UserID      string `json:"user_id"`
	CourtID     string `json:"court_id"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
	CompletedAt string `json:"completed_at"`
}
