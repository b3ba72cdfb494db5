package booking

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/lock"
	"github.com/hoangnm/court-booking/internal/model"
)

// CourtLister supplies the candidate courts of a center, filtered to
// status AVAILABLE, in a stable deterministic order.
type CourtLister interface {
	ListAvailableByCenter(ctx context.Context, centerID string) ([]model.Court, error)
}

// Store is the slice of booking persistence the core needs.  The
// reservation store is the single source of truth for overlap; the lock
// only serializes writers, it does not itself prevent double booking.
type Store interface {
	Insert(ctx context.Context, b *model.Booking) error
	HasOverlap(ctx context.Context, courtID string, start, end time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error)
}

// CancelScheduler enqueues the delayed reclaim job fired when a booking
// is still unpaid after the grace period.  Delivery is durable and
// at-least-once.
type CancelScheduler interface {
	Schedule(ctx context.Context, bookingID string, delay time.Duration) error
}

// Allocator composes the validator, the availability scan, the
// distributed lock and the cancellation scheduler into the booking
// allocation algorithm.  One successful Allocate call inserts exactly one
// PENDING booking and schedules exactly one cancel job; lock entries are
// created and released transiently.
//
// Allocate is not idempotent across caller retries: retrying the same
// logical request may create a second booking.  Callers that need
// idempotent retry must deduplicate on their side.
type Allocator struct {
	courts    CourtLister
	store     Store
	locks     lock.Locker
	scheduler CancelScheduler
	rules     Rules
	lockTTL   time.Duration
	grace     time.Duration
	log       *zap.Logger
}

// NewAllocator constructs an Allocator.  All dependencies must be
// non-nil.  lockTTL must comfortably exceed the latency of one overlap
// re-check plus one insert; grace is the payment window granted to new
// bookings.
func NewAllocator(courts CourtLister, store Store, locks lock.Locker, scheduler CancelScheduler, rules Rules, lockTTL, grace time.Duration, log *zap.Logger) *Allocator {
	if courts == nil || store == nil || locks == nil || scheduler == nil || log == nil {
		panic("nil dependency passed to NewAllocator")
	}
	return &Allocator{
		courts:    courts,
		store:     store,
		locks:     locks,
		scheduler: scheduler,
		rules:     rules,
		lockTTL:   lockTTL,
		grace:     grace,
		log:       log,
	}
}

// Allocate claims one court of the center for the half-open window
// [start, end) on behalf of userID.  Candidates are tried strictly in the
// lister's order.  For each candidate the algorithm pre-checks overlap,
// takes the slot lock, re-checks overlap under the lock and only then
// inserts.  The second check is what closes the race between the first
// scan and the lock grant; do not collapse the two checks into one.
//
// Errors: ErrInvalidWindow for a window violating the rules,
// ErrNoCourtAvailable when no candidate could be claimed, and
// ErrAllocationFailed when storage became unavailable mid-flight.  Lock
// contention is never surfaced; a contended candidate is skipped.
func (a *Allocator) Allocate(ctx context.Context, centerID, userID string, start, end time.Time) (*model.Booking, error) {
	if err := a.rules.Validate(start, end); err != nil {
		return nil, err
	}

	candidates, err := a.courts.ListAvailableByCenter(ctx, centerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list courts: %v", ErrAllocationFailed, err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCourtAvailable
	}

	for _, court := range candidates {
		booked, err := a.store.HasOverlap(ctx, court.ID, start, end)
		if err != nil {
			return nil, fmt.Errorf("%w: overlap check: %v", ErrAllocationFailed, err)
		}
		if booked {
			continue
		}

		key := lock.SlotKey(centerID, court.ID, start)
		token := lock.NewToken(userID)
		acquired, err := a.locks.Acquire(ctx, key, token, a.lockTTL)
		if err != nil {
			a.log.Warn("lock acquire failed, skipping court",
				zap.String("court_id", court.ID), zap.Error(err))
			continue
		}
		if !acquired {
			// Another caller holds this slot; try the next court.
			continue
		}

		b, err := a.claimLocked(ctx, court.ID, userID, start, end)
		if released, relErr := a.locks.Release(ctx, key, token); relErr != nil {
			a.log.Warn("lock release failed; entry will expire by TTL",
				zap.String("key", key), zap.Error(relErr))
		} else if !released {
			// The critical section outran the TTL.  The insert already
			// happened (or didn't), so correctness is preserved by the
			// overlap re-check, but this is worth noticing in production.
			a.log.Warn("lock expired before release", zap.String("key", key))
		}
		if err != nil {
			if errors.Is(err, ErrAllocationFailed) {
				return nil, err
			}
			// Conflict on this candidate only; move on.
			continue
		}
		if b == nil {
			continue // overlap appeared while we waited for the lock
		}

		if err := a.scheduler.Schedule(ctx, b.ID, a.grace); err != nil {
			// The booking stands; the periodic reconciler cancels overdue
			// PENDING bookings whose job was lost.
			a.log.Error("schedule cancel job failed",
				zap.String("booking_id", b.ID), zap.Error(err))
		}
		a.log.Info("booking allocated",
			zap.String("booking_id", b.ID),
			zap.String("court_id", court.ID),
			zap.String("user_id", userID),
			zap.Time("start", start), zap.Time("end", end))
		return b, nil
	}

	return nil, ErrNoCourtAvailable
}

// claimLocked runs the critical section: re-check overlap, then insert.
// It returns (nil, nil) when the slot was taken between the first scan
// and the lock grant.
func (a *Allocator) claimLocked(ctx context.Context, courtID, userID string, start, end time.Time) (*model.Booking, error) {
	booked, err := a.store.HasOverlap(ctx, courtID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: overlap re-check: %v", ErrAllocationFailed, err)
	}
	if booked {
		return nil, nil
	}

	b := &model.Booking{
		CourtID:   courtID,
		UserID:    userID,
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
	}
	if err := a.store.Insert(ctx, b); err != nil {
		if isStorageDown(err) {
			return nil, fmt.Errorf("%w: insert: %v", ErrAllocationFailed, err)
		}
		a.log.Warn("booking insert conflicted, trying next court",
			zap.String("court_id", courtID), zap.Error(err))
		return nil, err
	}
	return b, nil
}

// CancelIfPending transitions a booking to CANCELLED if and only if it is
// still PENDING, returning whether the transition happened.  COMPLETED
// and already-CANCELLED bookings are left untouched, which makes the
// at-least-once cancel job and the reconciler both safe to re-run.
func (a *Allocator) CancelIfPending(ctx context.Context, bookingID string) (bool, error) {
	cancelled, err := a.store.UpdateStatusIf(ctx, bookingID, model.BookingPending, model.BookingCancelled)
	if err != nil {
		return false, fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}
	if cancelled {
		a.log.Info("unpaid booking cancelled", zap.String("booking_id", bookingID))
	}
	return cancelled, nil
}

// isStorageDown classifies persistence errors that indicate the store is
// unreachable rather than a conflict on one row.  These abort the whole
// allocation; everything else just skips the current candidate.
func isStorageDown(err error) bool {
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
