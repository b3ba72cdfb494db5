// Package worker runs the periodic reconciler that backstops the delayed
// cancellation queue.  If a scheduled cancel job was lost (broker outage,
// publish failure after insert), the reconciler sweeps stale PENDING
// bookings and cancels them.
package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StaleLister finds bookings still PENDING past the grace period.
type StaleLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Canceller performs the idempotent PENDING to CANCELLED transition.
type Canceller interface {
	CancelIfPending(ctx context.Context, bookingID string) (bool, error)
}

// Reconciler sweeps stale unpaid bookings on a fixed interval.
type Reconciler struct {
	bookings StaleLister
	cancels  Canceller
	grace    time.Duration
	interval time.Duration
	sched    gocron.Scheduler
	log      *zap.Logger
}

// slack is added on top of the grace period so the reconciler never
// races a healthy queue delivery for the same booking.
const slack = time.Minute

// NewReconciler builds the worker.  interval controls how often the sweep
// runs; grace must match the payment grace period used by the allocator.
func NewReconciler(bookings StaleLister, cancels Canceller, grace, interval time.Duration, log *zap.Logger) (*Reconciler, error) {
	if bookings == nil || cancels == nil || log == nil {
		panic("worker.NewReconciler: nil dependency")
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		bookings: bookings,
		cancels:  cancels,
		grace:    grace,
		interval: interval,
		sched:    sched,
		log:      log,
	}, nil
}

// Start registers the sweep job and starts the scheduler.  The first run
// happens immediately so restarts clear backlog without waiting a full
// interval.
func (r *Reconciler) Start(ctx context.Context) error {
	_, err := r.sched.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.sweep(ctx) }),
		gocron.WithName("cancel-stale-bookings"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}
	r.sched.Start()
	r.log.Info("reconciler started",
		zap.Duration("interval", r.interval),
		zap.Duration("grace", r.grace))
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (r *Reconciler) Stop() error { return r.sched.Shutdown() }

func (r *Reconciler) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-(r.grace + slack))
	ids, err := r.bookings.ListStalePending(ctx, cutoff)
	if err != nil {
		r.log.Error("reconciler: list stale bookings", zap.Error(err))
		return
	}
	for _, id := range ids {
		cancelled, err := r.cancels.CancelIfPending(ctx, id)
		if err != nil {
			r.log.Error("reconciler: cancel booking", zap.String("booking_id", id), zap.Error(err))
			continue
		}
		if cancelled {
			r.log.Warn("reconciler cancelled stale booking", zap.String("booking_id", id))
		}
	}
}
