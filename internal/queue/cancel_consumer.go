package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Canceller is the slice of the booking core the cancel consumer needs.
type Canceller interface {
	CancelIfPending(ctx context.Context, bookingID string) (bool, error)
}

// StartCancelConsumer connects to the broker, declares the cancel
// topology and consumes expired cancel jobs.  The function runs a
// reconnect loop with exponential backoff and only returns when the
// context is cancelled.  Jobs are acked after a successful conditional
// cancel; storage errors requeue the job so it fires again.
func StartCancelConsumer(ctx context.Context, url string, canceller Canceller, log *zap.Logger) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("cancel-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			sleep(ctx, backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeCancelJobs(ctx, conn, canceller, log); err != nil {
			log.Warn("cancel-consumer: consume loop ended, reconnecting", zap.Error(err))
			_ = conn.Close()
			sleep(ctx, 2*time.Second)
			continue
		}
		_ = conn.Close()
		return // context cancelled
	}
}

func consumeCancelJobs(ctx context.Context, conn *amqp.Connection, canceller Canceller, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		log.Warn("cancel-consumer: set QoS failed", zap.Error(err))
	}
	if err := declareTopology(ch); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx, CancelQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		var job CancelJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			log.Error("cancel-consumer: bad payload, dropping", zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		cancelled, err := canceller.CancelIfPending(ctx, job.BookingID)
		if err != nil {
			// Storage hiccup: requeue so the job fires again.
			log.Warn("cancel-consumer: cancel failed, requeueing",
				zap.String("booking_id", job.BookingID), zap.Error(err))
			_ = d.Nack(false, true)
			sleep(ctx, time.Second)
			continue
		}
		if !cancelled {
			// Already COMPLETED or CANCELLED; the job is consumed either way.
			log.Debug("cancel-consumer: booking already terminal",
				zap.String("booking_id", job.BookingID))
		}
		_ = d.Ack(false)
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("deliveries channel closed")
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
