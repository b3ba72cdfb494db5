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

// Subscriber reacts to a booking reaching COMPLETED.  The set of
// subscribers is enumerated statically at wiring time (loyalty accrual,
// email dispatch); there is no runtime registration.
type Subscriber interface {
	Name() string
	HandleBookingCompleted(ctx context.Context, ev BookingCompletedEvent) error
}

// StartCompletedConsumer consumes completion signals and fans each one
// out to every subscriber in order.  Subscriber failures are logged and
// do not block the other subscribers; the message is acked once all have
// been invoked, so side effects here are best-effort rather than
// transactional.  The function runs a reconnect loop and returns when
// the context is cancelled.
func StartCompletedConsumer(ctx context.Context, url string, subscribers []Subscriber, log *zap.Logger) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("completed-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			sleep(ctx, backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeCompleted(ctx, conn, subscribers, log); err != nil {
			log.Warn("completed-consumer: consume loop ended, reconnecting", zap.Error(err))
			_ = conn.Close()
			sleep(ctx, 2*time.Second)
			continue
		}
		_ = conn.Close()
		return
	}
}

func consumeCompleted(ctx context.Context, conn *amqp.Connection, subscribers []Subscriber, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareTopology(ch); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx, CompletedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		var ev BookingCompletedEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			log.Error("completed-consumer: bad payload, dropping", zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		for _, sub := range subscribers {
			if err := sub.HandleBookingCompleted(ctx, ev); err != nil {
				log.Error("completed-consumer: subscriber failed",
					zap.String("subscriber", sub.Name()),
					zap.String("booking_id", ev.BookingID),
					zap.Error(err))
			}
		}
		_ = d.Ack(false)
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("deliveries channel closed")
}
