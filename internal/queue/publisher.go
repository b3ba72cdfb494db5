package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher holds a long-lived connection to the broker and publishes
// cancel jobs and completion events.  It implements
// booking.CancelScheduler and payment.SignalPublisher.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *zap.Logger
}

// NewPublisher dials the broker, declares the queue topology and returns
// a ready publisher.  Declaration is idempotent, so publisher and
// consumers may race on startup.
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, log: log}, nil
}

// declareTopology declares the three queues.  The wait queue has no
// consumer; expired messages are dead-lettered through the default
// exchange into the cancel work queue, which is what turns a per-message
// TTL into a durable delayed job.
func declareTopology(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(CancelQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", CancelQueue, err)
	}
	waitArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": CancelQueue,
	}
	if _, err := ch.QueueDeclare(CancelWaitQueue, true, false, false, false, waitArgs); err != nil {
		return fmt.Errorf("declare %s: %w", CancelWaitQueue, err)
	}
	if _, err := ch.QueueDeclare(CompletedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", CompletedQueue, err)
	}
	return nil
}

// Schedule enqueues a cancel job that fires after the given delay.  The
// job is persistent and parked on the wait queue with the delay as its
// per-message TTL.  All jobs carry the same grace period, so TTL ordering
// at the queue head is monotonic and no job blocks an earlier one.
func (p *Publisher) Schedule(ctx context.Context, bookingID string, delay time.Duration) error {
	body, err := json.Marshal(CancelJob{BookingID: bookingID})
	if err != nil {
		return fmt.Errorf("marshal cancel job: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", CancelWaitQueue, false, false, pub); err != nil {
		return fmt.Errorf("publish cancel job: %w", err)
	}
	p.log.Debug("cancel job scheduled",
		zap.String("booking_id", bookingID), zap.Duration("delay", delay))
	return nil
}

// PublishBookingCompleted sends the completion signal to the completed
// queue.  Messages are persistent so downstream consumers still see the
// signal after a broker restart.
func (p *Publisher) PublishBookingCompleted(ctx context.Context, ev BookingCompletedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal completed event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", CompletedQueue, false, false, pub); err != nil {
		return fmt.Errorf("publish completed event: %w", err)
	}
	return nil
}

// Close tears down the channel and connection.
func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
