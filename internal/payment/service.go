package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/model"
	"github.com/hoangnm/court-booking/internal/queue"
	"github.com/hoangnm/court-booking/internal/repository"
)

// ErrNotPayable is returned when a payment session is requested for a
// booking that is no longer PENDING.
var ErrNotPayable = errors.New("booking is not payable")

// SessionStore persists payment sessions.
type SessionStore interface {
	Insert(ctx context.Context, s *model.PaymentSession) error
	GetByProviderRef(ctx context.Context, ref string) (*model.PaymentSession, error)
	UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error)
}

// BookingStore is the slice of booking persistence the state machine
// needs.  Status transitions are conditional so that replayed webhook
// deliveries and racing cancel jobs collapse into no-ops.
type BookingStore interface {
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error)
	SetPaymentSession(ctx context.Context, bookingID, sessionID string) error
}

// CourtReader resolves a booking's court to find its center.
type CourtReader interface {
	GetByID(ctx context.Context, id string) (*model.Court, error)
}

// CenterReader resolves a center for pricing.
type CenterReader interface {
	GetByID(ctx context.Context, id string) (*model.Center, error)
}

// SignalPublisher emits the completion signal consumed by loyalty and
// notification subscribers.
type SignalPublisher interface {
	PublishBookingCompleted(ctx context.Context, ev queue.BookingCompletedEvent) error
}

// Service creates payment sessions and applies provider notifications to
// the booking/payment state machine.
type Service struct {
	sessions SessionStore
	bookings BookingStore
	courts   CourtReader
	centers  CenterReader
	provider Provider
	signals  SignalPublisher
	currency string
	log      *zap.Logger

	now func() time.Time
}

// NewService wires the payment service.  All dependencies are required.
func NewService(sessions SessionStore, bookings BookingStore, courts CourtReader, centers CenterReader, provider Provider, signals SignalPublisher, currency string, log *zap.Logger) *Service {
	if sessions == nil || bookings == nil || courts == nil || centers == nil || provider == nil || signals == nil || log == nil {
		panic("payment.NewService: nil dependency")
	}
	return &Service{
		sessions: sessions,
		bookings: bookings,
		courts:   courts,
		centers:  centers,
		provider: provider,
		signals:  signals,
		currency: currency,
		log:      log,
		now:      time.Now,
	}
}

// CreateSession opens a payment session for a PENDING booking owned by
// userID.  The amount is derived from the booking duration and the
// center's hourly price.  Card payments get a provider-side session and a
// client secret; counter methods are recorded locally only.
func (s *Service) CreateSession(ctx context.Context, userID, bookingID, method string) (*model.PaymentSession, string, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	if b.UserID != userID {
		return nil, "", repository.ErrForbidden
	}
	if b.Status != model.BookingPending {
		return nil, "", fmt.Errorf("%w: booking is %s", ErrNotPayable, b.Status)
	}

	court, err := s.courts.GetByID(ctx, b.CourtID)
	if err != nil {
		return nil, "", err
	}
	center, err := s.centers.GetByID(ctx, court.CenterID)
	if err != nil {
		return nil, "", err
	}
	amount := amountCents(b.StartTime, b.EndTime, center.PricePerHourCents)

	sess := &model.PaymentSession{
		UserID:      userID,
		BookingID:   bookingID,
		AmountCents: amount,
		Currency:    s.currency,
		Method:      method,
		Status:      model.PaymentPending,
	}

	var clientSecret string
	if method == model.MethodCard || method == model.MethodMomo {
		ref, secret, err := s.provider.CreateSession(ctx, amount, s.currency, bookingID)
		if err != nil {
			return nil, "", fmt.Errorf("provider session: %w", err)
		}
		sess.ProviderRef = &ref
		clientSecret = secret
	}

	if err := s.sessions.Insert(ctx, sess); err != nil {
		return nil, "", err
	}
	if err := s.bookings.SetPaymentSession(ctx, bookingID, sess.ID); err != nil {
		return nil, "", err
	}
	s.log.Info("payment session created",
		zap.String("booking_id", bookingID),
		zap.String("session_id", sess.ID),
		zap.String("method", method),
		zap.Uint32("amount_cents", amount))
	return sess, clientSecret, nil
}

// HandleCompleted applies a successful payment notification.  The call is
// idempotent: replayed notifications, notifications for unknown references
// and notifications arriving after the booking was cancelled all return
// nil without side effects.  The session is settled only after the
// completion signal has been handed to the broker, so a failed publish
// leaves the session PENDING and the provider's retry emits the signal
// again.  Delivery to subscribers is therefore at least once; they
// deduplicate on the booking id.
func (s *Service) HandleCompleted(ctx context.Context, providerRef string) error {
	sess, err := s.sessions.GetByProviderRef(ctx, providerRef)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("payment notification for unknown reference", zap.String("provider_ref", providerRef))
		return nil
	}
	if err != nil {
		return err
	}
	if sess.Status != model.PaymentPending {
		s.log.Info("payment session already settled",
			zap.String("session_id", sess.ID),
			zap.String("status", sess.Status))
		return nil
	}

	ok, err := s.bookings.UpdateStatusIf(ctx, sess.BookingID, model.BookingPending, model.BookingCompleted)
	if err != nil {
		return err
	}
	b, err := s.bookings.GetByID(ctx, sess.BookingID)
	if err != nil {
		return err
	}
	if !ok && b.Status != model.BookingCompleted {
		// Payment settled after the grace period cancelled the booking.
		// The session still moves to COMPLETED for the refund workflow.
		if _, err := s.sessions.UpdateStatusIf(ctx, sess.ID, model.PaymentPending, model.PaymentCompleted); err != nil {
			return err
		}
		s.log.Warn("payment completed for terminal booking",
			zap.String("booking_id", sess.BookingID),
			zap.String("session_id", sess.ID))
		return nil
	}
	// !ok with the booking already COMPLETED means an earlier delivery
	// moved the booking but failed before the signal was confirmed.
	// Publish again; the session is still PENDING.

	ev := queue.BookingCompletedEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		CourtID:     b.CourtID,
		StartsAt:    b.StartTime.UTC().Format(time.RFC3339),
		EndsAt:      b.EndTime.UTC().Format(time.RFC3339),
		CompletedAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.signals.PublishBookingCompleted(ctx, ev); err != nil {
		return fmt.Errorf("publish completion signal: %w", err)
	}
	if _, err := s.sessions.UpdateStatusIf(ctx, sess.ID, model.PaymentPending, model.PaymentCompleted); err != nil {
		return err
	}
	s.log.Info("booking completed", zap.String("booking_id", b.ID))
	return nil
}

// HandleFailed applies a failed or expired payment notification by
// cancelling both the session and the booking.  It follows the same
// idempotency rules as HandleCompleted and never emits a signal.
func (s *Service) HandleFailed(ctx context.Context, providerRef string) error {
	sess, err := s.sessions.GetByProviderRef(ctx, providerRef)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("payment notification for unknown reference", zap.String("provider_ref", providerRef))
		return nil
	}
	if err != nil {
		return err
	}

	ok, err := s.sessions.UpdateStatusIf(ctx, sess.ID, model.PaymentPending, model.PaymentCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, err := s.bookings.UpdateStatusIf(ctx, sess.BookingID, model.BookingPending, model.BookingCancelled); err != nil {
		return err
	}
	s.log.Info("payment failed, booking released",
		zap.String("booking_id", sess.BookingID),
		zap.String("session_id", sess.ID))
	return nil
}

// amountCents prices a half-open window at the center's hourly rate.
// Durations are validated to whole multiples of an hour upstream, but the
// rounding keeps partial hours sane should the rules ever relax.
func amountCents(start, end time.Time, perHourCents uint32) uint32 {
	hours := end.Sub(start).Hours()
	return uint32(hours*float64(perHourCents) + 0.5)
}
