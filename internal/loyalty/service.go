// Package loyalty awards points for completed bookings and unlocks
// vouchers as balances grow.  It consumes completion signals off the
// message broker; nothing in the booking path calls it directly.
package loyalty

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/model"
	"github.com/hoangnm/court-booking/internal/queue"
)

// PointsPerHour is the award rate for completed bookings.
const PointsPerHour = 100

// ErrInsufficientPoints is returned when a redemption asks for more
// points than the user's balance holds.
var ErrInsufficientPoints = errors.New("not enough points")

// ErrAlreadyClaimed is returned when the user already owns the voucher.
var ErrAlreadyClaimed = errors.New("voucher already claimed")

// Store is the persistence surface the service needs.
type Store interface {
	InsertPoints(ctx context.Context, p *model.UserPoint) error
	HasBookingAward(ctx context.Context, bookingID string) (bool, error)
	TotalPoints(ctx context.Context, userID string) (int, error)
	GetVoucher(ctx context.Context, id string) (*model.Voucher, error)
	ListUnlockable(ctx context.Context, totalPoints int) ([]model.Voucher, error)
	OwnedVoucherIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	ClaimVouchers(ctx context.Context, userID string, voucherIDs []string) error
	ListUserVouchers(ctx context.Context, userID string) ([]model.UserVoucher, error)
}

// Service implements the loyalty subscriber and the query API behind the
// loyalty HTTP endpoints.
type Service struct {
	store Store
	log   *zap.Logger
}

// NewService wires the loyalty service.
func NewService(store Store, log *zap.Logger) *Service {
	if store == nil || log == nil {
		panic("loyalty.NewService: nil dependency")
	}
	return &Service{store: store, log: log}
}

// Name identifies this subscriber in consumer logs.
func (s *Service) Name() string { return "loyalty" }

// HandleBookingCompleted awards points for the booking and claims any
// vouchers the new balance unlocks.  Delivery is at-least-once; a replay
// finds the booking's BOOKING ledger entry already present and is dropped
// without a second award.
func (s *Service) HandleBookingCompleted(ctx context.Context, ev queue.BookingCompletedEvent) error {
	start, err := time.Parse(time.RFC3339, ev.StartsAt)
	if err != nil {
		return err
	}
	end, err := time.Parse(time.RFC3339, ev.EndsAt)
	if err != nil {
		return err
	}
	awarded, err := s.store.HasBookingAward(ctx, ev.BookingID)
	if err != nil {
		return err
	}
	if awarded {
		s.log.Info("completion signal replayed, points already awarded",
			zap.String("booking_id", ev.BookingID))
		return nil
	}
	points := int(end.Sub(start).Hours()) * PointsPerHour
	bookingID := ev.BookingID
	entry := &model.UserPoint{
		UserID:    ev.UserID,
		Points:    points,
		Type:      model.PointsBooking,
		BookingID: &bookingID,
	}
	if err := s.store.InsertPoints(ctx, entry); err != nil {
		return err
	}
	s.log.Info("points awarded",
		zap.String("user_id", ev.UserID),
		zap.String("booking_id", ev.BookingID),
		zap.Int("points", points))
	return s.unlockVouchers(ctx, ev.UserID)
}

// unlockVouchers claims every voucher within the user's balance that is
// not already owned.
func (s *Service) unlockVouchers(ctx context.Context, userID string) error {
	total, err := s.store.TotalPoints(ctx, userID)
	if err != nil {
		return err
	}
	unlockable, err := s.store.ListUnlockable(ctx, total)
	if err != nil {
		return err
	}
	if len(unlockable) == 0 {
		return nil
	}
	owned, err := s.store.OwnedVoucherIDs(ctx, userID)
	if err != nil {
		return err
	}
	newIDs := make([]string, 0, len(unlockable))
	for _, v := range unlockable {
		if _, ok := owned[v.ID]; !ok {
			newIDs = append(newIDs, v.ID)
		}
	}
	if len(newIDs) == 0 {
		return nil
	}
	if err := s.store.ClaimVouchers(ctx, userID, newIDs); err != nil {
		return err
	}
	s.log.Info("vouchers unlocked",
		zap.String("user_id", userID),
		zap.Int("count", len(newIDs)))
	return nil
}

// Redeem exchanges points for a voucher the user does not yet own.  The
// deduction is a negative REDEEM ledger entry, so the balance stays a
// plain sum over entries.
func (s *Service) Redeem(ctx context.Context, userID, voucherID string) (*model.Voucher, error) {
	v, err := s.store.GetVoucher(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	owned, err := s.store.OwnedVoucherIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := owned[voucherID]; ok {
		return nil, ErrAlreadyClaimed
	}
	total, err := s.store.TotalPoints(ctx, userID)
	if err != nil {
		return nil, err
	}
	if total < v.RequiredPoints {
		return nil, ErrInsufficientPoints
	}
	entry := &model.UserPoint{
		UserID: userID,
		Points: -v.RequiredPoints,
		Type:   model.PointsRedeem,
	}
	if err := s.store.InsertPoints(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.store.ClaimVouchers(ctx, userID, []string{voucherID}); err != nil {
		return nil, err
	}
	s.log.Info("voucher redeemed",
		zap.String("user_id", userID),
		zap.String("voucher_id", voucherID),
		zap.Int("points", v.RequiredPoints))
	return v, nil
}

// Balance returns the user's current point total.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	return s.store.TotalPoints(ctx, userID)
}

// Vouchers returns the vouchers the user has claimed.
func (s *Service) Vouchers(ctx context.Context, userID string) ([]model.UserVoucher, error) {
	return s.store.ListUserVouchers(ctx, userID)
}
