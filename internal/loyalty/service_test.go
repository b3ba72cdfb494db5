package loyalty

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/model"
	"github.com/hoangnm/court-booking/internal/queue"
	"github.com/hoangnm/court-booking/internal/repository"
)

type fakeStore struct {
	points   []*model.UserPoint
	vouchers []model.Voucher
	claimed  map[string][]string // user id -> voucher ids
}

func newFakeStore(vouchers ...model.Voucher) *fakeStore {
	return &fakeStore{vouchers: vouchers, claimed: make(map[string][]string)}
}

func (f *fakeStore) InsertPoints(_ context.Context, p *model.UserPoint) error {
	cp := *p
	f.points = append(f.points, &cp)
	return nil
}

func (f *fakeStore) HasBookingAward(_ context.Context, bookingID string) (bool, error) {
	for _, p := range f.points {
		if p.Type == model.PointsBooking && p.BookingID != nil && *p.BookingID == bookingID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetVoucher(_ context.Context, id string) (*model.Voucher, error) {
	for _, v := range f.vouchers {
		if v.ID == id {
			cp := v
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) TotalPoints(_ context.Context, userID string) (int, error) {
	total := 0
	for _, p := range f.points {
		if p.UserID == userID {
			total += p.Points
		}
	}
	return total, nil
}

func (f *fakeStore) ListUnlockable(_ context.Context, totalPoints int) ([]model.Voucher, error) {
	var out []model.Voucher
	for _, v := range f.vouchers {
		if v.RequiredPoints <= totalPoints {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeStore) OwnedVoucherIDs(_ context.Context, userID string) (map[string]struct{}, error) {
	owned := make(map[string]struct{})
	for _, id := range f.claimed[userID] {
		owned[id] = struct{}{}
	}
	return owned, nil
}

func (f *fakeStore) ClaimVouchers(_ context.Context, userID string, voucherIDs []string) error {
	f.claimed[userID] = append(f.claimed[userID], voucherIDs...)
	return nil
}

func (f *fakeStore) ListUserVouchers(_ context.Context, userID string) ([]model.UserVoucher, error) {
	var out []model.UserVoucher
	for _, id := range f.claimed[userID] {
		out = append(out, model.UserVoucher{UserID: userID, VoucherID: id, Status: "CLAIMED"})
	}
	return out, nil
}

func completedEvent(hours int) queue.BookingCompletedEvent {
	start := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	return queue.BookingCompletedEvent{
		BookingID:   "bk-1",
		UserID:      "user-1",
		CourtID:     "court-1",
		StartsAt:    start.Format(time.RFC3339),
		EndsAt:      start.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339),
		CompletedAt: start.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339),
	}
}

func TestHandleBookingCompletedAwardsPointsPerHour(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	if err := svc.HandleBookingCompleted(context.Background(), completedEvent(3)); err != nil {
		t.Fatal(err)
	}
	total, _ := svc.Balance(context.Background(), "user-1")
	if total != 3*PointsPerHour {
		t.Fatalf("expected %d points, got %d", 3*PointsPerHour, total)
	}
	if len(store.points) != 1 || store.points[0].Type != model.PointsBooking {
		t.Fatalf("expected one BOOKING ledger entry, got %+v", store.points)
	}
	if store.points[0].BookingID == nil || *store.points[0].BookingID != "bk-1" {
		t.Fatal("ledger entry must reference the booking")
	}
}

func TestHandleBookingCompletedUnlocksVouchers(t *testing.T) {
	store := newFakeStore(
		model.Voucher{ID: "v-cheap", RequiredPoints: 150},
		model.Voucher{ID: "v-rich", RequiredPoints: 1000},
	)
	svc := NewService(store, zap.NewNop())

	// 2 hours = 200 points; only the cheap voucher unlocks.
	if err := svc.HandleBookingCompleted(context.Background(), completedEvent(2)); err != nil {
		t.Fatal(err)
	}
	owned, _ := store.OwnedVoucherIDs(context.Background(), "user-1")
	if _, ok := owned["v-cheap"]; !ok {
		t.Fatal("expected v-cheap to be claimed")
	}
	if _, ok := owned["v-rich"]; ok {
		t.Fatal("v-rich requires more points than the balance")
	}

	// A completion for another booking must not double-claim the cheap
	// voucher.
	second := completedEvent(2)
	second.BookingID = "bk-2"
	if err := svc.HandleBookingCompleted(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	if got := len(store.claimed["user-1"]); got != 1 {
		t.Fatalf("voucher claimed %d times, want 1", got)
	}
}

func TestHandleBookingCompletedDropsReplays(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	for i := 0; i < 3; i++ {
		if err := svc.HandleBookingCompleted(context.Background(), completedEvent(2)); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if len(store.points) != 1 {
		t.Fatalf("expected one ledger entry for replayed signals, got %d", len(store.points))
	}
	total, _ := svc.Balance(context.Background(), "user-1")
	if total != 2*PointsPerHour {
		t.Fatalf("expected %d points, got %d", 2*PointsPerHour, total)
	}
}

func TestRedeemDeductsPointsAndClaimsVoucher(t *testing.T) {
	store := newFakeStore(model.Voucher{ID: "v-1", RequiredPoints: 300})
	svc := NewService(store, zap.NewNop())
	store.InsertPoints(context.Background(), &model.UserPoint{UserID: "user-1", Points: 500, Type: model.PointsBooking})

	v, err := svc.Redeem(context.Background(), "user-1", "v-1")
	if err != nil {
		t.Fatal(err)
	}
	if v.ID != "v-1" {
		t.Fatalf("expected v-1, got %s", v.ID)
	}
	total, _ := svc.Balance(context.Background(), "user-1")
	if total != 200 {
		t.Fatalf("expected 200 points after redemption, got %d", total)
	}
	last := store.points[len(store.points)-1]
	if last.Type != model.PointsRedeem || last.Points != -300 {
		t.Fatalf("expected a -300 REDEEM entry, got %+v", last)
	}
	owned, _ := store.OwnedVoucherIDs(context.Background(), "user-1")
	if _, ok := owned["v-1"]; !ok {
		t.Fatal("voucher must be claimed after redemption")
	}
}

func TestRedeemRejectsInsufficientBalance(t *testing.T) {
	store := newFakeStore(model.Voucher{ID: "v-1", RequiredPoints: 300})
	svc := NewService(store, zap.NewNop())
	store.InsertPoints(context.Background(), &model.UserPoint{UserID: "user-1", Points: 100, Type: model.PointsBooking})

	if _, err := svc.Redeem(context.Background(), "user-1", "v-1"); !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if len(store.points) != 1 {
		t.Fatal("failed redemption must not touch the ledger")
	}
}

func TestRedeemRejectsUnknownVoucher(t *testing.T) {
	svc := NewService(newFakeStore(), zap.NewNop())
	if _, err := svc.Redeem(context.Background(), "user-1", "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedeemRejectsOwnedVoucher(t *testing.T) {
	store := newFakeStore(model.Voucher{ID: "v-1", RequiredPoints: 300})
	svc := NewService(store, zap.NewNop())
	store.InsertPoints(context.Background(), &model.UserPoint{UserID: "user-1", Points: 500, Type: model.PointsBooking})
	store.ClaimVouchers(context.Background(), "user-1", []string{"v-1"})

	if _, err := svc.Redeem(context.Background(), "user-1", "v-1"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestHandleBookingCompletedRejectsMalformedTimes(t *testing.T) {
	svc := NewService(newFakeStore(), zap.NewNop())
	ev := completedEvent(2)
	ev.StartsAt = "not-a-timestamp"
	if err := svc.HandleBookingCompleted(context.Background(), ev); err == nil {
		t.Fatal("expected parse error")
	}
}
