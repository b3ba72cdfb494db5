package booking

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hoangnm/court-booking/internal/model"
)

// fakeLocker is an in-memory check-and-set lock with ownership semantics
// matching the redis implementation.  TTL expiry is simulated lazily.
type fakeLocker struct {
	mu      sync.Mutex
	held    map[string]string    // key -> token
	expires map[string]time.Time // key -> expiry
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string), expires: make(map[string]time.Time)}
}

func (l *fakeLocker) Acquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, ok := l.expires[key]; ok && time.Now().After(exp) {
		delete(l.held, key)
		delete(l.expires, key)
	}
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = token
	l.expires[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, key, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return false, nil
	}
	delete(l.held, key)
	delete(l.expires, key)
	return true, nil
}

func (l *fakeLocker) heldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// fakeStore keeps bookings in a slice and answers overlap queries with
// the same half-open predicate the SQL uses.
type fakeStore struct {
	mu       sync.Mutex
	bookings []*model.Booking
	nextID   int
	failWith error // when set, every call errors
}

func (s *fakeStore) Insert(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.nextID++
	b.ID = fmt.Sprintf("bk-%d", s.nextID)
	b.Status = model.BookingPending
	cp := *b
	s.bookings = append(s.bookings, &cp)
	return nil
}

func (s *fakeStore) HasOverlap(_ context.Context, courtID string, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	for _, b := range s.bookings {
		if b.CourtID != courtID || b.Status == model.BookingCancelled {
			continue
		}
		if model.Overlaps(b.StartTime, b.EndTime, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, errors.New("not found")
}

func (s *fakeStore) UpdateStatusIf(_ context.Context, id, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id && b.Status == from {
			b.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

type fakeLister struct{ courts []model.Court }

func (l fakeLister) ListAvailableByCenter(context.Context, string) ([]model.Court, error) {
	return l.courts, nil
}

type recordingScheduler struct {
	mu     sync.Mutex
	jobs   []string
	delays []time.Duration
	err    error
}

func (r *recordingScheduler) Schedule(_ context.Context, bookingID string, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, bookingID)
	r.delays = append(r.delays, delay)
	return nil
}

func (r *recordingScheduler) jobCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func courtList(n int) []model.Court {
	courts := make([]model.Court, n)
	for i := range courts {
		courts[i] = model.Court{ID: fmt.Sprintf("court-%d", i+1), CourtNo: uint32(i + 1), Status: model.CourtAvailable}
	}
	return courts
}

func newTestAllocator(courts []model.Court, store *fakeStore, locker *fakeLocker, sched *recordingScheduler) *Allocator {
	return NewAllocator(
		fakeLister{courts: courts}, store, locker, sched,
		testRules(), 15*time.Second, 30*time.Minute, zap.NewNop(),
	)
}

func TestAllocateSingleCourtConcurrent(t *testing.T) {
	store := &fakeStore{}
	locker := newFakeLocker()
	sched := &recordingScheduler{}
	alloc := newTestAllocator(courtList(1), store, locker, sched)

	start, end := at(8, 0), at(10, 0)
	const callers = 8

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := alloc.Allocate(context.Background(), "center-1", fmt.Sprintf("user-%d", n), start, end)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNoCourtAvailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}
	if conflicts != callers-1 {
		t.Fatalf("expected %d conflicts, got %d", callers-1, conflicts)
	}
	if store.count() != 1 {
		t.Fatalf("expected 1 stored booking, got %d", store.count())
	}
	if sched.jobCount() != 1 {
		t.Fatalf("expected 1 scheduled cancel job, got %d", sched.jobCount())
	}
	if locker.heldCount() != 0 {
		t.Fatalf("expected all locks released, %d still held", locker.heldCount())
	}
}

func TestAllocateConcurrentSpreadsAcrossCourts(t *testing.T) {
	store := &fakeStore{}
	locker := newFakeLocker()
	sched := &recordingScheduler{}
	alloc := newTestAllocator(courtList(4), store, locker, sched)

	start, end := at(14, 0), at(16, 0)
	const callers = 4

	var wg sync.WaitGroup
	results := make(chan *model.Booking, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b, err := alloc.Allocate(context.Background(), "center-1", fmt.Sprintf("user-%d", n), start, end)
			if err != nil {
				t.Errorf("caller %d: %v", n, err)
				return
			}
			results <- b
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for b := range results {
		if seen[b.CourtID] {
			t.Fatalf("court %s allocated twice for the same window", b.CourtID)
		}
		seen[b.CourtID] = true
	}
	if len(seen) != callers {
		t.Fatalf("expected %d distinct courts, got %d", callers, len(seen))
	}
}

func TestAllocateTwoCourtsThreeRequests(t *testing.T) {
	store := &fakeStore{}
	locker := newFakeLocker()
	sched := &recordingScheduler{}
	alloc := newTestAllocator(courtList(2), store, locker, sched)

	start, end := at(9, 0), at(11, 0)

	var wg sync.WaitGroup
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := alloc.Allocate(context.Background(), "center-1", fmt.Sprintf("user-%d", n), start, end)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrNoCourtAvailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 2 || conflicts != 1 {
		t.Fatalf("expected 2 wins and 1 conflict, got %d and %d", wins, conflicts)
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 stored bookings, got %d", store.count())
	}
}

func TestAllocateSkipsContendedCourt(t *testing.T) {
	store := &fakeStore{}
	locker := newFakeLocker()
	sched := &recordingScheduler{}
	courts := courtList(2)
	alloc := newTestAllocator(courts, store, locker, sched)

	start, end := at(8, 0), at(10, 0)

	// Someone else holds the first court's slot lock.
	key := fmt.Sprintf("center:%s:court:%s:slot:%d:lock", "center-1", courts[0].ID, start.Unix())
	if ok, _ := locker.Acquire(context.Background(), key, "other-token", time.Minute); !ok {
		t.Fatal("setup: could not pre-acquire lock")
	}

	b, err := alloc.Allocate(context.Background(), "center-1", "user-1", start, end)
	if err != nil {
		t.Fatalf("expected allocation on second court, got %v", err)
	}
	if b.CourtID != courts[1].ID {
		t.Fatalf("expected court %s, got %s", courts[1].ID, b.CourtID)
	}
}

func TestAllocateRejectsInvalidWindow(t *testing.T) {
	store := &fakeStore{}
	alloc := newTestAllocator(courtList(1), store, newFakeLocker(), &recordingScheduler{})

	_, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(6, 0), at(8, 0))
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
	if store.count() != 0 {
		t.Fatal("invalid window must not touch the store")
	}
}

func TestAllocateNoCourtsConfigured(t *testing.T) {
	alloc := newTestAllocator(nil, &fakeStore{}, newFakeLocker(), &recordingScheduler{})
	_, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(8, 0), at(10, 0))
	if !errors.Is(err, ErrNoCourtAvailable) {
		t.Fatalf("expected ErrNoCourtAvailable, got %v", err)
	}
}

func TestAllocateAdjoiningWindowsShareCourt(t *testing.T) {
	store := &fakeStore{}
	alloc := newTestAllocator(courtList(1), store, newFakeLocker(), &recordingScheduler{})

	if _, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(8, 0), at(10, 0)); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	// [10:00, 12:00) touches [8:00, 10:00) only at the boundary instant.
	if _, err := alloc.Allocate(context.Background(), "center-1", "user-2", at(10, 0), at(12, 0)); err != nil {
		t.Fatalf("adjoining booking should not conflict: %v", err)
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 bookings, got %d", store.count())
	}
}

func TestAllocateStorageDownAborts(t *testing.T) {
	store := &fakeStore{failWith: driver.ErrBadConn}
	alloc := newTestAllocator(courtList(3), store, newFakeLocker(), &recordingScheduler{})

	_, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(8, 0), at(10, 0))
	if !errors.Is(err, ErrAllocationFailed) {
		t.Fatalf("expected ErrAllocationFailed, got %v", err)
	}
}

func TestAllocateSurvivesSchedulerFailure(t *testing.T) {
	store := &fakeStore{}
	sched := &recordingScheduler{err: errors.New("broker down")}
	alloc := newTestAllocator(courtList(1), store, newFakeLocker(), sched)

	b, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(8, 0), at(10, 0))
	if err != nil {
		t.Fatalf("booking must stand when scheduling fails: %v", err)
	}
	if b == nil || b.Status != model.BookingPending {
		t.Fatalf("expected a PENDING booking, got %+v", b)
	}
}

func TestAllocateSchedulesGracePeriod(t *testing.T) {
	store := &fakeStore{}
	sched := &recordingScheduler{}
	alloc := newTestAllocator(courtList(1), store, newFakeLocker(), sched)

	b, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(8, 0), at(10, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(sched.jobs) != 1 || sched.jobs[0] != b.ID {
		t.Fatalf("expected one cancel job for %s, got %v", b.ID, sched.jobs)
	}
	if sched.delays[0] != 30*time.Minute {
		t.Fatalf("expected 30m delay, got %v", sched.delays[0])
	}
}

// TestLockTTLCoversCriticalSection measures how long allocations actually
// hold the slot lock and asserts the configured TTL leaves ample margin.
// A TTL that a healthy critical section can outrun would let exclusivity
// lapse between the overlap re-check and the insert.
func TestLockTTLCoversCriticalSection(t *testing.T) {
	store := &fakeStore{}
	locker := newFakeLocker()
	alloc := newTestAllocator(courtList(8), store, locker, &recordingScheduler{})

	const lockTTL = 15 * time.Second
	var maxHeld time.Duration
	hours := []int{7, 9, 13, 15, 17, 19, 21}
	for i := 0; i < 50; i++ {
		startHour := hours[i%len(hours)]
		begin := time.Now()
		_, err := alloc.Allocate(context.Background(), "center-1", "user-1",
			at(startHour, 0), at(startHour+2, 0))
		if err != nil && !errors.Is(err, ErrNoCourtAvailable) {
			t.Fatal(err)
		}
		if held := time.Since(begin); held > maxHeld {
			maxHeld = held
		}
	}
	// The whole allocation, a superset of the lock hold, must finish
	// orders of magnitude inside the TTL.
	if maxHeld > lockTTL/10 {
		t.Fatalf("critical section took %v, uncomfortably close to the %v lock TTL", maxHeld, lockTTL)
	}
	if locker.heldCount() != 0 {
		t.Fatalf("%d locks still held after allocations", locker.heldCount())
	}
}

func TestCancelIfPendingIdempotent(t *testing.T) {
	store := &fakeStore{}
	alloc := newTestAllocator(courtList(1), store, newFakeLocker(), &recordingScheduler{})

	b, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(8, 0), at(10, 0))
	if err != nil {
		t.Fatal(err)
	}

	cancelled, err := alloc.CancelIfPending(context.Background(), b.ID)
	if err != nil || !cancelled {
		t.Fatalf("first cancel: got (%v, %v), want (true, nil)", cancelled, err)
	}
	cancelled, err = alloc.CancelIfPending(context.Background(), b.ID)
	if err != nil || cancelled {
		t.Fatalf("second cancel: got (%v, %v), want (false, nil)", cancelled, err)
	}
}

func TestCancelIfPendingLeavesCompletedAlone(t *testing.T) {
	store := &fakeStore{}
	alloc := newTestAllocator(courtList(1), store, newFakeLocker(), &recordingScheduler{})

	b, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(8, 0), at(10, 0))
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.UpdateStatusIf(context.Background(), b.ID, model.BookingPending, model.BookingCompleted); !ok {
		t.Fatal("setup: could not complete booking")
	}

	cancelled, err := alloc.CancelIfPending(context.Background(), b.ID)
	if err != nil || cancelled {
		t.Fatalf("cancel after completion: got (%v, %v), want (false, nil)", cancelled, err)
	}
	got, _ := store.GetByID(context.Background(), b.ID)
	if got.Status != model.BookingCompleted {
		t.Fatalf("completed booking mutated to %s", got.Status)
	}
}

func TestCancelledBookingFreesSlot(t *testing.T) {
	store := &fakeStore{}
	alloc := newTestAllocator(courtList(1), store, newFakeLocker(), &recordingScheduler{})

	b, err := alloc.Allocate(context.Background(), "center-1", "user-1", at(8, 0), at(10, 0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := alloc.Allocate(context.Background(), "center-1", "user-2", at(8, 0), at(10, 0)); !errors.Is(err, ErrNoCourtAvailable) {
		t.Fatalf("expected conflict before cancellation, got %v", err)
	}

	if _, err := alloc.CancelIfPending(context.Background(), b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := alloc.Allocate(context.Background(), "center-1", "user-2", at(8, 0), at(10, 0)); err != nil {
		t.Fatalf("cancelled slot should be bookable again: %v", err)
	}
}
