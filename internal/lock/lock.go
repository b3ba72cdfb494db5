// Package lock provides the short-lived, ownership-checked mutual
// exclusion used by the booking allocator to protect the scan-then-insert
// window.  Locks are advisory and time-bounded: a holder that crashes
// before releasing stops blocking others once the TTL expires.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Locker is the contract between the allocator and the lock backing
// store.  Acquire succeeds only when no unexpired entry exists for key;
// it must be atomic against concurrent callers (check-and-set, never
// read-then-write).  Release succeeds only when the stored token matches,
// so a caller that lost its lock to expiry cannot release the next
// holder's entry.
type Locker interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) (bool, error)
}

// SlotKey builds the lock key for one (court, start) slot.  Both the
// center and court appear in the key so that lock traffic of different
// venues never collides.
func SlotKey(centerID, courtID string, start time.Time) string {
	return fmt.Sprintf("center:%s:court:%s:slot:%d:lock", centerID, courtID, start.UTC().Unix())
}

// NewToken builds an owner token for a lock entry.  The requester id is
// embedded for debuggability; the uuid makes the token unique per acquire
// attempt so two attempts by the same user are distinguishable.
func NewToken(userID string) string {
	return userID + "-" + uuid.NewString()
}
