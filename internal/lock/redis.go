package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds the caller's
// token.  GET and DEL must happen in one atomic step; doing them as two
// round trips reopens the window where the entry expires and another
// caller re-acquires between the check and the delete.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLocker implements Locker on a shared Redis instance, which makes
// the mutual exclusion hold across all process instances.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker returns a RedisLocker bound to the given client.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	if rdb == nil {
		panic("nil redis client passed to NewRedisLocker")
	}
	return &RedisLocker{rdb: rdb}
}

// Acquire takes the lock with a single SET NX PX call.  SET NX is the
// check-and-set primitive: it writes the token only when the key is
// absent, and PX attaches the expiry in the same command.
func (l *RedisLocker) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, token, ttl).Result()
}

// Release removes the lock entry if and only if it still carries the
// caller's token.  It returns false when the entry expired or belongs to
// another holder; that is a no-op, not an error.
func (l *RedisLocker) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
