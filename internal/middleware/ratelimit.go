package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/hoangnm/court-booking/internal/config"
)

// fixedWindowScript counts a hit in the current window and sets the
// window's expiry on the first hit.  Returns the count after increment
// and the remaining TTL in milliseconds.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return { count, ttl }
`)

// RateLimit returns a fixed-window per-user rate limiter backed by redis.
// When redis is unreachable the middleware fails open: throttling is a
// convenience, not a correctness guarantee, and the allocator's lock still
// protects the slot.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := UserID(c)
			if id == "" {
				id = c.RealIP()
			}
			key := fmt.Sprintf("%s:%s:%s", cfg.Prefix, c.Path(), id)

			ctx := c.Request().Context()
			vals, err := fixedWindowScript.Run(ctx, rdb, []string{key}, cfg.Window.Milliseconds()).Result()
			if err != nil {
				return next(c)
			}
			res, ok := vals.([]interface{})
			if !ok || len(res) != 2 {
				return next(c)
			}
			count, _ := res[0].(int64)
			ttlMs, _ := res[1].(int64)

			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Limit) {
				retry := time.Duration(ttlMs) * time.Millisecond
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests"})
			}
			return next(c)
		}
	}
}
