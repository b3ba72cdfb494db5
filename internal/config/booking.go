package config

import "time"

// BookingConfig carries the business rules that govern booking windows and
// the timing knobs of the allocation machinery.  Every threshold is loaded
// from the environment so that deployments serving different centers can
// differ without code changes.
type BookingConfig struct {
	OpenHour       int           // first bookable hour of the day (inclusive), UTC
	CloseHour      int           // last bookable hour of the day (exclusive), UTC
	BreakStartHour int           // daily closure window start (inclusive)
	BreakEndHour   int           // daily closure window end (exclusive)
	MinDuration    time.Duration // minimum booking length
	GracePeriod    time.Duration // time allowed for payment before auto-cancel
	LockTTL        time.Duration // lifetime of a slot lock in redis
	ReconcileEvery time.Duration // interval of the stale-booking sweep
}

// LoadBookingConfig reads the booking business rules from environment
// variables, falling back to the defaults of the reference deployment:
// open 07:00-23:00 with a 11:00-12:00 closure, two hour minimum, a
// 30 minute payment grace period and a 15 second slot lock.
func LoadBookingConfig() BookingConfig {
	cfg := BookingConfig{
		OpenHour:       envInt("BOOKING_OPEN_HOUR", 7),
		CloseHour:      envInt("BOOKING_CLOSE_HOUR", 23),
		BreakStartHour: envInt("BOOKING_BREAK_START_HOUR", 11),
		BreakEndHour:   envInt("BOOKING_BREAK_END_HOUR", 12),
		MinDuration:    envDur("BOOKING_MIN_DURATION", 2*time.Hour),
		GracePeriod:    envDur("BOOKING_GRACE_PERIOD", 30*time.Minute),
		LockTTL:        envDur("BOOKING_LOCK_TTL", 15*time.Second),
		ReconcileEvery: envDur("BOOKING_RECONCILE_EVERY", 5*time.Minute),
	}
	// The lock only has to outlive the overlap re-check plus one insert; a
	// sub-second TTL would expire mid-critical-section under load.
	if cfg.LockTTL < time.Second {
		cfg.LockTTL = time.Second
	}
	return cfg
}
