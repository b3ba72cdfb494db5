package booking

import (
	"fmt"
	"time"

	"github.com/hoangnm/court-booking/internal/config"
)

// Rules carries the injected business thresholds the validator enforces.
// Venues differ, so none of these are constants: they arrive from
// configuration (config.BookingConfig) or, in tests, are constructed
// directly.
type Rules struct {
	OpenHour       int           // first bookable hour (inclusive)
	CloseHour      int           // last bookable hour (exclusive for starts, inclusive for ends)
	BreakStartHour int           // daily closure start (inclusive)
	BreakEndHour   int           // daily closure end (exclusive)
	MinDuration    time.Duration // minimum booking length
}

// RulesFromConfig copies the validator thresholds out of the booking
// configuration.
func RulesFromConfig(cfg config.BookingConfig) Rules {
	return Rules{
		OpenHour:       cfg.OpenHour,
		CloseHour:      cfg.CloseHour,
		BreakStartHour: cfg.BreakStartHour,
		BreakEndHour:   cfg.BreakEndHour,
		MinDuration:    cfg.MinDuration,
	}
}

// Validate checks a proposed [start, end) window against the venue rules.
// It fails with ErrInvalidWindow when start is not strictly before end,
// when the duration is below the minimum, when the window crosses a UTC
// day boundary, when either endpoint falls inside the daily closure
// window, or when either endpoint lies outside opening hours.  The
// function is pure: no I/O, no clock reads, deterministic for a given
// input.
//
// Endpoint checks treat the window as half-open.  A booking may end at
// the exact minute the closure (or the venue) starts, and two bookings
// sharing a boundary instant never conflict.
func (r Rules) Validate(start, end time.Time) error {
	start, end = start.UTC(), end.UTC()

	if !end.After(start) {
		return fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
	}
	if end.Sub(start) < r.MinDuration {
		return fmt.Errorf("%w: duration below minimum %s", ErrInvalidWindow, r.MinDuration)
	}
	if start.Year() != end.Year() || start.YearDay() != end.YearDay() {
		return fmt.Errorf("%w: window must not cross a day boundary", ErrInvalidWindow)
	}

	open := r.OpenHour * 60
	close := r.CloseHour * 60
	breakStart := r.BreakStartHour * 60
	breakEnd := r.BreakEndHour * 60
	startMin := minuteOfDay(start)
	endMin := minuteOfDay(end)

	// Start endpoint: inside opening hours, outside the closure window.
	if startMin < open || startMin >= close {
		return fmt.Errorf("%w: start outside opening hours", ErrInvalidWindow)
	}
	if startMin >= breakStart && startMin < breakEnd {
		return fmt.Errorf("%w: start inside closure window", ErrInvalidWindow)
	}

	// End endpoint: exclusive, so ending exactly at closing time or at the
	// moment the closure begins is allowed.
	if endMin <= open || endMin > close {
		return fmt.Errorf("%w: end outside opening hours", ErrInvalidWindow)
	}
	if endMin > breakStart && endMin < breakEnd {
		return fmt.Errorf("%w: end inside closure window", ErrInvalidWindow)
	}

	return nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
