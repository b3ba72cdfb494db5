// Package booking implements the core of the reservation system: the
// time-window validator, the allocation algorithm that claims exactly one
// court per request, and the conditional cancellation applied when the
// payment grace period runs out.
package booking

import "errors"

// ErrInvalidWindow is returned when the requested time window violates
// the venue's business rules.  It is a client input error; handlers map
// it to HTTP 400 and callers must not retry unchanged.
var ErrInvalidWindow = errors.New("invalid booking window")

// ErrNoCourtAvailable is returned when every candidate court is either
// occupied or lost to a concurrent caller.  It is a business conflict;
// the user may retry with a different window.
var ErrNoCourtAvailable = errors.New("no court available")

// ErrAllocationFailed is returned when storage became unavailable in the
// middle of an allocation.  The whole Allocate call is safe to retry.
var ErrAllocationFailed = errors.New("allocation failed")
