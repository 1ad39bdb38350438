package delivery

import "time"

// Wake intervals of the delivery loop.
const (
	// BusyInterval is used after a tick that dispatched something.
	BusyInterval = 100 * time.Millisecond
	// IdleInterval is used after a tick that found nothing due.
	IdleInterval = 3000 * time.Millisecond
)

// Backoff is the retry delay table, indexed by the number of attempts made
// before the current one and clamped at the last entry. Shared by all kinds.
var Backoff = []time.Duration{
	2 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	300 * time.Second,
	1800 * time.Second,
	3600 * time.Second,
}

// BackoffFor returns the delay to schedule when dispatching an action that
// has already been attempted attempts times.
func BackoffFor(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts >= len(Backoff) {
		attempts = len(Backoff) - 1
	}
	return Backoff[attempts]
}
