package octohub

import "time"

// reconnectPolicy is a fixed-interval retry policy with a ceiling.
// The delay does not grow with the attempt number.
type reconnectPolicy struct {
	interval    time.Duration
	maxAttempts int
}

func newReconnectPolicy(interval time.Duration, maxAttempts int) reconnectPolicy {
	return reconnectPolicy{
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// next returns the delay before retrying after the given number of
// consecutive failures, or false once the ceiling is reached.
func (p reconnectPolicy) next(failures int) (time.Duration, bool) {
	if failures >= p.maxAttempts {
		return 0, false
	}
	return p.interval, true
}
