package broker

import "time"

// Backoff returns the delay before retry attempt+1: base doubled per failed
// attempt, capped at max. The same schedule drives connect retries and the
// delivery worker's publish retries.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if max > 0 && base >= max {
		return max
	}

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		// Doubling overflowed or passed the cap
		if d <= 0 || (max > 0 && d >= max) {
			return max
		}
	}
	return d
}
