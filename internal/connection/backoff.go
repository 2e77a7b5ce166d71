package connection

import "time"

// Delay returns the reconnect delay for the given attempt using exponential
// backoff: base × 2^(attempt−1), capped at max. Attempt is 1-based; values
// below 1 are treated as 1.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
