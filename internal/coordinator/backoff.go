package coordinator

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// maxBackoff caps the exponential part of the wait.
const maxBackoff = 60 * time.Second

// computeBackoff returns base * 2^attempt, capped at maxBackoff.
//
// Example progression (base=700ms):
// Attempt 0: 700ms
// Attempt 1: 1.4s
// Attempt 2: 2.8s
func computeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 700 * time.Millisecond
	}

	// 2^10 is far beyond maxBackoff for any sane base
	const maxExponent = 10
	if attempt > maxExponent {
		attempt = maxExponent
	}
	if attempt < 0 {
		attempt = 0
	}

	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// randomJitter returns a uniform duration in [0, max].
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max + 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
