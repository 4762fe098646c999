package flow

import (
	"context"
	"time"
)

// Backoff is the polling policy used while a cycle is waiting or generating.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	MaxRetries int
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    2 * time.Second,
		Max:        30 * time.Second,
		Multiplier: 1.5,
		MaxRetries: 20,
	}
}

// Delay returns the wait before retry number attempt (zero-based), growing
// geometrically and capped at Max.
func (backoff Backoff) Delay(attempt int) time.Duration {
	delay := backoff.Initial
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * backoff.Multiplier)
		if delay >= backoff.Max {
			return backoff.Max
		}
	}
	if delay > backoff.Max {
		return backoff.Max
	}
	return delay
}

// Wait sleeps for Delay(attempt), returning early if ctx is cancelled.
func (backoff Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(backoff.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
