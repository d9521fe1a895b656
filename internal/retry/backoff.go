package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	baseDelay = 500 * time.Millisecond
	maxDelay  = 10 * time.Second
)

// Backoff returns the wait before the given attempt.
// attempt=0 => 500ms, attempt=1 => 1s, attempt=2 => 2s, capped at 10s.
func Backoff(attempt int) time.Duration {
	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(baseDelay) * multiple)

	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	// small jitter (0–250ms) so replicas do not reconnect in lockstep
	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}

// Do calls fn up to attempts times, sleeping Backoff between failures.
// onRetry, if set, sees every failed attempt that will be retried.
// It returns the last error, or ctx.Err() if ctx ends first.
func Do(ctx context.Context, attempts int, fn func(ctx context.Context) error, onRetry func(attempt int, err error, wait time.Duration)) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		wait := Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt+1, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}
