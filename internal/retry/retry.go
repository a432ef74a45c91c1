// Package retry holds the backoff policy shared by the media fetcher and the
// analysis client, so both honor identical retry semantics and both can be
// tested with a fake sleeper.
package retry

import (
	"context"
	"time"
)

// Policy bounds a retry loop: how many attempts in total and how long to wait
// between them. The zero value normalizes to a single attempt with no waits.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// Default matches the house retry posture for network calls: three attempts,
// one second doubling, capped at thirty seconds.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2,
	}
}

// Attempts returns the total attempt budget, never less than one.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait before retrying after the given failed attempt
// (1-based). The first retry waits BaseDelay; each further retry multiplies
// it, capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if p.MaxDelay > 0 && delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	d := time.Duration(delay)
	return p.cap(d)
}

func (p Policy) cap(d time.Duration) time.Duration {
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Cap bounds an externally suggested delay (e.g. a Retry-After header) by the
// policy's maximum.
func (p Policy) Cap(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return p.cap(d)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
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
