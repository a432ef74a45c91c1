package retry

import (
	"context"
	"testing"
	"time"
)

func TestDelayDoubles(t *testing.T) {
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{9, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := policy.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestDelayZeroPolicy(t *testing.T) {
	var policy Policy
	if got := policy.Delay(1); got != 0 {
		t.Fatalf("zero policy should not wait, got %s", got)
	}
	if got := policy.Attempts(); got != 1 {
		t.Fatalf("zero policy should allow one attempt, got %d", got)
	}
}

func TestDelayInvalidAttempt(t *testing.T) {
	policy := Default()
	if got := policy.Delay(0); got != 0 {
		t.Fatalf("attempt 0 should not wait, got %s", got)
	}
	if got := policy.Delay(-3); got != 0 {
		t.Fatalf("negative attempt should not wait, got %s", got)
	}
}

func TestCap(t *testing.T) {
	policy := Policy{MaxDelay: 5 * time.Second}
	if got := policy.Cap(time.Minute); got != 5*time.Second {
		t.Fatalf("Cap(1m) = %s, want 5s", got)
	}
	if got := policy.Cap(time.Second); got != time.Second {
		t.Fatalf("Cap(1s) = %s, want 1s", got)
	}
	if got := policy.Cap(-time.Second); got != 0 {
		t.Fatalf("Cap(-1s) = %s, want 0", got)
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Minute); err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Sleep ignored cancelled context, waited %s", elapsed)
	}
}

func TestSleepZeroReturnsImmediately(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep should succeed, got %v", err)
	}
}
