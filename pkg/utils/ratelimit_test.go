package utils

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterEnforcesInterval(t *testing.T) {
	rl := NewRateLimiter(600) // 100ms interval
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx, "/api/v1/orders"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First call is free, the next two wait one interval each.
	if elapsed < 180*time.Millisecond {
		t.Errorf("expected at least ~200ms of throttling, got %v", elapsed)
	}
}

func TestRateLimiterIsPerEndpoint(t *testing.T) {
	rl := NewRateLimiter(60) // 1s interval
	ctx := context.Background()

	start := time.Now()
	if err := rl.Wait(ctx, "/api/v1/orders"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := rl.Wait(ctx, "/api/v1/accounts"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("different endpoints should not throttle each other, waited %v", elapsed)
	}
}

func TestRateLimiterContextCancellation(t *testing.T) {
	rl := NewRateLimiter(1) // 1 minute interval
	ctx := context.Background()

	if err := rl.Wait(ctx, "/slow"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(cancelled, "/slow"); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRateLimiterDefaultsOnInvalidRate(t *testing.T) {
	rl := NewRateLimiter(0)
	if rl.Interval() != time.Second {
		t.Errorf("expected 1s default interval, got %v", rl.Interval())
	}
}
