package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) install(l *Limiter) {
	l.now = func() time.Time { return c.now }
	l.sleep = func(ctx context.Context, d time.Duration) error {
		c.slept = append(c.slept, d)
		c.now = c.now.Add(d)
		return ctx.Err()
	}
}

func TestAcquireWithinLimitNeverSleeps(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(map[string]int{"fmp": 5}, 60)
	clock.install(l)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx, "fmp"); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	if len(clock.slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", clock.slept)
	}
}

func TestAcquireOverLimitSleepsUntilWindowFrees(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(map[string]int{"fmp": 3}, 60)
	clock.install(l)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx, "fmp"); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		clock.now = clock.now.Add(5 * time.Second)
	}

	// Fourth call within the window must wait until the oldest call expires:
	// oldest was at t=0, we are now at t=15s, so the wait is 45s.
	if err := l.Acquire(ctx, "fmp"); err != nil {
		t.Fatalf("acquire over limit: %v", err)
	}
	if len(clock.slept) != 1 {
		t.Fatalf("expected exactly one sleep, got %v", clock.slept)
	}
	if got, want := clock.slept[0], 45*time.Second; got != want {
		t.Fatalf("slept %v, want %v", got, want)
	}
}

func TestAcquireSpacedCallsNeverSleep(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(map[string]int{"fmp": 2}, 60)
	clock.install(l)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if err := l.Acquire(ctx, "fmp"); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		clock.now = clock.now.Add(61 * time.Second)
	}

	if len(clock.slept) != 0 {
		t.Fatalf("expected no sleeps for spaced calls, got %v", clock.slept)
	}
}

func TestSourcesAreIsolated(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(map[string]int{"fmp": 1, "finnhub": 10}, 60)
	clock.install(l)

	ctx := context.Background()
	if err := l.Acquire(ctx, "fmp"); err != nil {
		t.Fatal(err)
	}
	// A saturated fmp window must not affect finnhub.
	for i := 0; i < 10; i++ {
		if err := l.Acquire(ctx, "finnhub"); err != nil {
			t.Fatalf("finnhub acquire %d: %v", i, err)
		}
	}
	if len(clock.slept) != 0 {
		t.Fatalf("cross-source blocking detected: %v", clock.slept)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(map[string]int{"fmp": 1}, 60)
	clock.install(l)

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Acquire(ctx, "fmp"); err != nil {
		t.Fatal(err)
	}

	cancel()
	if err := l.Acquire(ctx, "fmp"); err == nil {
		t.Fatal("expected context error on cancelled acquire")
	}
}

func TestThrottleCallbackDebounced(t *testing.T) {
	clock := newFakeClock()
	l := NewLimiter(nil, 60)
	clock.install(l)

	var fired []string
	l.SetThrottleCallback(func(source string) { fired = append(fired, source) })

	l.NotifyThrottled("fmp")
	l.NotifyThrottled("fmp")
	l.NotifyThrottled("fmp")
	if len(fired) != 1 {
		t.Fatalf("expected one callback within debounce window, got %d", len(fired))
	}

	clock.now = clock.now.Add(31 * time.Second)
	l.NotifyThrottled("fmp")
	if len(fired) != 2 {
		t.Fatalf("expected second callback after debounce window, got %d", len(fired))
	}
}
