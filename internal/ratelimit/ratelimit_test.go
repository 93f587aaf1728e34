package ratelimit

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	return New(cfg, WithClock(clock.Now)), clock
}

func TestLimiter_AdmitsUnderLimit(t *testing.T) {
	l, _ := newTestLimiter(Config{RatePer10s: 3, BurstTokens: 0, MaxBurstTokens: 0})

	for i := 0; i < 3; i++ {
		if wait := l.Acquire(false); wait != 0 {
			t.Fatalf("request %d: expected immediate admission, got wait %v", i, wait)
		}
	}

	if wait := l.Acquire(false); wait == 0 {
		t.Fatal("expected wait once limit reached, got 0")
	}
}

func TestLimiter_WaitIsTimeUntilOldestExits(t *testing.T) {
	l, clock := newTestLimiter(Config{RatePer10s: 2, BurstTokens: 0, MaxBurstTokens: 0})

	l.Acquire(false)
	clock.Advance(3 * time.Second)
	l.Acquire(false)

	wait := l.Acquire(false)
	if wait != 7*time.Second {
		t.Errorf("expected wait 7s (oldest entry exits the 10s window), got %v", wait)
	}

	// Denied attempts must not be recorded.
	if got := l.CurrentRate(); got != 2 {
		t.Errorf("expected rate 2 after denied attempt, got %d", got)
	}
}

func TestLimiter_WindowEviction(t *testing.T) {
	l, clock := newTestLimiter(Config{RatePer10s: 2, BurstTokens: 0, MaxBurstTokens: 0})

	l.Acquire(false)
	l.Acquire(false)

	clock.Advance(11 * time.Second)

	if wait := l.Acquire(false); wait != 0 {
		t.Errorf("expected admission after window elapsed, got wait %v", wait)
	}
	if got := l.CurrentRate(); got != 1 {
		t.Errorf("expected rate 1 after eviction, got %d", got)
	}
}

func TestLimiter_BurstBypassesWindow(t *testing.T) {
	l, _ := newTestLimiter(Config{RatePer10s: 1, BurstTokens: 2, MaxBurstTokens: 2})

	l.Acquire(false) // fills the window

	if wait := l.Acquire(true); wait != 0 {
		t.Fatalf("expected burst admission, got wait %v", wait)
	}
	if got := l.BurstTokens(); got != 1 {
		t.Errorf("expected 1 burst token left, got %d", got)
	}

	if wait := l.Acquire(true); wait != 0 {
		t.Fatalf("expected second burst admission, got wait %v", wait)
	}
	if got := l.BurstTokens(); got != 0 {
		t.Errorf("expected 0 burst tokens left, got %d", got)
	}

	// Tokens exhausted: falls back to the window check.
	if wait := l.Acquire(true); wait == 0 {
		t.Error("expected wait with exhausted burst and full window")
	}
	if got := l.BurstTokens(); got != 0 {
		t.Errorf("burst tokens went negative: %d", got)
	}
}

func TestLimiter_AddBurstTokensClampedToMax(t *testing.T) {
	l, _ := newTestLimiter(Config{RatePer10s: 5, BurstTokens: 1, MaxBurstTokens: 3})

	l.AddBurstTokens(10)
	if got := l.BurstTokens(); got != 3 {
		t.Errorf("expected burst clamped to 3, got %d", got)
	}

	l.AddBurstTokens(-5)
	if got := l.BurstTokens(); got != 3 {
		t.Errorf("negative refill must be ignored, got %d", got)
	}
}

func TestLimiter_InitialBurstClampedToMax(t *testing.T) {
	l, _ := newTestLimiter(Config{RatePer10s: 5, BurstTokens: 10, MaxBurstTokens: 4})

	if got := l.BurstTokens(); got != 4 {
		t.Errorf("expected initial burst clamped to 4, got %d", got)
	}
}

func TestLimiter_BurstNeverExceedsMaxUnderInterleaving(t *testing.T) {
	l, clock := newTestLimiter(Config{RatePer10s: 4, BurstTokens: 2, MaxBurstTokens: 2})

	for i := 0; i < 50; i++ {
		l.Acquire(i%2 == 0)
		l.AddBurstTokens(1)
		clock.Advance(500 * time.Millisecond)

		got := l.BurstTokens()
		if got < 0 || got > 2 {
			t.Fatalf("iteration %d: burst tokens out of bounds: %d", i, got)
		}
	}
}
