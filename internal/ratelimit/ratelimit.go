// Package ratelimit bounds outbound request rate per endpoint with a sliding
// window and a replenishable burst allowance.
package ratelimit

import (
	"sync"
	"time"
)

// window is the sliding horizon the configured rate applies to.
const window = 10 * time.Second

// Default configuration values.
const (
	DefaultRatePer10s     = 20
	DefaultBurstTokens    = 5
	DefaultMaxBurstTokens = 10
)

// Config configures a Limiter.
type Config struct {
	// RatePer10s is the admission ceiling over the trailing 10 s window.
	RatePer10s int
	// BurstTokens is the initial burst allowance.
	BurstTokens int
	// MaxBurstTokens caps the burst allowance.
	MaxBurstTokens int
}

// DefaultConfig returns default limiter configuration.
func DefaultConfig() Config {
	return Config{
		RatePer10s:     DefaultRatePer10s,
		BurstTokens:    DefaultBurstTokens,
		MaxBurstTokens: DefaultMaxBurstTokens,
	}
}

// Limiter admits requests against a 10 s sliding window. Acquire never
// blocks and never fails: it either admits the request or returns the wait
// after which admission should be retried. Pure arithmetic, no I/O.
type Limiter struct {
	mu         sync.Mutex
	cfg        Config
	timestamps []time.Time // admission times inside the window, oldest first
	burst      int

	now func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.RatePer10s <= 0 {
		cfg.RatePer10s = DefaultRatePer10s
	}
	if cfg.MaxBurstTokens < 0 {
		cfg.MaxBurstTokens = 0
	}
	l := &Limiter{
		cfg: cfg,
		now: time.Now,
	}
	l.burst = cfg.BurstTokens
	if l.burst > cfg.MaxBurstTokens {
		l.burst = cfg.MaxBurstTokens
	}
	if l.burst < 0 {
		l.burst = 0
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire attempts to admit one request. A zero return means the request was
// admitted (and recorded); a positive return is the duration the caller
// should sleep before retrying admission. With useBurst, a burst token is
// consumed to bypass the window check.
func (l *Limiter) Acquire(useBurst bool) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if useBurst && l.burst > 0 {
		l.burst--
		l.timestamps = append(l.timestamps, now)
		return 0
	}

	if len(l.timestamps) < l.cfg.RatePer10s {
		l.timestamps = append(l.timestamps, now)
		return 0
	}

	// Over the limit: wait until enough admissions age out of the window
	// for the count to drop below the ceiling.
	idx := len(l.timestamps) - l.cfg.RatePer10s
	wait := l.timestamps[idx].Add(window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// AddBurstTokens refills the burst allowance, clamped to the configured
// maximum. Negative n is ignored. Driven by the limiter's owner, typically
// once per second.
func (l *Limiter) AddBurstTokens(n int) {
	if n <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.burst += n
	if l.burst > l.cfg.MaxBurstTokens {
		l.burst = l.cfg.MaxBurstTokens
	}
}

// BurstTokens returns the current burst allowance.
func (l *Limiter) BurstTokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burst
}

// CurrentRate returns the number of admissions inside the trailing window.
func (l *Limiter) CurrentRate() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.timestamps)
}

// evict drops timestamps older than the window. Caller holds the mutex.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
