// Package nodepool hands out a presently-usable rippled endpoint and absorbs
// endpoint failures through cooldown and latency-based rotation.
package nodepool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"xrpl-gateway/internal/ratelimit"
	"xrpl-gateway/internal/xrpl"
)

// LatencyMax is the sentinel returned when a probe fails. It de-prioritizes
// the node without banning it.
const LatencyMax = time.Hour

// Default configuration values.
const (
	DefaultCooldown                = 60 * time.Second
	DefaultProactiveSwitchInterval = 2 * time.Minute
	DefaultProbeTimeout            = 5 * time.Second
	DefaultRefillInterval          = 1 * time.Second
	DefaultRefillTokens            = 1
)

// Config configures a Pool.
type Config struct {
	// URLs is the static endpoint rotation. At least one is required.
	URLs []string
	// Cooldown is how long a marked-bad endpoint is avoided.
	Cooldown time.Duration
	// ProactiveSwitchInterval is how often the pool re-measures latency of
	// all healthy endpoints and switches to the fastest.
	ProactiveSwitchInterval time.Duration
	// ProbeTimeout bounds one latency probe.
	ProbeTimeout time.Duration
	// RefillInterval is the burst-token refill cadence.
	RefillInterval time.Duration
	// RefillTokens is the number of burst tokens added per refill tick.
	RefillTokens int
	// Limiter configures the per-endpoint rate limiter.
	Limiter ratelimit.Config
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() Config {
	return Config{
		Cooldown:                DefaultCooldown,
		ProactiveSwitchInterval: DefaultProactiveSwitchInterval,
		ProbeTimeout:            DefaultProbeTimeout,
		RefillInterval:          DefaultRefillInterval,
		RefillTokens:            DefaultRefillTokens,
		Limiter:                 ratelimit.DefaultConfig(),
	}
}

// DialFunc opens an RPC connection to one endpoint URL.
type DialFunc func(ctx context.Context, url string) (xrpl.RPC, error)

// NotifyFunc receives pool events for an optional metrics/log sink.
type NotifyFunc func(event, detail string)

// LatencyNotifyFunc receives the result of each latency probe.
type LatencyNotifyFunc func(url string, latency time.Duration)

// Endpoint pairs one endpoint URL with its rate limiter and lazily dialed
// connection. badUntil and lastLatency are guarded by the pool mutex.
type Endpoint struct {
	url     string
	limiter *ratelimit.Limiter

	rpc   xrpl.RPC
	rpcMu sync.Mutex
	dial  DialFunc

	notify NotifyFunc

	badUntil    time.Time
	lastLatency time.Duration
}

// URL returns the endpoint URL.
func (e *Endpoint) URL() string {
	return e.url
}

// Limiter returns the endpoint's rate limiter.
func (e *Endpoint) Limiter() *ratelimit.Limiter {
	return e.limiter
}

// RPC returns the endpoint's connection, dialing on first use.
func (e *Endpoint) RPC(ctx context.Context) (xrpl.RPC, error) {
	e.rpcMu.Lock()
	defer e.rpcMu.Unlock()

	if e.rpc != nil {
		return e.rpc, nil
	}

	rpc, err := e.dial(ctx, e.url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", e.url, err)
	}
	e.rpc = rpc
	return rpc, nil
}

// Acquire admits one request against the endpoint's rate limiter, sleeping
// the advised wait between attempts.
func (e *Endpoint) Acquire(ctx context.Context, useBurst bool) error {
	for {
		wait := e.limiter.Acquire(useBurst)
		if wait == 0 {
			return nil
		}
		if e.notify != nil {
			e.notify("request_wait", e.url)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// closeRPC closes the dialed connection, if any.
func (e *Endpoint) closeRPC() {
	e.rpcMu.Lock()
	defer e.rpcMu.Unlock()
	if e.rpc != nil {
		e.rpc.Close()
		e.rpc = nil
	}
}

// Pool owns the endpoint rotation. All rotation state is serialized by one
// pool-wide mutex; holders of an Endpoint do not need the mutex for I/O.
type Pool struct {
	mu         sync.Mutex
	cfg        Config
	endpoints  []*Endpoint
	current    int
	lastSwitch time.Time

	now           func() time.Time
	notify        NotifyFunc
	latencyNotify LatencyNotifyFunc
}

// Option configures a Pool.
type Option func(*Pool)

// WithDialFunc overrides how endpoint connections are opened, for tests.
func WithDialFunc(dial DialFunc) Option {
	return func(p *Pool) {
		for _, ep := range p.endpoints {
			ep.dial = dial
		}
	}
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// WithNotify sets an optional sink for node demotion, switch and
// rate-limit wait events.
func WithNotify(fn NotifyFunc) Option {
	return func(p *Pool) {
		p.notify = fn
	}
}

// WithLatencyNotify sets an optional sink for latency probe results.
func WithLatencyNotify(fn LatencyNotifyFunc) Option {
	return func(p *Pool) {
		p.latencyNotify = fn
	}
}

// New creates a Pool. It fails only when no endpoint URLs are configured.
func New(cfg Config, opts ...Option) (*Pool, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.New("nodepool: at least one endpoint URL is required")
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.ProactiveSwitchInterval <= 0 {
		cfg.ProactiveSwitchInterval = DefaultProactiveSwitchInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = DefaultRefillInterval
	}

	p := &Pool{
		cfg: cfg,
		now: time.Now,
	}

	defaultDial := func(ctx context.Context, url string) (xrpl.RPC, error) {
		return xrpl.Dial(ctx, url, nil)
	}

	for _, url := range cfg.URLs {
		p.endpoints = append(p.endpoints, &Endpoint{
			url:     url,
			limiter: ratelimit.New(cfg.Limiter),
			dial:    defaultDial,
		})
	}

	for _, opt := range opts {
		opt(p)
	}

	for _, ep := range p.endpoints {
		ep.notify = p.notify
	}

	p.lastSwitch = p.now()
	return p, nil
}

// Get returns the endpoint to use for the next request. With at least one
// endpoint configured it always returns one: when every endpoint is cooling
// down, the one whose cooldown expires first is chosen.
func (p *Pool) Get(ctx context.Context) (*Endpoint, error) {
	if p.proactiveDue() {
		p.rotateToFastest(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	n := len(p.endpoints)

	if p.endpoints[p.current].badUntil.After(now) {
		switched := false
		for i := 1; i <= n; i++ {
			idx := (p.current + i) % n
			if !p.endpoints[idx].badUntil.After(now) {
				p.current = idx
				switched = true
				break
			}
		}
		if !switched {
			// Every endpoint is cooling down; take the least-bad one.
			best := 0
			for i, ep := range p.endpoints {
				if ep.badUntil.Before(p.endpoints[best].badUntil) {
					best = i
				}
			}
			p.current = best
		}
	}

	return p.endpoints[p.current], nil
}

// MarkBad puts the endpoint with the given URL into cooldown. It stays in
// rotation and is retried once the cooldown elapses.
func (p *Pool) MarkBad(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.url == url {
			ep.badUntil = p.now().Add(p.cfg.Cooldown)
			log.Printf("[pool] node %s marked bad until %s", url, ep.badUntil.Format(time.RFC3339))
			if p.notify != nil {
				p.notify("node_demoted", url)
			}
			return
		}
	}
}

// Latency measures one ping round trip to the endpoint. Probe errors are
// absorbed and reported as LatencyMax.
func (p *Pool) Latency(ctx context.Context, ep *Endpoint) time.Duration {
	rpc, err := ep.RPC(ctx)
	if err != nil {
		return LatencyMax
	}

	pctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	start := p.now()
	if err := rpc.Ping(pctx); err != nil {
		return LatencyMax
	}
	return p.now().Sub(start)
}

// proactiveDue reports whether the proactive switch interval has elapsed and
// claims the slot, so concurrent callers trigger at most one probe sweep.
func (p *Pool) proactiveDue() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.now().Sub(p.lastSwitch) < p.cfg.ProactiveSwitchInterval {
		return false
	}
	p.lastSwitch = p.now()
	return true
}

// rotateToFastest probes every endpoint not in cooldown and switches the
// rotation to the lowest-latency one. A responsive probe also clears a stale
// cooldown mark.
func (p *Pool) rotateToFastest(ctx context.Context) {
	p.mu.Lock()
	now := p.now()
	type candidate struct {
		idx int
		ep  *Endpoint
	}
	var candidates []candidate
	for i, ep := range p.endpoints {
		if !ep.badUntil.After(now) {
			candidates = append(candidates, candidate{idx: i, ep: ep})
		}
	}
	p.mu.Unlock()

	if len(candidates) == 0 {
		return
	}

	best := -1
	bestLatency := LatencyMax + 1
	for _, c := range candidates {
		lat := p.Latency(ctx, c.ep)
		if p.latencyNotify != nil {
			p.latencyNotify(c.ep.url, lat)
		}

		p.mu.Lock()
		c.ep.lastLatency = lat
		if lat < LatencyMax {
			c.ep.badUntil = time.Time{}
		}
		p.mu.Unlock()

		if lat < bestLatency {
			bestLatency = lat
			best = c.idx
		}
	}

	if best < 0 {
		return
	}

	p.mu.Lock()
	if best != p.current {
		log.Printf("[pool] switching to %s (latency %v)", p.endpoints[best].url, bestLatency)
		if p.notify != nil {
			p.notify("node_switched", p.endpoints[best].url)
		}
	}
	p.current = best
	p.mu.Unlock()
}

// RunRefill drives the per-endpoint burst-token refill until ctx is done.
func (p *Pool) RunRefill(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.RefillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ep := range p.endpoints {
				ep.limiter.AddBurstTokens(p.cfg.RefillTokens)
			}
		}
	}
}

// Endpoints returns the pool's endpoints in rotation order.
func (p *Pool) Endpoints() []*Endpoint {
	return p.endpoints
}

// LastLatency returns the endpoint's last probed latency.
func (p *Pool) LastLatency(ep *Endpoint) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ep.lastLatency
}

// Close shuts down all endpoint connections.
func (p *Pool) Close() {
	for _, ep := range p.endpoints {
		ep.closeRPC()
	}
}
