// Package rate provides per-source token bucket gating for probe traffic.
//
// Each upstream source gets an independent bucket: capacity bounds burst
// size, the refill interval bounds sustained throughput, and a minimum
// spacing floor is enforced between consecutive requests to the same
// source even when tokens are available. Acquisition always eventually
// succeeds because refill is time-driven and independent of callers.
package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

// Config holds the per-source limiter parameters.
type Config struct {
	// Capacity is the bucket size (maximum burst). Minimum 1.
	Capacity int

	// RefillInterval is the time to accrue one token. Zero disables the
	// bucket (spacing may still apply).
	RefillInterval time.Duration

	// MinSpacing is the floor between consecutive acquisitions for the
	// same source. Zero disables spacing.
	MinSpacing time.Duration
}

func (c Config) normalized() Config {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillInterval < 0 {
		c.RefillInterval = 0
	}
	if c.MinSpacing < 0 {
		c.MinSpacing = 0
	}
	return c
}

// sourceLimiter combines a token bucket with a spacing floor.
type sourceLimiter struct {
	bucket  *xrate.Limiter // nil when bucketing disabled
	spacing time.Duration

	mu   sync.Mutex
	next time.Time // earliest start time for the next request
}

func newSourceLimiter(cfg Config) *sourceLimiter {
	cfg = cfg.normalized()

	var bucket *xrate.Limiter
	if cfg.RefillInterval > 0 {
		bucket = xrate.NewLimiter(xrate.Every(cfg.RefillInterval), cfg.Capacity)
	}

	return &sourceLimiter{
		bucket:  bucket,
		spacing: cfg.MinSpacing,
	}
}

// acquire blocks until a token and the spacing floor allow one request.
// It never drops or reorders callers; the only error is context cancellation.
func (l *sourceLimiter) acquire(ctx context.Context) error {
	// Callers rely on acquire as a cancellation checkpoint even when no
	// wait is needed (bucket disabled, spacing satisfied).
	if err := ctx.Err(); err != nil {
		return err
	}

	if l.bucket != nil {
		if err := l.bucket.Wait(ctx); err != nil {
			return err
		}
	}

	if l.spacing <= 0 {
		return nil
	}

	// Claim the next start slot under the lock, then sleep outside it so
	// the lock is never held while waiting.
	l.mu.Lock()
	now := time.Now()
	start := l.next
	if start.Before(now) {
		start = now
	}
	l.next = start.Add(l.spacing)
	l.mu.Unlock()

	wait := time.Until(start)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Gate multiplexes independent limiters keyed by source identifier.
// Sources never share budget.
type Gate struct {
	mu        sync.Mutex
	limiters  map[string]*sourceLimiter
	defaults  Config
	overrides map[string]Config
}

// NewGate creates a gate with a default per-source configuration and
// optional per-source overrides.
func NewGate(defaults Config, overrides map[string]Config) *Gate {
	return &Gate{
		limiters:  make(map[string]*sourceLimiter),
		defaults:  defaults.normalized(),
		overrides: overrides,
	}
}

// Acquire blocks the caller until the given source allows one request,
// then consumes a token. Returns ctx.Err() on cancellation.
func (g *Gate) Acquire(ctx context.Context, source string) error {
	return g.limiter(source).acquire(ctx)
}

func (g *Gate) limiter(source string) *sourceLimiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.limiters[source]; ok {
		return l
	}

	cfg := g.defaults
	if override, ok := g.overrides[source]; ok {
		cfg = override
	}

	l := newSourceLimiter(cfg)
	g.limiters[source] = l
	return l
}

// Sources returns the source identifiers seen so far, for monitoring.
func (g *Gate) Sources() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.limiters))
	for name := range g.limiters {
		names = append(names, name)
	}
	return names
}
