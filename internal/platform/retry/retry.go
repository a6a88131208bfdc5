// Package retry decides whether a failed probe is retried, with what
// delay, and when it is abandoned.
//
// Transient failures are retried with exponential backoff plus jitter
// until the attempt budget is exhausted; permanent failures and
// successes are never retried.
package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rfs85/DicordEnumeration/internal/core/domain"
)

// Decision is the outcome of consulting the policy after a failure.
type Decision struct {
	// Retry indicates the task should be rescheduled.
	Retry bool

	// After is the delay before the next attempt. Zero when Retry is false.
	After time.Duration
}

// GiveUp is the terminal decision.
var GiveUp = Decision{}

// Policy holds the retry parameters. Different sources tolerate
// different retry pressure, so these are configuration, not code.
type Policy struct {
	// MaxAttempts is the total invocation budget per task. Minimum 1.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPolicy creates a policy with sane clamping of its parameters.
func NewPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Decide returns whether the task should be retried after the given
// attempt (1-based count of invocations already made) produced the given
// outcome status. Only transient failures are ever retried.
func (p *Policy) Decide(attempt int, status domain.Status) Decision {
	if status != domain.StatusTransient {
		return GiveUp
	}
	if attempt >= p.MaxAttempts {
		return GiveUp
	}
	return Decision{Retry: true, After: p.backoff(attempt)}
}

// backoff computes baseDelay * 2^(attempt-1), capped at MaxDelay, with
// jitter of up to ±20% to avoid thundering-herd resynchronization
// across workers.
func (p *Policy) backoff(attempt int) time.Duration {
	exp := math.Pow(2, float64(attempt-1))
	delay := time.Duration(float64(p.BaseDelay) * exp)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}

	p.mu.Lock()
	factor := 0.8 + 0.4*p.rng.Float64()
	p.mu.Unlock()

	jittered := time.Duration(float64(delay) * factor)
	if jittered <= 0 {
		jittered = p.BaseDelay
	}
	return jittered
}
