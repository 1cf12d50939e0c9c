// Package backoff computes the delay inserted between retry attempts.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// MinDelay floors every jittered delay so jitter can never produce a zero
// or near-zero wait.
const MinDelay = 100 * time.Millisecond

// Policy describes how a call is retried.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	Jitter       bool
}

// Default returns the policy used when the caller supplies none.
func Default() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Factor:       2,
		Jitter:       true,
	}
}

// Normalize fills invalid fields from the defaults so a partial override
// merges over the default policy.
func (p Policy) Normalize() Policy {
	def := Default()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Factor <= 1 {
		p.Factor = def.Factor
	}
	return p
}

// Delay returns the wait before the next attempt, given the 1-based count of
// completed failed attempts. Without jitter the result is exactly
// min(initial*factor^(attempt-1), max); with jitter it is that value plus a
// uniform ±25% spread, floored at MinDelay.
func Delay(attempt int, p Policy) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt-1))
	capped := math.Min(base, float64(p.MaxDelay))
	if capped < 0 {
		capped = 0
	}

	if !p.Jitter {
		return time.Duration(capped)
	}

	jittered := capped + (rand.Float64()*0.5-0.25)*capped
	if jittered < float64(MinDelay) {
		return MinDelay
	}
	return time.Duration(jittered)
}
