// Package worker implements the per-call advice pipeline (C7) and its
// backoff controller (C11), grounded on the teacher's overall preference
// for small, focused, mutex-protected components, generalized to a
// per-call scheduling problem the teacher never had.
package worker

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const streakResetAfter = 90 * time.Second

// Backoff tracks the 429 cooldown state of spec.md §4.11 for a single call.
// cenkalti/backoff/v4's ExponentialBackOff supplies the doubling sequence
// (6s, 12s, 24s, ... capped at 60s) with jitter disabled so the sequence is
// exactly the spec's `6000 * 2^(streak-1)`.
type Backoff struct {
	mu              sync.Mutex
	eb              *backoff.ExponentialBackOff
	streak          int
	lastRateLimitAt time.Time
	coolUntil       time.Time
}

func NewBackoff() *Backoff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 6 * time.Second
	eb.Multiplier = 2
	eb.MaxInterval = 60 * time.Second
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	return &Backoff{eb: eb}
}

// OnRateLimited records a 429 at now, extending the cooldown by the larger
// of the exponential backoff and the provider's Retry-After hint.
func (b *Backoff) OnRateLimited(now time.Time, retryAfterMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.lastRateLimitAt.IsZero() && now.Sub(b.lastRateLimitAt) > streakResetAfter {
		b.streak = 0
		b.eb.Reset()
	}
	b.streak++
	b.lastRateLimitAt = now

	wait := b.eb.NextBackOff()
	if retryAfter := time.Duration(retryAfterMs) * time.Millisecond; retryAfter > wait {
		wait = retryAfter
	}
	b.coolUntil = now.Add(wait)
}

// OnNonRateLimitFailure applies no extra cooldown; the caller still bumps
// its own last-model-run-at so MIN_INTERVAL continues to gate retries.
func (b *Backoff) OnNonRateLimitFailure() {}

// OnSuccess clears all backoff state.
func (b *Backoff) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streak = 0
	b.lastRateLimitAt = time.Time{}
	b.coolUntil = time.Time{}
	b.eb.Reset()
}

// CoolingDown reports whether now is still within an active cooldown.
func (b *Backoff) CoolingDown(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Before(b.coolUntil)
}
