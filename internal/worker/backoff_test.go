package worker

import (
	"testing"
	"time"
)

func TestBackoff_FirstRateLimitUsesInitialInterval(t *testing.T) {
	b := NewBackoff()
	now := time.Now()
	b.OnRateLimited(now, 0)

	if !b.CoolingDown(now.Add(5 * time.Second)) {
		t.Fatal("expected still cooling down 5s after a fresh 6s backoff")
	}
	if b.CoolingDown(now.Add(7 * time.Second)) {
		t.Fatal("expected cooldown to have expired after 7s")
	}
}

func TestBackoff_StreakDoublesInterval(t *testing.T) {
	b := NewBackoff()
	now := time.Now()
	b.OnRateLimited(now, 0)
	now = now.Add(6 * time.Second)
	b.OnRateLimited(now, 0)

	if !b.CoolingDown(now.Add(11 * time.Second)) {
		t.Fatal("expected second backoff (12s) to still be cooling at 11s")
	}
	if b.CoolingDown(now.Add(13 * time.Second)) {
		t.Fatal("expected second backoff to have expired by 13s")
	}
}

func TestBackoff_RetryAfterOverridesShorterExpBackoff(t *testing.T) {
	b := NewBackoff()
	now := time.Now()
	b.OnRateLimited(now, 20_000)

	if !b.CoolingDown(now.Add(15 * time.Second)) {
		t.Fatal("expected retry-after hint of 20s to extend past the 6s exp backoff")
	}
}

func TestBackoff_StreakResetsAfterQuietPeriod(t *testing.T) {
	b := NewBackoff()
	first := time.Now()
	b.OnRateLimited(first, 0)

	second := first.Add(streakResetAfter + time.Second)
	b.OnRateLimited(second, 0)

	if !b.CoolingDown(second.Add(5 * time.Second)) {
		t.Fatal("expected reset streak to use the 6s initial interval again")
	}
	if b.CoolingDown(second.Add(7 * time.Second)) {
		t.Fatal("expected reset streak's cooldown to expire at 6s, not accumulate")
	}
}

func TestBackoff_SuccessClearsCooldown(t *testing.T) {
	b := NewBackoff()
	now := time.Now()
	b.OnRateLimited(now, 0)
	b.OnSuccess()

	if b.CoolingDown(now) {
		t.Fatal("expected success to clear any active cooldown")
	}
}
