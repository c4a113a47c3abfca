package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_TakeAllowsUpToLimit(t *testing.T) {
	l := NewLimiter()
	for i := 0; i < 5; i++ {
		if ok, _ := l.Take("ip:1.2.3.4", 5, time.Minute); !ok {
			t.Fatalf("expected hit %d to be allowed", i)
		}
	}
	ok, retryAfter := l.Take("ip:1.2.3.4", 5, time.Minute)
	if ok {
		t.Fatal("expected 6th hit within window to be rejected")
	}
	if retryAfter <= 0 {
		t.Fatal("expected a positive retry-after hint once rejected")
	}
}

func TestLimiter_TakeSlidesWindowForward(t *testing.T) {
	l := NewLimiter()
	past := time.Now().Add(-2 * time.Minute)
	l.hits["key"] = []time.Time{past, past, past}

	if ok, _ := l.Take("key", 3, time.Minute); !ok {
		t.Fatal("expected stale hits outside window to be pruned before counting")
	}
}

func TestLimiter_TakeCooldownBlocksWithinWindow(t *testing.T) {
	l := NewLimiter()
	if ok, remaining := l.TakeCooldown("slug:abc", 30*time.Second); !ok || remaining != 0 {
		t.Fatal("expected first cooldown take to succeed with no remaining wait")
	}
	ok, remaining := l.TakeCooldown("slug:abc", 30*time.Second)
	if ok {
		t.Fatal("expected second cooldown take within window to fail")
	}
	if remaining <= 0 {
		t.Fatal("expected a positive remaining-seconds hint while cooling down")
	}
}

func TestLimiter_TakeCooldownAllowsAfterExpiry(t *testing.T) {
	l := NewLimiter()
	l.cooldowns["slug:abc"] = time.Now().Add(-time.Second)
	if ok, remaining := l.TakeCooldown("slug:abc", 30*time.Second); !ok || remaining != 0 {
		t.Fatal("expected cooldown take to succeed once prior cooldown expired")
	}
}

func TestLimiter_PruneRemovesExpiredCooldowns(t *testing.T) {
	l := NewLimiter()
	l.cooldowns["slug:x"] = time.Now().Add(-time.Minute)
	l.prune(time.Now())
	if _, ok := l.cooldowns["slug:x"]; ok {
		t.Fatal("expected expired cooldown to be pruned")
	}
}
