package infra

import (
	"testing"
	"time"

	"plant-gateway/middleware/ratelimit/domain"
)

func TestStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewStore(10, 1)

	l1 := s.Get(domain.Key("k"))
	l2 := s.Get(domain.Key("k"))
	if l1 != l2 {
		t.Fatalf("expected same limiter for same key")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 cached client, got %d", s.Len())
	}
}

func TestStore_BurstThenRefillWithClock(t *testing.T) {
	clk := newFakeClock()
	s := NewStore(1, 2, WithStoreClock(clk))

	lim := s.Get(domain.Key("10.0.0.1"))
	if !lim.Allow() || !lim.Allow() {
		t.Fatalf("expected burst of 2 to pass")
	}
	if lim.Allow() {
		t.Fatalf("expected third immediate Allow to be false")
	}

	clk.Advance(time.Second)
	if !lim.Allow() {
		t.Fatalf("expected a token after 1s at 1 rps")
	}
}

func TestStore_KeysAreIndependent(t *testing.T) {
	s := NewStore(0.02, 1, WithStoreClock(newFakeClock()))

	if !s.Get("a").Allow() {
		t.Fatalf("expected first Allow for a")
	}
	if !s.Get("b").Allow() {
		t.Fatalf("expected first Allow for b")
	}
	if s.Get("a").Allow() {
		t.Fatalf("expected second Allow for a to be false")
	}
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	clk := newFakeClock()
	s := NewStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0), WithStoreClock(clk))

	before := s.Get(domain.Key("k"))
	clk.Advance(2 * time.Minute)

	s.Cleanup()
	if s.Len() != 0 {
		t.Fatalf("expected idle entry to be removed")
	}

	after := s.Get(domain.Key("k"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

func TestStore_RetryAfterFromRPS(t *testing.T) {
	if got := NewStore(4, 1).RetryAfter(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
}
