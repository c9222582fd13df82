package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenBucket_AllowAndRefill(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 5, 5)

	if !b.Allow(5) {
		t.Fatalf("expected initial burst to succeed")
	}
	if b.Allow(1) {
		t.Fatalf("expected bucket to be empty")
	}

	clk.Advance(200 * time.Millisecond)
	if !b.Allow(1) {
		t.Fatalf("expected one token after 200ms at 5/s")
	}
	if b.Allow(1) {
		t.Fatalf("expected bucket to be empty again")
	}
}

func TestTokenBucket_DoesNotExceedBurst(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 1, 1)

	if !b.Allow(1) {
		t.Fatalf("expected initial token")
	}
	clk.Advance(10 * time.Second)
	if got := b.Tokens(); got != 1 {
		t.Fatalf("Tokens=%d, want 1", got)
	}
	if !b.Allow(1) {
		t.Fatalf("expected refill up to burst")
	}
	if b.Allow(1) {
		t.Fatalf("expected burst clamp")
	}
}

func TestTokenBucket_ClockBackwards(t *testing.T) {
	clk := &fakeClock{now: time.Unix(100, 0)}
	b := NewTokenBucket(clk, 2, 1)
	b.Allow(2)

	clk.Advance(-time.Minute)
	if b.Allow(1) {
		t.Fatalf("expected no refill when the clock steps back")
	}
	clk.Advance(time.Second)
	if !b.Allow(1) {
		t.Fatalf("expected refill relative to the rebased time")
	}
}

func TestConnLimiter(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewConnLimiter(clk, ConnLimits{MessagesPerSecond: 2, BytesPerSecond: 100})

	if !l.Allow(10) || !l.Allow(10) {
		t.Fatalf("expected two messages within budget")
	}
	if l.Allow(10) {
		t.Fatalf("expected message rate limit")
	}

	clk.Advance(time.Second)
	if l.Allow(200) {
		t.Fatalf("expected byte budget to reject an oversized burst")
	}

	var nilLimiter *ConnLimiter
	if !nilLimiter.Allow(1 << 20) {
		t.Fatalf("nil limiter must allow everything")
	}
	if !NewConnLimiter(clk, ConnLimits{}).Allow(1 << 20) {
		t.Fatalf("zero limits must allow everything")
	}
}
