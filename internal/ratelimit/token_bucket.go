package ratelimit

import (
	"sync"
	"time"
)

// Clock is the time source a TokenBucket refills against.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

const nanoTokensPerToken int64 = int64(time.Second)

const maxInt64 = int64(^uint64(0) >> 1)

// TokenBucket refills at an integer rate of tokens/sec up to a fixed burst.
//
// Balances are kept in fixed-point nano-tokens (1 token = 1e9) so a rate of X
// tokens/sec adds exactly X nano-tokens per elapsed nanosecond.
type TokenBucket struct {
	mu    sync.Mutex
	clock Clock

	burst int64 // tokens
	rate  int64 // tokens/sec

	nanoTokens int64
	last       time.Time
}

// NewTokenBucket returns a full bucket. A nil clock uses wall time.
func NewTokenBucket(clock Clock, burst, rate int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if burst < 0 {
		burst = 0
	}
	if rate < 0 {
		rate = 0
	}
	return &TokenBucket{
		clock:      clock,
		burst:      burst,
		rate:       rate,
		nanoTokens: toNano(burst),
		last:       clock.Now(),
	}
}

// Allow takes n tokens if the bucket holds that many. n <= 0 always succeeds.
func (b *TokenBucket) Allow(n int64) bool {
	if n <= 0 {
		return true
	}
	cost := toNano(n)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.nanoTokens < cost {
		return false
	}
	b.nanoTokens -= cost
	return true
}

// Tokens reports the whole tokens currently available.
func (b *TokenBucket) Tokens() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.nanoTokens / nanoTokensPerToken
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Clock stepped backwards; rebase without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	if elapsed <= 0 {
		return
	}
	b.last = now

	full := toNano(b.burst)
	if b.rate <= 0 || b.nanoTokens >= full {
		if b.nanoTokens > full {
			b.nanoTokens = full
		}
		return
	}

	// Clamp before multiplying so elapsed*rate cannot overflow.
	need := full - b.nanoTokens
	if elapsed >= need/b.rate+1 {
		b.nanoTokens = full
		return
	}
	b.nanoTokens += elapsed * b.rate
	if b.nanoTokens > full {
		b.nanoTokens = full
	}
}

func toNano(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	if tokens > maxInt64/nanoTokensPerToken {
		return maxInt64
	}
	return tokens * nanoTokensPerToken
}
