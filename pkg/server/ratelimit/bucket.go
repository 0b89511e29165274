package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket allows bursts up to its capacity while holding an average
// rate. Each request takes one token; tokens refill at a constant rate.
type TokenBucket struct {
	capacity   int64
	tokens     int64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastUsed   time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now,
		lastUsed:   now,
	}
}

// Take consumes one token and reports whether one was available, with the
// tokens left afterwards.
func (tb *TokenBucket) Take() (bool, int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	tb.lastUsed = time.Now()
	if tb.tokens > 0 {
		tb.tokens--
		return true, tb.tokens
	}
	return false, 0
}

// RetryAfter returns how long until the next token is available.
func (tb *TokenBucket) RetryAfter() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens > 0 || tb.refillRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / tb.refillRate)
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastUsed
}

// refillLocked adds whole tokens for the time elapsed. lastRefill only moves
// when tokens are added so fractional progress is kept.
func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	add := int64(now.Sub(tb.lastRefill).Seconds() * tb.refillRate)
	if add > 0 {
		tb.tokens = min(tb.tokens+add, tb.capacity)
		tb.lastRefill = now
	}
}
