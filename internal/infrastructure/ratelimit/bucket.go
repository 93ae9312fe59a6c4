package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so the bucket is testable with a simulated clock
// instead of real sleeps.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Bucket is a token bucket admitting at most capacity requests per rolling
// minute. It starts full. Safe for concurrent use.
type Bucket struct {
	mu           sync.Mutex
	capacity     float64
	tokens       float64
	refillPerSec float64
	lastRefill   time.Time
	clock        Clock
}

// NewBucket builds a bucket for perMinute requests. A nil clock uses the
// system clock.
func NewBucket(perMinute int, clock Clock) *Bucket {
	if perMinute < 1 {
		perMinute = 1
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Bucket{
		capacity:     float64(perMinute),
		tokens:       float64(perMinute),
		refillPerSec: float64(perMinute) / 60.0,
		lastRefill:   clock.Now(),
		clock:        clock,
	}
}

func (b *Bucket) refillLocked() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// TryAcquire takes one token without waiting. It reports false when the
// bucket is empty so the caller can degrade to fewer layers instead of
// bursting.
func (b *Bucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Acquire takes one token, waiting for refill if necessary. It returns the
// context error when cancelled while waiting.
func (b *Bucket) Acquire(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refillLocked()
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}
		deficit := 1 - b.tokens
		wait := time.Duration(deficit / b.refillPerSec * float64(time.Second))
		b.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(wait):
		}
	}
}
