// Package throttle paces outbound exchange calls with a token bucket so
// long historical fetches stay under the venue's request limits.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Bucket is a token-bucket limiter. It starts full and refills at a fixed
// rate per second.
type Bucket struct {
	capacity  int
	perSecond int

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

func NewBucket(capacity, perSecond int) *Bucket {
	if capacity <= 0 {
		capacity = 1
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Bucket{
		capacity:   capacity,
		perSecond:  perSecond,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is cancelled.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		if b.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryAfter()):
		}
	}
}

func (b *Bucket) refill() {
	elapsed := time.Since(b.lastRefill)
	if elapsed < time.Second {
		return
	}
	b.tokens += int(elapsed.Seconds()) * b.perSecond
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = time.Now()
}

// retryAfter estimates the wait for the next token, padded for timer
// granularity.
func (b *Bucket) retryAfter() time.Duration {
	wait := time.Second / time.Duration(b.perSecond)
	return wait + 50*time.Millisecond
}
