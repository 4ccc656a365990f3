// Package ratelimit implements a token-bucket limiter keyed per
// endpoint family, mirroring the exchange's published request budgets.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket refills at refillRate tokens per second up to capacity.
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	add := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		tb.lastRefill = now
	}
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Manager holds one bucket per logical key ("clob:order:post", ...).
// Unknown keys get a permissive default bucket.
type Manager struct {
	buckets map[string]*TokenBucket
	mu      sync.Mutex
}

func NewManager() *Manager {
	return &Manager{buckets: map[string]*TokenBucket{
		"clob:order:post":   NewTokenBucket(10, 5),
		"clob:order:delete": NewTokenBucket(10, 5),
		"clob:orders:get":   NewTokenBucket(20, 10),
		"clob:market:get":   NewTokenBucket(50, 25),
	}}
}

func (m *Manager) bucket(key string) *TokenBucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[key]
	if !ok {
		b = NewTokenBucket(20, 10)
		m.buckets[key] = b
	}
	return b
}

// Wait blocks until the bucket for key admits a request.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.bucket(key).Wait(ctx)
}
