// Package ratelimit implements the keyed token-bucket admission gate
// placed in front of costly ticket actions.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config controls bucket behavior. Every key owns an independent bucket
// with the same capacity and refill rate.
type Config struct {
	// Capacity is the maximum token balance per bucket.
	Capacity float64
	// RefillPerSecond is the continuous token accrual rate.
	RefillPerSecond float64
	// IdleTTL bounds memory: buckets untouched for longer are evicted.
	IdleTTL time.Duration
	// SweepInterval is how often the janitor scans for idle buckets.
	SweepInterval time.Duration
}

// Decision is the result of a non-consuming Check.
type Decision struct {
	Allowed         bool
	TokensRemaining float64
	Wait            time.Duration
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	lastUsed   time.Time
	pending    int
}

// Limiter maintains one token bucket per key. Check peeks without
// consuming; Acquire consumes and suspends the caller until the cost is
// satisfiable. Acquire never rejects, it only delays.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// New constructs a Limiter and starts its idle-bucket janitor.
func New(cfg Config) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 5
	}
	if cfg.RefillPerSecond <= 0 {
		cfg.RefillPerSecond = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Close stops the janitor. In-flight Acquire calls are unaffected.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// Check reports whether a cost-1 acquisition would proceed without
// waiting. It consumes nothing and creates no bucket for unknown keys.
func (l *Limiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return Decision{Allowed: true, TokensRemaining: l.cfg.Capacity}
	}
	l.refill(b)
	if b.tokens >= 1 {
		return Decision{Allowed: true, TokensRemaining: b.tokens}
	}
	shortfall := 1 - b.tokens
	wait := time.Duration(shortfall / l.cfg.RefillPerSecond * float64(time.Second))
	return Decision{Allowed: false, TokensRemaining: b.tokens, Wait: wait}
}

// Acquire consumes cost tokens from the key's bucket, suspending until
// the balance allows it. The reservation is taken immediately, so later
// acquisitions queue behind it; cancelling ctx refunds the cost.
func (l *Limiter) Acquire(ctx context.Context, key string, cost float64) error {
	if cost <= 0 {
		cost = 1
	}

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.cfg.Capacity, lastRefill: l.now()}
		l.buckets[key] = b
	}
	l.refill(b)
	b.lastUsed = l.now()
	b.tokens -= cost
	if b.tokens >= 0 {
		l.mu.Unlock()
		return nil
	}
	wait := time.Duration(-b.tokens / l.cfg.RefillPerSecond * float64(time.Second))
	b.pending++
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		l.mu.Lock()
		b.pending--
		b.lastUsed = l.now()
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		b.pending--
		b.tokens += cost
		l.mu.Unlock()
		return ctx.Err()
	}
}

// refill lazily accrues tokens based on elapsed wall-clock time,
// capping at capacity. Caller holds l.mu.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * l.cfg.RefillPerSecond
	if b.tokens > l.cfg.Capacity {
		b.tokens = l.cfg.Capacity
	}
	b.lastRefill = now
}

func (l *Limiter) janitor() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets idle past the TTL. Buckets with a pending Acquire
// keep their map entry; the waiter holds its own pointer either way.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-l.cfg.IdleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.pending == 0 && b.lastUsed.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// size reports the live bucket count. Used by tests and metrics.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
