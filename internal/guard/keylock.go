package guard

import (
	"context"
	"sync"
	"time"
)

// KeyLocker is a short-lived, TTL-bounded lock keyed by string. TryLock
// atomically tests and sets; the TTL is a safety net against a crashed
// holder leaving a stale lock.
type KeyLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// MemoryLocker is an in-process KeyLocker used when Redis is not
// configured, and by tests.
type MemoryLocker struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryLocker constructs an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{expires: make(map[string]time.Time), now: time.Now}
}

// TryLock acquires key unless an unexpired lock is present. Expired
// entries are dropped on every acquisition so the map does not grow
// with the number of distinct keys seen.
func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, until := range l.expires {
		if !now.Before(until) {
			delete(l.expires, k)
		}
	}
	if _, held := l.expires[key]; held {
		return false, nil
	}
	l.expires[key] = now.Add(ttl)
	return true, nil
}

// Unlock releases key. Releasing an expired or absent key is a no-op.
func (l *MemoryLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.expires, key)
	return nil
}
