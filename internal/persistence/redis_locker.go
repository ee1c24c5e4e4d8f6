package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const creationLockPrefix = "guilddesk:create:"

// RedisKeyLocker implements the creation guard's KeyLocker on Redis
// SET NX. The TTL protects against a crashed process holding the lock
// past its useful life.
type RedisKeyLocker struct {
	client *redis.Client
}

// NewRedisKeyLocker wraps an existing client.
func NewRedisKeyLocker(client *redis.Client) *RedisKeyLocker {
	return &RedisKeyLocker{client: client}
}

// TryLock atomically sets the key if absent.
func (l *RedisKeyLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, creationLockPrefix+key, "1", ttl).Result()
}

// Unlock deletes the key.
func (l *RedisKeyLocker) Unlock(ctx context.Context, key string) error {
	return l.client.Del(ctx, creationLockPrefix+key).Err()
}
