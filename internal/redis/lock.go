package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireSpawnLock attempts to lock a spawn scope for one time window, so two
// schedulers triggering the same window cannot double-spawn it.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireSpawnLock(ctx context.Context, scopeID string, window time.Time, ttl time.Duration) (bool, error) {
	key := spawnLockKey(scopeID, window)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseSpawnLock releases the lock for a spawn scope and window.
func (s *LockStore) ReleaseSpawnLock(ctx context.Context, scopeID string, window time.Time) error {
	return s.client.Del(ctx, spawnLockKey(scopeID, window)).Err()
}

func spawnLockKey(scopeID string, window time.Time) string {
	return fmt.Sprintf("lock:spawn:%s:%d", scopeID, window.Unix())
}
