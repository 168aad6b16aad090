package ingest

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// leaseTTL bounds how long a crashed run can block a folder.
const leaseTTL = 30 * time.Minute

// RedisLocker implements Locker with a per-folder lease key.
type RedisLocker struct {
	client *redis.Client
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func lockKey(folderID string) string {
	return "ingest:lock:" + folderID
}

func (l *RedisLocker) Acquire(ctx context.Context, folderID string) (bool, error) {
	return l.client.SetNX(ctx, lockKey(folderID), "1", leaseTTL).Result()
}

func (l *RedisLocker) Release(ctx context.Context, folderID string) error {
	return l.client.Del(ctx, lockKey(folderID)).Err()
}
