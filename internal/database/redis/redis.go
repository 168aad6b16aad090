// Package redis wires up the lease store used to serialize ingestion runs.
package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"drivemind/internal/config"
)

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func HealthCheck(ctx context.Context, rdb *redis.Client) error {
	return rdb.Ping(ctx).Err()
}
