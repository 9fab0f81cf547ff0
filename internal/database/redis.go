package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/turnclock/internal/config"
)

// NewRedis connects to the Redis record store described by REDIS_URL and
// waits until it answers PING.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := waitReady(context.Background(), "redis", startupRetry, ping); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
