package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient init Redis Sentinel connection
func NewRedisClient(masterName string, sentinelAddrs []string, db int) (*redis.Client, error) {
	rdb := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:    masterName,
		SentinelAddrs: sentinelAddrs,
		DB:            db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis sentinel: %w", err)
	}

	return rdb, nil
}

// NewRedis connect through sentinel when configured, else to the single node at Addr
func NewRedis(ctx context.Context, c RedisConnection) (*redis.Client, error) {
	if len(c.SentinelAddrs) > 0 {
		return NewRedisClient(c.MasterName, c.SentinelAddrs, c.DB)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: c.Addr,
		DB:   c.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis %s: %w", c.Addr, err)
	}
	return rdb, nil
}
