package server

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisKV backs the KV interface with a redis instance.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to redis at addr and verifies the connection.
func NewRedisKV(ctx context.Context, addr string) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisKV{client: client}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying connection pool.
func (r *RedisKV) Close() error { return r.client.Close() }
