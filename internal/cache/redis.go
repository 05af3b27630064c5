package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore stores query results in Redis. When Redis is unavailable it
// falls back to an in-memory store so the dashboard keeps serving.
type RedisStore struct {
	rdb    *redis.Client
	mem    *MemoryStore
	prefix string
	logger *slog.Logger
}

// NewRedisStore creates a RedisStore and pings the server.
func NewRedisStore(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		rdb:    rdb,
		mem:    NewMemoryStore(0),
		prefix: "cryptodash:",
		logger: logger.With("component", "redis-cache"),
	}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return r.mem.Get(ctx, key)
	}
	if err != nil {
		r.logger.Warn("redis get failed, using memory cache", "key", key, "err", err)
		return r.mem.Get(ctx, key)
	}
	return b, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.prefix+key, val, ttl).Err(); err != nil {
		_ = r.mem.Set(ctx, key, val, ttl)
		return fmt.Errorf("redis set %s, using memory cache: %w", key, err)
	}
	return nil
}

// Health checks the Redis connection.
func (r *RedisStore) Health(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	r.mem.Close()
	return r.rdb.Close()
}
