package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client and checks connectivity.
func NewRedisClient(opts ...RedisOption) (*redis.Client, error) {
	cfg := defaultRedisConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		PoolTimeout:  cfg.PoolTimeout,
		DialTimeout:  cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisCache stores JSON values under a key prefix. It does not own the
// client; Close is a no-op so the client can be shared with the job queue.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ Service = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, opts ...RedisOption) *RedisCache {
	cfg := defaultRedisConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &RedisCache{client: client, prefix: cfg.Prefix}
}

func (c *RedisCache) key(k string) string {
	return Key(c.prefix, k)
}

func (c *RedisCache) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = c.key(k)
	}
	return out
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := encode(key, value)
	if err != nil {
		return err
	}
	if expiration < 0 {
		expiration = 0
	}
	return c.client.Set(ctx, c.key(key), b, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	b, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	return decode(key, b, dest)
}

// TTL returns the remaining lifetime of key. Zero means no expiry; a missing
// key yields ErrCacheMiss.
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.PTTL(ctx, c.key(key)).Result()
	if err != nil {
		return 0, err
	}
	switch {
	case d == -2:
		return 0, ErrCacheMiss
	case d < 0:
		return 0, nil
	}
	return d, nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, c.keys(keys)...).Err()
}

func (c *RedisCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	n, err := c.client.Exists(ctx, c.keys(keys)...).Result()
	return n > 0, err
}

func (c *RedisCache) Close() error { return nil }
