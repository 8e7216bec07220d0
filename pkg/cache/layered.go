package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// LayeredCache reads through process memory (L1) to Redis (L2) and writes
// through to both. L1 lifetime is the smaller of the remaining Redis TTL and
// the configured MemoryTTL.
type LayeredCache struct {
	l1    *MemoryCache
	l2    *RedisCache
	l1TTL time.Duration
}

var _ Service = (*LayeredCache)(nil)

func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{MemoryMaxSize: 1000}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		l2:    redisCache,
		l1TTL: cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) memoryTTL(ttl time.Duration) time.Duration {
	if lc.l1TTL > 0 && (ttl <= 0 || ttl > lc.l1TTL) {
		return lc.l1TTL
	}
	return ttl
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := encode(key, value)
	if err != nil {
		return err
	}
	if err := lc.l2.Set(ctx, key, json.RawMessage(b), expiration); err != nil {
		return err
	}
	lc.l1.setRaw(key, b, lc.memoryTTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if b, ok := lc.l1.getRaw(key); ok {
		return decode(key, b, dest)
	}

	var raw json.RawMessage
	if err := lc.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	ttl, err := lc.l2.TTL(ctx, key)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		return err
	}
	if err == nil {
		lc.l1.setRaw(key, raw, lc.memoryTTL(ttl))
	}
	return decode(key, raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

// Exists consults Redis only; L1 may hold entries another replica deleted.
func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.l2.Exists(ctx, keys...)
}

func (lc *LayeredCache) Close() error {
	return lc.l1.Close()
}
