package cache

import "time"

// RedisOption configures the Redis client and cache.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis connection and key settings.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	DialTimeout  time.Duration
	Prefix       string
}

func defaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  30 * time.Second,
		DialTimeout:  5 * time.Second,
		Prefix:       "arena",
	}
}

func WithRedisAddr(addr string) RedisOption {
	return func(c *RedisConfig) { c.Addr = addr }
}

func WithRedisPassword(password string) RedisOption {
	return func(c *RedisConfig) { c.Password = password }
}

func WithRedisDB(db int) RedisOption {
	return func(c *RedisConfig) { c.DB = db }
}

// WithRedisPool sets connection pool settings.
func WithRedisPool(poolSize, minIdleConns int, timeout time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PoolSize = poolSize
		c.MinIdleConns = minIdleConns
		c.PoolTimeout = timeout
	}
}

// WithRedisPrefix namespaces every key written by RedisCache.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) { c.Prefix = prefix }
}

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryConfig)

type MemoryConfig struct {
	MaxSize         int
	CleanupInterval time.Duration
}

// WithMemoryMaxSize caps the number of entries; the least recently used entry
// is evicted first.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		if size > 0 {
			c.MaxSize = size
		}
	}
}

// WithMemoryCleanup sets how often expired entries are swept.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *MemoryConfig) {
		if interval > 0 {
			c.CleanupInterval = interval
		}
	}
}

// LayeredOption configures LayeredCache.
type LayeredOption func(*LayeredConfig)

type LayeredConfig struct {
	MemoryMaxSize int
	// MemoryTTL bounds how long a value may be served from process memory
	// after another replica changed it in Redis. Zero means the Redis TTL.
	MemoryTTL time.Duration
}

func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) { c.MemoryMaxSize = size }
}

func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) { c.MemoryTTL = ttl }
}
