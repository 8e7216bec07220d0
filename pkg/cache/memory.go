package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key      string
	value    []byte
	expireAt time.Time // zero: never
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryCache is an in-process LRU cache with per-entry TTL.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List // front is most recently used
	maxSize int
	now     func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
}

var _ Service = (*MemoryCache)(nil)

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		items:   make(map[string]*list.Element, cfg.MaxSize),
		lru:     list.New(),
		maxSize: cfg.MaxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go mc.sweep(cfg.CleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := encode(key, value)
	if err != nil {
		return err
	}
	mc.setRaw(key, b, expiration)
	return nil
}

func (mc *MemoryCache) setRaw(key string, b []byte, expiration time.Duration) {
	var expireAt time.Time
	if expiration > 0 {
		expireAt = mc.now().Add(expiration)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if el, ok := mc.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value = b
		e.expireAt = expireAt
		mc.lru.MoveToFront(el)
		return
	}
	for mc.lru.Len() >= mc.maxSize {
		mc.removeElement(mc.lru.Back())
	}
	mc.items[key] = mc.lru.PushFront(&memoryEntry{key: key, value: b, expireAt: expireAt})
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	b, ok := mc.getRaw(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(key, b, dest)
}

func (mc *MemoryCache) getRaw(key string) ([]byte, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memoryEntry)
	if e.expired(mc.now()) {
		mc.removeElement(el)
		return nil, false
	}
	mc.lru.MoveToFront(el)
	return e.value, true
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok && !el.Value.(*memoryEntry).expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// Len reports the number of stored entries, expired ones included until swept.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lru.Len()
}

// removeElement must be called with mu held.
func (mc *MemoryCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	mc.lru.Remove(el)
	delete(mc.items, el.Value.(*memoryEntry).key)
}

func (mc *MemoryCache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-t.C:
		}

		mc.mu.Lock()
		now := mc.now()
		for el := mc.lru.Back(); el != nil; {
			prev := el.Prev()
			if el.Value.(*memoryEntry).expired(now) {
				mc.removeElement(el)
			}
			el = prev
		}
		mc.mu.Unlock()
	}
}

// Close stops the sweeper. The cache stays usable.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.stop) })
	return nil
}
