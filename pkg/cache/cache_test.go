package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	Price float64   `json:"price"`
	At    time.Time `json:"at"`
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemory(t *testing.T, opts ...MemoryOption) (*MemoryCache, *fakeClock) {
	t.Helper()
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	mc.now = clk.now
	return mc, clk
}

func TestMemoryCache_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	mc, clk := newMemory(t)

	want := quote{Price: 612.4, At: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, mc.Set(ctx, "q", want, 10*time.Second))

	var got quote
	require.NoError(t, mc.Get(ctx, "q", &got))
	assert.Equal(t, want, got)

	ok, err := mc.Exists(ctx, "q")
	require.NoError(t, err)
	assert.True(t, ok)

	clk.advance(11 * time.Second)
	assert.ErrorIs(t, mc.Get(ctx, "q", &got), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	mc, clk := newMemory(t)

	require.NoError(t, mc.Set(ctx, "k", 7, 0))
	clk.advance(365 * 24 * time.Hour)

	var v int
	require.NoError(t, mc.Get(ctx, "k", &v))
	assert.Equal(t, 7, v)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, _ := newMemory(t, WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v)) // a is now most recent
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
	require.NoError(t, mc.Get(ctx, "c", &v))
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, mc.Len())
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	client, srv := newRedis(t)
	rc := NewRedisCache(client, WithRedisPrefix("test"))

	require.NoError(t, rc.Set(ctx, "p", quote{Price: 1.5}, time.Minute))
	assert.True(t, srv.Exists("test:p"))

	var got quote
	require.NoError(t, rc.Get(ctx, "p", &got))
	assert.Equal(t, 1.5, got.Price)

	ttl, err := rc.TTL(ctx, "p")
	require.NoError(t, err)
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 1)

	require.NoError(t, rc.Delete(ctx, "p"))
	assert.ErrorIs(t, rc.Get(ctx, "p", &got), ErrCacheMiss)
	_, err = rc.TTL(ctx, "p")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLayeredCache_BackfillsMemory(t *testing.T) {
	ctx := context.Background()
	client, srv := newRedis(t)
	rc := NewRedisCache(client)
	lc := NewLayeredCache(rc)
	defer lc.Close()

	require.NoError(t, rc.Set(ctx, "k", 42, time.Minute))

	var v int
	require.NoError(t, lc.Get(ctx, "k", &v))
	assert.Equal(t, 42, v)

	// served from memory once Redis loses it
	srv.Del("arena:k")
	v = 0
	require.NoError(t, lc.Get(ctx, "k", &v))
	assert.Equal(t, 42, v)
}

func TestLayeredCache_WriteThrough(t *testing.T) {
	ctx := context.Background()
	client, srv := newRedis(t)
	lc := NewLayeredCache(NewRedisCache(client, WithRedisPrefix("px")), WithLayeredMemoryTTL(time.Second))
	defer lc.Close()

	require.NoError(t, lc.Set(ctx, "price", quote{Price: 600}, time.Minute))
	stored, err := srv.Get("px:price")
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":600,"at":"0001-01-01T00:00:00Z"}`, stored)

	var got quote
	require.NoError(t, lc.Get(ctx, "price", &got))
	assert.Equal(t, 600.0, got.Price)

	require.NoError(t, lc.Delete(ctx, "price"))
	assert.ErrorIs(t, lc.Get(ctx, "price", &got), ErrCacheMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "price:binancecoin:usd", Key("price", "binancecoin", "usd"))
	assert.Equal(t, "arena:k", Key("arena", "", "k"))
	assert.Equal(t, "k", Key("", "k"))
}
