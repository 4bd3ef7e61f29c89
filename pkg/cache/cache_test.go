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
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCacheFromClient(client, "test")
}

func exercise(t *testing.T, c Service) {
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "quote:GOLD_OTC", quote{"GOLD_OTC", 2025.5}, time.Minute))
	var q quote
	require.NoError(t, c.Get(ctx, "quote:GOLD_OTC", &q))
	assert.Equal(t, quote{"GOLD_OTC", 2025.5}, q)

	require.NoError(t, c.Set(ctx, "name", "signalcast", time.Minute))
	var s string
	require.NoError(t, c.Get(ctx, "name", &s))
	assert.Equal(t, "signalcast", s)

	assert.ErrorIs(t, c.Get(ctx, "missing", &s), ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "quote:USDMXN_OTC", quote{"USDMXN_OTC", 20.1}, time.Minute))
	require.NoError(t, c.DeleteByPattern(ctx, "quote:*"))
	assert.ErrorIs(t, c.Get(ctx, "quote:GOLD_OTC", &q), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "quote:USDMXN_OTC", &q), ErrCacheMiss)
	require.NoError(t, c.Get(ctx, "name", &s))

	require.NoError(t, c.Delete(ctx, "name"))
	assert.ErrorIs(t, c.Get(ctx, "name", &s), ErrCacheMiss)

	locked, err := c.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = c.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)
	require.NoError(t, c.Unlock(ctx, "lock"))
	locked, err = c.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	assert.True(t, locked)

}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	exercise(t, c)
}

func TestRedisCache(t *testing.T) {
	_, c := newRedis(t)
	exercise(t, c)
}

func TestLayeredCache(t *testing.T) {
	_, rc := newRedis(t)
	c := NewLayeredCache(rc, WithLayeredMemorySize(10))
	defer c.l1.Close()
	exercise(t, c)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	var s string
	assert.ErrorIs(t, c.Get(ctx, "k", &s), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", "2", time.Minute))
	time.Sleep(2 * time.Millisecond)
	var s string
	require.NoError(t, c.Get(ctx, "a", &s))
	require.NoError(t, c.Set(ctx, "c", "3", time.Minute))

	assert.ErrorIs(t, c.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "a", &s))
	assert.NoError(t, c.Get(ctx, "c", &s))
}

func TestLayeredDeleteReachesBothLevels(t *testing.T) {
	mr, rc := newRedis(t)
	c := NewLayeredCache(rc)
	defer c.l1.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", quote{"X", 1}, time.Minute))
	assert.True(t, mr.Exists("test:k"))

	require.NoError(t, c.Delete(ctx, "k"))
	var q quote
	assert.ErrorIs(t, c.Get(ctx, "k", &q), ErrCacheMiss)
	assert.False(t, mr.Exists("test:k"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "quote", Key("quote"))
	assert.Equal(t, "series:GOLD_OTC:1h", Key("series", "GOLD_OTC", "1h"))
	assert.Equal(t, "series:GOLD_OTC:*", Under("series", "GOLD_OTC"))
}

func TestMemoryCleanupSweepsExpired(t *testing.T) {
	c := NewMemoryCache(WithMemoryCleanup(5 * time.Millisecond))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", "v", time.Minute))

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.entries) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestLayeredMemoryTTLBoundsStaleReads(t *testing.T) {
	mr, rc := newRedis(t)
	c := NewLayeredCache(rc, WithLayeredMemoryTTL(20*time.Millisecond))
	defer c.l1.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "quote:GOLD_OTC", quote{"GOLD_OTC", 1}, time.Minute))
	// another instance overwrites Redis directly
	require.NoError(t, mr.Set("test:quote:GOLD_OTC", `{"symbol":"GOLD_OTC","price":2}`))

	var q quote
	require.NoError(t, c.Get(ctx, "quote:GOLD_OTC", &q))
	assert.Equal(t, 1.0, q.Price)

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, c.Get(ctx, "quote:GOLD_OTC", &q))
	assert.Equal(t, 2.0, q.Price)
}
