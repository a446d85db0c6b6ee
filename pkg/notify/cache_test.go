package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheEvictsStale(t *testing.T) {
	clk := &clock{now: testNow}
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "old", Entry{MessageID: "1", CreatedAt: testNow}))
	clk.Advance(30 * time.Second)
	require.NoError(t, cache.Put(ctx, "new", Entry{MessageID: "2", CreatedAt: clk.Now()}))

	clk.Advance(45 * time.Second)
	_, found, err := cache.Get(ctx, "old", clk.Now())
	require.NoError(t, err)
	assert.False(t, found)

	entry, found, err := cache.Get(ctx, "new", clk.Now())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2", entry.MessageID)

	require.NoError(t, cache.EvictStale(ctx, clk.Now()))
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCacheUsesCallerClock(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "k", Entry{MessageID: "1", CreatedAt: testNow}))

	_, found, err := cache.Get(ctx, "k", testNow.Add(59*time.Second))
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = cache.Get(ctx, "k", testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewRedisCache(client, "ghbridge:test:", time.Minute)
	t.Cleanup(func() { _ = cache.Close() })
	ctx := context.Background()

	_, found, err := cache.Get(ctx, "k", testNow)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Put(ctx, "k", Entry{MessageID: "42", CreatedAt: testNow}))
	assert.True(t, srv.Exists("ghbridge:test:k"))
	assert.Equal(t, time.Minute, srv.TTL("ghbridge:test:k"))

	entry, found, err := cache.Get(ctx, "k", testNow)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "42", entry.MessageID)
	assert.True(t, entry.CreatedAt.Equal(testNow))

	srv.FastForward(time.Minute)
	_, found, err = cache.Get(ctx, "k", testNow)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOpenRedisCache(t *testing.T) {
	srv := miniredis.RunT(t)
	cache, err := OpenRedisCache(context.Background(), "redis://"+srv.Addr()+"/0", "p:", 0)
	require.NoError(t, err)
	defer cache.Close()

	d := NewDispatcher(cache)
	out := &fakeDeliverer{target: "hook"}
	_, err = d.Send(context.Background(), out, "k", Message{})
	require.NoError(t, err)
	res, err := d.Send(context.Background(), out, "k", Message{})
	require.NoError(t, err)
	assert.Equal(t, OperationEdit, res.Operation)

	_, err = OpenRedisCache(context.Background(), "not a url", "p:", 0)
	assert.Error(t, err)
}
