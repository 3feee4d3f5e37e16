package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTTL_GetAfterSet(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewTTL[string, int](time.Hour, clock.Now)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	stored, ok := c.StoredAt("a")
	require.True(t, ok)
	assert.Equal(t, epoch, stored)
}

func TestTTL_ExpiresAtBoundary(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewTTL[string, string](24*time.Hour, clock.Now)
	c.Set("kid-1", "key")

	clock.Advance(24*time.Hour - time.Second)
	assert.True(t, c.Has("kid-1"))

	clock.Advance(time.Second)
	_, ok := c.Get("kid-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be dropped on read")
}

func TestTTL_SetWithTTL(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewTTL[string, int](time.Hour, clock.Now)

	c.SetWithTTL("short", 1, time.Minute)
	c.SetWithTTL("default", 2, 0)

	clock.Advance(2 * time.Minute)
	assert.False(t, c.Has("short"))
	assert.True(t, c.Has("default"))
}

func TestTTL_Purge(t *testing.T) {
	clock := NewManualClock(epoch)
	c := NewTTL[int, int](time.Minute, clock.Now)
	for i := 0; i < 5; i++ {
		c.Set(i, i)
	}
	clock.Advance(30 * time.Second)
	c.Set(99, 99)
	clock.Advance(31 * time.Second)

	assert.Equal(t, 5, c.Purge())
	assert.Equal(t, 1, c.Len())
}

func TestTTL_DeleteAndClear(t *testing.T) {
	c := NewTTL[string, int](time.Minute, nil)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	assert.False(t, c.Has("a"))

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTL_ConcurrentAccess(t *testing.T) {
	c := NewTTL[int, int](time.Minute, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.Set(n%5, n)
			c.Get(n % 5)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, c.Len())
}

func TestMemoryStore_Contract(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(epoch)
	s := NewMemoryStore(time.Hour, clock.Now)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "p", []byte(`{"name":"x"}`), 0))
	b, ok, err := s.Get(ctx, "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"x"}`, string(b))

	clock.Advance(time.Hour)
	_, ok, _ = s.Get(ctx, "p")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "q", []byte("1"), time.Minute))
	require.NoError(t, s.Delete(ctx, "q"))
	_, ok, _ = s.Get(ctx, "q")
	assert.False(t, ok)
}

func TestNewRedisClient_EmptyURL(t *testing.T) {
	client, err := NewRedisClient(context.Background(), RedisOptions{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisOptions{URL: "not-a-url://"})
	assert.Error(t, err)
}
