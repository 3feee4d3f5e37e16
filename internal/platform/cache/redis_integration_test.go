//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisStoreSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration tests in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	url, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	client, err := NewRedisClient(ctx, RedisOptions{URL: url, DialTimeout: 5 * time.Second})
	s.Require().NoError(err)
	s.Require().NotNil(client)
	s.client = client
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisStoreSuite) TestContract() {
	t := s.T()
	ctx := context.Background()
	store := NewRedisStore(s.client, "translate:")

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "p", []byte(`{"name":"x"}`), 0))
	b, ok, err := store.Get(ctx, "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"x"}`, string(b))

	require.NoError(t, store.Set(ctx, "q", []byte("1"), time.Minute))
	require.NoError(t, store.Delete(ctx, "q"))
	_, ok, _ = store.Get(ctx, "q")
	assert.False(t, ok)
}

func (s *RedisStoreSuite) TestTTLExpiry() {
	t := s.T()
	ctx := context.Background()
	store := NewRedisStore(s.client, "translate:")

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Minute))
	ttl, err := s.client.TTL(ctx, "translate:short").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, store.Set(ctx, "gone", []byte("v"), time.Second))
	require.Eventually(t, func() bool {
		_, ok, err := store.Get(ctx, "gone")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisStoreSuite) TestPrefixNamespacing() {
	t := s.T()
	ctx := context.Background()
	a := NewRedisStore(s.client, "a:")
	b := NewRedisStore(s.client, "b:")

	require.NoError(t, a.Set(ctx, "k", []byte("from-a"), 0))
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	raw, err := s.client.Get(ctx, "a:k").Result()
	require.NoError(t, err)
	assert.Equal(t, "from-a", raw)
}
