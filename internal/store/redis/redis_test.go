package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"

	"github.com/Noobiez16/SubliGraphic/internal/store"
	"github.com/Noobiez16/SubliGraphic/internal/store/storetest"
)

func setupTestRedis(t *testing.T, cfg Config) (*Scoper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, cfg), mr
}

func TestRedisStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, limits store.Limits) store.Scoper {
		s, _ := setupTestRedis(t, Config{Limits: limits})
		return s
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	s, mr := setupTestRedis(t, Config{Limits: store.DefaultLimits()})
	ctx := context.Background()

	require.NoError(t, s.Scope("alice").Set(ctx, "cart", []byte(`[]`)))

	got, err := mr.Get("storefront:{alice}:kv:cart")
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
	assert.Equal(t, "6", mr.HGet("storefront:{alice}:sizes", "cart"))
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := setupTestRedis(t, Config{TTL: time.Hour, Limits: store.DefaultLimits()})
	ctx := context.Background()

	require.NoError(t, s.Scope("alice").Set(ctx, "cart", []byte(`[]`)))
	assert.Equal(t, time.Hour, mr.TTL("storefront:{alice}:kv:cart"))
	assert.Equal(t, time.Hour, mr.TTL("storefront:{alice}:sizes"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Scope("alice").Get(ctx, "cart")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRedisStore_TTLRefreshesUntouchedKeys(t *testing.T) {
	s, mr := setupTestRedis(t, Config{TTL: time.Hour, Limits: store.DefaultLimits()})
	ctx := context.Background()
	alice := s.Scope("alice")

	require.NoError(t, alice.Set(ctx, "custom_design_a", []byte("data:image/png;base64,AAAA")))
	for i := 0; i < 3; i++ {
		mr.FastForward(40 * time.Minute)
		require.NoError(t, alice.Set(ctx, "cart", []byte(`[]`)))
	}
	assert.Equal(t, time.Hour, mr.TTL("storefront:{alice}:kv:custom_design_a"))

	got, err := alice.Get(ctx, "custom_design_a")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", string(got))

	keys, err := alice.ListKeys(ctx, "custom_design_")
	require.NoError(t, err)
	assert.Equal(t, []string{"custom_design_a"}, keys)

	mr.FastForward(2 * time.Hour)
	for _, k := range []string{"kv:cart", "kv:custom_design_a", "sizes"} {
		assert.False(t, mr.Exists("storefront:{alice}:"+k), k)
	}
}

func TestRedisStore_CustomPrefix(t *testing.T) {
	s, mr := setupTestRedis(t, Config{KeyPrefix: "sg:", Limits: store.DefaultLimits()})
	require.NoError(t, s.Scope("bob").Set(context.Background(), "cart", []byte("x")))
	assert.True(t, mr.Exists("sg:{bob}:kv:cart"))
}

func TestRedisStore_ConnectionError(t *testing.T) {
	s, mr := setupTestRedis(t, Config{Limits: store.DefaultLimits()})
	mr.Close()

	_, err := s.Scope("alice").Get(context.Background(), "cart")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Error(t, s.Ping(context.Background()))
}

func TestIsOOM(t *testing.T) {
	assert.True(t, isOOM(errors.New("OOM command not allowed when used memory > 'maxmemory'.")))
	assert.False(t, isOOM(errors.New("connection refused")))
}
