package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
)

// setupMiniRedis 创建 miniredis 测试实例
func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	s := setupMiniRedis(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, s
}

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func TestInit(t *testing.T) {
	t.Run("连接成功", func(t *testing.T) {
		s := setupMiniRedis(t)
		client, err := Init(&config.RedisConfig{
			Host:        s.Host(),
			Port:        s.Server().Addr().Port,
			PoolSize:    4,
			DialTimeout: 1,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		assert.NoError(t, client.Ping(context.Background()).Err())
	})

	t.Run("连接失败", func(t *testing.T) {
		client, err := Init(&config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeout: 1})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to connect redis 127.0.0.1:1")
	})
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		parts  []string
		want   string
	}{
		{"打款锁", KeyPrefixPayoutLock, []string{"42"}, "lock:payout:42"},
		{"供应商订单锁", KeyPrefixSupplierLock, []string{"7"}, "lock:supplier_order:7"},
		{"供应商令牌", KeyPrefixSupplierToken, []string{"cj"}, "dropship:token:cj"},
		{"多段键", KeyPrefixSupplierLimit, []string{"cj", "data"}, "dropship:ratelimit:cj:data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildKey(tt.prefix, tt.parts...))
		})
	}
}

func TestSetJSON_GetJSON(t *testing.T) {
	client, s := newTestClient(t)
	ctx := context.Background()
	expires := time.Date(2026, 3, 15, 13, 0, 0, 0, time.UTC)

	require.NoError(t, SetJSON(ctx, client, "dropship:token:cj", cachedToken{AccessToken: "abc", ExpiresAt: expires}, time.Hour))

	var got cachedToken
	require.NoError(t, GetJSON(ctx, client, "dropship:token:cj", &got))
	assert.Equal(t, "abc", got.AccessToken)
	assert.True(t, expires.Equal(got.ExpiresAt))

	t.Run("过期后返回未命中", func(t *testing.T) {
		s.FastForward(time.Hour + time.Second)
		err := GetJSON(ctx, client, "dropship:token:cj", &got)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("值无法序列化", func(t *testing.T) {
		err := SetJSON(ctx, client, "bad", make(chan int), 0)
		assert.Error(t, err)
		assert.False(t, s.Exists("bad"))
	})

	t.Run("值格式错误", func(t *testing.T) {
		require.NoError(t, s.Set("broken", "not-json"))
		assert.Error(t, GetJSON(ctx, client, "broken", &got))
	})
}

func TestDeleteByPrefix(t *testing.T) {
	client, s := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, s.Set("dropship:token:cj", "a"))
	require.NoError(t, s.Set("dropship:token:aliexpress", "b"))
	require.NoError(t, s.Set("lock:payout:1", "c"))

	n, err := DeleteByPrefix(ctx, client, KeyPrefixSupplierToken)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, s.Exists("dropship:token:cj"))
	assert.True(t, s.Exists("lock:payout:1"))

	t.Run("没有匹配的键", func(t *testing.T) {
		n, err := DeleteByPrefix(ctx, client, KeyPrefixSupplierToken)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
