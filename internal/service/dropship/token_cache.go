package dropship

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/marketplace-commission/internal/common/cache"
	"github.com/dumeirei/marketplace-commission/pkg/supplier"
)

// TokenCache 供应商访问令牌缓存
// 进程启动时创建并注入 SyncService，令牌在过期前复用
type TokenCache interface {
	Get(ctx context.Context, supplierCode string) (*supplier.Token, bool, error)
	Set(ctx context.Context, supplierCode string, token *supplier.Token) error
	Invalidate(ctx context.Context, supplierCode string) error
	Clear(ctx context.Context) error
}

// MemoryTokenCache 进程内令牌缓存
type MemoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[string]supplier.Token
}

// NewMemoryTokenCache 创建进程内令牌缓存
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]supplier.Token)}
}

// Get 获取令牌
func (c *MemoryTokenCache) Get(ctx context.Context, supplierCode string) (*supplier.Token, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.tokens[supplierCode]
	if !ok {
		return nil, false, nil
	}
	return &token, true, nil
}

// Set 保存令牌
func (c *MemoryTokenCache) Set(ctx context.Context, supplierCode string, token *supplier.Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[supplierCode] = *token
	return nil
}

// Invalidate 删除单个供应商的令牌
func (c *MemoryTokenCache) Invalidate(ctx context.Context, supplierCode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, supplierCode)
	return nil
}

// Clear 清空全部令牌
func (c *MemoryTokenCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = make(map[string]supplier.Token)
	return nil
}

// RedisTokenCache 多实例共享的令牌缓存，键在令牌过期时自动失效
type RedisTokenCache struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisTokenCache 创建 Redis 令牌缓存
func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client, now: time.Now}
}

func tokenKey(supplierCode string) string {
	return cache.BuildKey(cache.KeyPrefixSupplierToken, supplierCode)
}

// Get 获取令牌
func (c *RedisTokenCache) Get(ctx context.Context, supplierCode string) (*supplier.Token, bool, error) {
	var token supplier.Token
	if err := cache.GetJSON(ctx, c.client, tokenKey(supplierCode), &token); err != nil {
		if stderrors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &token, true, nil
}

// Set 保存令牌，已过期的令牌不写入
func (c *RedisTokenCache) Set(ctx context.Context, supplierCode string, token *supplier.Token) error {
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	return cache.SetJSON(ctx, c.client, tokenKey(supplierCode), token, ttl)
}

// Invalidate 删除单个供应商的令牌
func (c *RedisTokenCache) Invalidate(ctx context.Context, supplierCode string) error {
	return c.client.Del(ctx, tokenKey(supplierCode)).Err()
}

// Clear 清空全部供应商令牌
func (c *RedisTokenCache) Clear(ctx context.Context) error {
	_, err := cache.DeleteByPrefix(ctx, c.client, cache.KeyPrefixSupplierToken)
	return err
}
