// Package cache 提供 Redis 连接、JSON 缓存与分布式锁
//
// Redis 是可选依赖：未启用时调用方拿到 nil 客户端，各组件退化为进程内实现。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
)

// ErrCacheMiss 键不存在或已过期
var ErrCacheMiss = errors.New("cache miss")

const (
	pingTimeout   = 5 * time.Second
	scanBatchSize = 100
)

// 缓存键前缀
const (
	KeyPrefixPayoutLock    = "lock:payout:"
	KeyPrefixSupplierLock  = "lock:supplier_order:"
	KeyPrefixSupplierToken = "dropship:token:"
	KeyPrefixSupplierLimit = "dropship:ratelimit:"
)

// Init 创建 Redis 客户端并检查连通性
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// BuildKey 构建缓存键，prefix 以冒号结尾
func BuildKey(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}

// SetJSON 以 JSON 写入，ttl 为 0 表示不过期
func SetJSON(ctx context.Context, client redis.Cmdable, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return client.Set(ctx, key, data, ttl).Err()
}

// GetJSON 读取 JSON，键不存在时返回 ErrCacheMiss
func GetJSON(ctx context.Context, client redis.Cmdable, key string, dest interface{}) error {
	data, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// DeleteByPrefix 按前缀删除键，返回删除数量
func DeleteByPrefix(ctx context.Context, client redis.Cmdable, prefix string) (int, error) {
	iter := client.Scan(ctx, 0, prefix+"*", scanBatchSize).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := client.Del(ctx, keys...).Result()
	return int(n), err
}
