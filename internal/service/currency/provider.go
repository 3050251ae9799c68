package currency

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
)

// RateProvider 汇率来源
// 汇率由外部进程定期刷新，这里只读取
type RateProvider interface {
	Rates(ctx context.Context) (RateTable, error)
}

// StaticRateProvider 配置文件中的固定汇率表
type StaticRateProvider struct {
	table RateTable
}

// NewStaticRateProvider 从配置创建固定汇率表，基准币种汇率恒为 1
func NewStaticRateProvider(cfg *config.CurrencyConfig) *StaticRateProvider {
	table := make(RateTable, len(cfg.Rates)+1)
	for code, rate := range cfg.Rates {
		table[NormalizeCode(code)] = decimal.NewFromFloat(rate)
	}
	if cfg.Base != "" {
		table[NormalizeCode(cfg.Base)] = decimal.NewFromInt(1)
	}
	return &StaticRateProvider{table: table}
}

// Rates 返回汇率表副本
func (p *StaticRateProvider) Rates(_ context.Context) (RateTable, error) {
	out := make(RateTable, len(p.table))
	for k, v := range p.table {
		out[k] = v
	}
	return out, nil
}

// RedisRateProvider 从 Redis 哈希读取汇率（field 为币种，value 为汇率字符串）
// Redis 不可用或为空时回退到 fallback
type RedisRateProvider struct {
	client   *redis.Client
	key      string
	base     string
	fallback RateProvider
	logger   *zap.Logger
}

// NewRedisRateProvider 创建 Redis 汇率来源
func NewRedisRateProvider(client *redis.Client, cfg *config.CurrencyConfig, fallback RateProvider, log *zap.Logger) *RedisRateProvider {
	if log == nil {
		log = logger.Named("currency")
	}
	return &RedisRateProvider{
		client:   client,
		key:      cfg.RedisKey,
		base:     NormalizeCode(cfg.Base),
		fallback: fallback,
		logger:   log,
	}
}

// Rates 读取汇率表
func (p *RedisRateProvider) Rates(ctx context.Context) (RateTable, error) {
	raw, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		p.logger.Warn("从 Redis 读取汇率失败，使用配置汇率", zap.Error(err))
		return p.fallback.Rates(ctx)
	}
	if len(raw) == 0 {
		return p.fallback.Rates(ctx)
	}

	table := make(RateTable, len(raw)+1)
	for code, value := range raw {
		rate, err := decimal.NewFromString(value)
		if err != nil || !rate.IsPositive() {
			p.logger.Warn("忽略无效汇率", logger.Currency(code), zap.String("value", value))
			continue
		}
		table[NormalizeCode(code)] = rate
	}
	if p.base != "" {
		table[p.base] = decimal.NewFromInt(1)
	}
	return table, nil
}
