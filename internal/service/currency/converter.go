// Package currency 提供多币种金额换算
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/common/metrics"
)

// RateTable 汇率表：币种 -> 相对基准币种的汇率
type RateTable map[string]decimal.Decimal

// Rate 查询汇率，币种大小写不敏感
func (t RateTable) Rate(code string) (decimal.Decimal, bool) {
	rate, ok := t[NormalizeCode(code)]
	return rate, ok
}

// MissingRateHook 汇率缺失回调
type MissingRateHook func(code string)

// Converter 金额换算器
// 汇率缺失时原样返回金额，不阻断下游流程，由 MissingRateHook 记录
type Converter struct {
	zeroDecimal map[string]struct{}
	onMissing   MissingRateHook
}

// Option 换算器选项
type Option func(*Converter)

// WithMissingRateHook 替换默认的汇率缺失回调
func WithMissingRateHook(hook MissingRateHook) Option {
	return func(c *Converter) {
		c.onMissing = hook
	}
}

// NewConverter 创建换算器
func NewConverter(cfg *config.CurrencyConfig, log *zap.Logger, opts ...Option) *Converter {
	if log == nil {
		log = logger.Named("currency")
	}
	c := &Converter{
		zeroDecimal: make(map[string]struct{}, len(cfg.ZeroDecimal)),
	}
	for _, code := range cfg.ZeroDecimal {
		c.zeroDecimal[NormalizeCode(code)] = struct{}{}
	}
	c.onMissing = func(code string) {
		log.Warn("汇率缺失，金额未换算", logger.Currency(code))
		metrics.GetMetrics().RecordCurrencyRateMissing(code)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsZeroDecimal 是否为无小数位币种（如 JPY）
func (c *Converter) IsZeroDecimal(code string) bool {
	_, ok := c.zeroDecimal[NormalizeCode(code)]
	return ok
}

// Round 按币种精度四舍五入（远离零）
func (c *Converter) Round(amount decimal.Decimal, code string) decimal.Decimal {
	if c.IsZeroDecimal(code) {
		return amount.Round(0)
	}
	return amount.Round(2)
}

// Convert 将基准币种金额换算为目标币种
func (c *Converter) Convert(amount decimal.Decimal, target string, rates RateTable) decimal.Decimal {
	rate, ok := rates.Rate(target)
	if !ok {
		c.onMissing(NormalizeCode(target))
		return amount
	}
	return c.apply(amount, rate, target)
}

// ConvertMany 批量换算，同一批金额使用同一汇率
// 汇率缺失时全部原样返回，只触发一次回调
func (c *Converter) ConvertMany(amounts []decimal.Decimal, target string, rates RateTable) []decimal.Decimal {
	out := make([]decimal.Decimal, len(amounts))
	rate, ok := rates.Rate(target)
	if !ok {
		if len(amounts) > 0 {
			c.onMissing(NormalizeCode(target))
		}
		copy(out, amounts)
		return out
	}
	for i, amount := range amounts {
		out[i] = c.apply(amount, rate, target)
	}
	return out
}

func (c *Converter) apply(amount, rate decimal.Decimal, target string) decimal.Decimal {
	if rate.Equal(decimal.NewFromInt(1)) && !c.IsZeroDecimal(target) {
		return amount
	}
	return c.Round(amount.Mul(rate), target)
}

// NormalizeCode 规范化币种代码
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
