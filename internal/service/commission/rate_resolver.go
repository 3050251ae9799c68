// Package commission 商家佣金计算、设置与统计服务
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/models"
)

// 金额保留两位小数
const moneyPlaces = 2

var rateOne = decimal.NewFromInt(1)

// PerformanceStep 绩效奖励阶梯，评分达到 MinScore 后适用 BonusRate
type PerformanceStep struct {
	MinScore  decimal.Decimal
	BonusRate decimal.Decimal
}

// PerformancePolicy 绩效评分到奖励比例的阶梯函数
type PerformancePolicy struct {
	steps []PerformanceStep
}

// DefaultPerformanceSteps 默认绩效阶梯
// 低于 0.5 扣 1%，0.95 及以上奖励 1.5%
func DefaultPerformanceSteps() []PerformanceStep {
	return []PerformanceStep{
		{MinScore: decimal.Zero, BonusRate: decimal.RequireFromString("-0.01")},
		{MinScore: decimal.RequireFromString("0.5"), BonusRate: decimal.Zero},
		{MinScore: decimal.RequireFromString("0.95"), BonusRate: decimal.RequireFromString("0.015")},
	}
}

// NewPerformancePolicy 创建绩效策略，阶梯必须按 MinScore 严格递增
func NewPerformancePolicy(steps []PerformanceStep) (*PerformancePolicy, error) {
	for i, step := range steps {
		if step.MinScore.LessThan(decimal.Zero) || step.MinScore.GreaterThan(rateOne) {
			return nil, errors.InvalidInput(errors.ErrInvalidScore)
		}
		if i > 0 && !step.MinScore.GreaterThan(steps[i-1].MinScore) {
			return nil, errors.ErrInvalidInput.WithMessage("绩效阶梯必须按评分递增")
		}
	}
	copied := make([]PerformanceStep, len(steps))
	copy(copied, steps)
	return &PerformancePolicy{steps: copied}, nil
}

// PerformancePolicyFromConfig 从配置构建绩效策略，未配置时使用默认阶梯
func PerformancePolicyFromConfig(cfg *config.CommissionConfig) (*PerformancePolicy, error) {
	if cfg == nil || len(cfg.PerformanceSteps) == 0 {
		return NewPerformancePolicy(DefaultPerformanceSteps())
	}
	steps := make([]PerformanceStep, 0, len(cfg.PerformanceSteps))
	for _, s := range cfg.PerformanceSteps {
		steps = append(steps, PerformanceStep{
			MinScore:  decimal.NewFromFloat(s.MinScore),
			BonusRate: decimal.NewFromFloat(s.BonusRate),
		})
	}
	return NewPerformancePolicy(steps)
}

// BonusRate 根据评分返回奖励比例
// score 为空表示未评分，奖励为 0
func (p *PerformancePolicy) BonusRate(score *decimal.Decimal) (decimal.Decimal, error) {
	if score == nil {
		return decimal.Zero, nil
	}
	if score.LessThan(decimal.Zero) || score.GreaterThan(rateOne) {
		return decimal.Zero, errors.InvalidInput(errors.ErrInvalidScore)
	}

	rate := decimal.Zero
	for _, step := range p.steps {
		if step.MinScore.GreaterThan(*score) {
			break
		}
		rate = step.BonusRate
	}
	return rate, nil
}

// ValidateTiers 校验阶梯佣金表
// 门槛不能为负且严格递增，比例在 [0, 1] 内
func ValidateTiers(tiers []models.CommissionTier) error {
	for i, tier := range tiers {
		if tier.Threshold.LessThan(decimal.Zero) {
			return errors.InvalidInput(errors.ErrInvalidTierTable.WithMessage("阶梯门槛不能为负数"))
		}
		if tier.Rate.LessThan(decimal.Zero) || tier.Rate.GreaterThan(rateOne) {
			return errors.InvalidInput(errors.ErrInvalidTierTable.WithMessage("阶梯佣金比例必须在0到1之间"))
		}
		if i > 0 && !tier.Threshold.GreaterThan(tiers[i-1].Threshold) {
			return errors.InvalidInput(errors.ErrInvalidTierTable.WithMessage("阶梯门槛必须严格递增"))
		}
	}
	return nil
}

// ResolveInput 佣金比例解析输入
type ResolveInput struct {
	SaleAmount       decimal.Decimal
	TrailingVolume   decimal.Decimal
	Settings         *models.CommissionSettings
	Plan             *models.VendorPlan
	PerformanceScore *decimal.Decimal
}

// ResolvedRate 解析结果
type ResolvedRate struct {
	BaseCommissionRate decimal.Decimal
	TransactionFee     decimal.Decimal
	PerformanceBonus   decimal.Decimal
	BonusRate          decimal.Decimal
	Clamped            bool
}

// RateResolver 佣金比例解析器
type RateResolver struct {
	policy *PerformancePolicy
}

// NewRateResolver 创建解析器
func NewRateResolver(policy *PerformancePolicy) *RateResolver {
	if policy == nil {
		policy, _ = NewPerformancePolicy(DefaultPerformanceSteps())
	}
	return &RateResolver{policy: policy}
}

// Resolve 解析基础佣金比例、交易手续费和绩效奖励
func (r *RateResolver) Resolve(in ResolveInput) (*ResolvedRate, error) {
	if !in.SaleAmount.IsPositive() {
		return nil, errors.InvalidInput(errors.ErrInvalidSaleAmount)
	}
	if in.Settings == nil || in.Plan == nil {
		return nil, errors.ErrInvalidInput.WithMessage("缺少佣金设置或套餐")
	}

	rate := baseRate(in.Settings, in.TrailingVolume)

	// 套餐上限，未配置上限时不限制
	clamped := false
	if in.Plan.MaxCommissionRate.IsPositive() && rate.GreaterThan(in.Plan.MaxCommissionRate) {
		rate = in.Plan.MaxCommissionRate
		clamped = true
	}

	var fee decimal.Decimal
	if in.Plan.IsFlatFee() {
		fee = in.Plan.TransactionFee.Round(moneyPlaces)
	} else {
		fee = in.SaleAmount.Mul(in.Plan.TransactionFee).Round(moneyPlaces)
	}

	bonusRate, err := r.policy.BonusRate(in.PerformanceScore)
	if err != nil {
		return nil, err
	}

	return &ResolvedRate{
		BaseCommissionRate: rate,
		TransactionFee:     fee,
		PerformanceBonus:   in.SaleAmount.Mul(bonusRate).Round(moneyPlaces),
		BonusRate:          bonusRate,
		Clamped:            clamped,
	}, nil
}

// baseRate 取门槛不超过滚动销售额的最后一档，没有命中时使用默认比例
func baseRate(settings *models.CommissionSettings, volume decimal.Decimal) decimal.Decimal {
	rate := settings.DefaultCommissionRate
	// 阶梯表写入时已校验为升序
	for _, tier := range settings.Tiers {
		if tier.Threshold.GreaterThan(volume) {
			break
		}
		rate = tier.Rate
	}
	return rate
}
