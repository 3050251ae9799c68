package commission

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/models"
)

// 内置套餐编码
const (
	PlanStarter      = "starter"
	PlanProfessional = "professional"
	PlanEnterprise   = "enterprise"
)

// DefaultPlans 未配置套餐时使用的内置套餐
func DefaultPlans() []models.VendorPlan {
	return []models.VendorPlan{
		{
			Code:               PlanStarter,
			Name:               "Starter",
			MonthlyFee:         decimal.Zero,
			TransactionFeeType: models.TransactionFeePercentage,
			TransactionFee:     decimal.RequireFromString("0.03"),
			MaxCommissionRate:  decimal.RequireFromString("0.15"),
		},
		{
			Code:               PlanProfessional,
			Name:               "Professional",
			MonthlyFee:         decimal.RequireFromString("29.99"),
			TransactionFeeType: models.TransactionFeeFlat,
			TransactionFee:     decimal.RequireFromString("0.30"),
			MaxCommissionRate:  decimal.RequireFromString("0.20"),
		},
		{
			Code:               PlanEnterprise,
			Name:               "Enterprise",
			MonthlyFee:         decimal.RequireFromString("99.99"),
			TransactionFeeType: models.TransactionFeeFlat,
			TransactionFee:     decimal.Zero,
			MaxCommissionRate:  decimal.RequireFromString("0.25"),
		},
	}
}

// PlanCatalog 套餐目录，启动时构建，运行期只读
type PlanCatalog struct {
	plans       map[string]*models.VendorPlan
	order       []string
	defaultCode string
	log         *zap.Logger
}

// NewPlanCatalog 根据套餐列表创建目录
func NewPlanCatalog(plans []models.VendorPlan, defaultCode string) (*PlanCatalog, error) {
	if len(plans) == 0 {
		return nil, errors.ErrInvalidPlan.WithMessage("至少需要一个套餐")
	}

	c := &PlanCatalog{
		plans: make(map[string]*models.VendorPlan, len(plans)),
		log:   logger.Named("plan_catalog"),
	}
	for i := range plans {
		plan := plans[i]
		plan.Code = strings.ToLower(strings.TrimSpace(plan.Code))
		if plan.Code == "" {
			return nil, errors.ErrInvalidPlan.WithMessage("套餐编码不能为空")
		}
		if _, ok := c.plans[plan.Code]; ok {
			return nil, errors.ErrInvalidPlan.WithMessage("套餐编码重复: " + plan.Code)
		}
		if plan.TransactionFeeType != models.TransactionFeeFlat && plan.TransactionFeeType != models.TransactionFeePercentage {
			return nil, errors.ErrInvalidPlan.WithMessage("不支持的手续费类型: " + plan.TransactionFeeType)
		}
		if plan.TransactionFee.IsNegative() || plan.MaxCommissionRate.IsNegative() || plan.MaxCommissionRate.GreaterThan(rateOne) {
			return nil, errors.ErrInvalidPlan.WithMessage("套餐费率配置错误: " + plan.Code)
		}
		c.plans[plan.Code] = &plan
		c.order = append(c.order, plan.Code)
	}

	c.defaultCode = strings.ToLower(strings.TrimSpace(defaultCode))
	if c.defaultCode == "" {
		c.defaultCode = c.order[0]
	}
	if _, ok := c.plans[c.defaultCode]; !ok {
		return nil, errors.ErrInvalidPlan.WithMessage("默认套餐不存在: " + c.defaultCode)
	}
	return c, nil
}

// NewPlanCatalogFromConfig 从配置创建套餐目录
func NewPlanCatalogFromConfig(cfg *config.PlansConfig) (*PlanCatalog, error) {
	if cfg == nil || len(cfg.Items) == 0 {
		defaultCode := PlanStarter
		if cfg != nil && cfg.DefaultPlan != "" {
			defaultCode = cfg.DefaultPlan
		}
		return NewPlanCatalog(DefaultPlans(), defaultCode)
	}

	plans := make([]models.VendorPlan, 0, len(cfg.Items))
	for _, item := range cfg.Items {
		plans = append(plans, models.VendorPlan{
			Code:               item.Code,
			Name:               item.Name,
			MonthlyFee:         decimal.NewFromFloat(item.MonthlyFee),
			TransactionFeeType: item.TransactionFeeType,
			TransactionFee:     decimal.NewFromFloat(item.TransactionFee),
			MaxCommissionRate:  decimal.NewFromFloat(item.MaxCommissionRate),
		})
	}
	return NewPlanCatalog(plans, cfg.DefaultPlan)
}

// Get 根据编码获取套餐
func (c *PlanCatalog) Get(code string) (*models.VendorPlan, error) {
	plan, ok := c.plans[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, errors.ErrInvalidPlan
	}
	copied := *plan
	return &copied, nil
}

// List 按配置顺序返回全部套餐
func (c *PlanCatalog) List() []models.VendorPlan {
	list := make([]models.VendorPlan, 0, len(c.order))
	for _, code := range c.order {
		list = append(list, *c.plans[code])
	}
	return list
}

// Default 默认套餐
func (c *PlanCatalog) Default() *models.VendorPlan {
	copied := *c.plans[c.defaultCode]
	return &copied
}

// ForVendor 返回商家当前套餐
// 商家套餐编码已下线时回退到默认套餐
func (c *PlanCatalog) ForVendor(vendor *models.Vendor) *models.VendorPlan {
	plan, err := c.Get(vendor.PlanCode)
	if err != nil {
		c.log.Warn("商家套餐不存在，使用默认套餐",
			logger.VendorID(vendor.ID),
			zap.String("plan_code", vendor.PlanCode),
			zap.String("default_plan", c.defaultCode),
		)
		return c.Default()
	}
	return plan
}
