package commission

import (
	"context"
	stderrors "errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/crypto"
	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/models"
	"github.com/dumeirei/marketplace-commission/internal/repository"
)

// 默认佣金设置
const (
	DefaultCommissionRate = 0.10
	DefaultMinimumPayout  = 50.0
)

// SettingsService 商家佣金设置服务
type SettingsService struct {
	settingsRepo *repository.CommissionSettingsRepository
	vendorRepo   *repository.VendorRepository
	plans        *PlanCatalog
	cipher       crypto.FieldCipher
	log          *zap.Logger

	defaultRate          decimal.Decimal
	defaultMinimumPayout decimal.Decimal
	defaultMethod        string
}

// NewSettingsService 创建佣金设置服务
func NewSettingsService(
	settingsRepo *repository.CommissionSettingsRepository,
	vendorRepo *repository.VendorRepository,
	plans *PlanCatalog,
	cipher crypto.FieldCipher,
) *SettingsService {
	if cipher == nil {
		cipher = crypto.PlainCipher{}
	}
	return &SettingsService{
		settingsRepo:         settingsRepo,
		vendorRepo:           vendorRepo,
		plans:                plans,
		cipher:               cipher,
		log:                  logger.Named("commission_settings"),
		defaultRate:          decimal.NewFromFloat(DefaultCommissionRate),
		defaultMinimumPayout: decimal.NewFromFloat(DefaultMinimumPayout),
		defaultMethod:        models.PaymentMethodBankTransfer,
	}
}

// SetDefaults 使用配置覆盖新商家的默认设置
func (s *SettingsService) SetDefaults(cfg *config.CommissionConfig) {
	if cfg == nil {
		return
	}
	if cfg.DefaultRate > 0 {
		s.defaultRate = decimal.NewFromFloat(cfg.DefaultRate)
	}
	if cfg.DefaultMinimumPayout != nil {
		s.defaultMinimumPayout = decimal.NewFromFloat(*cfg.DefaultMinimumPayout)
	}
	if cfg.DefaultPaymentMethod != "" {
		s.defaultMethod = cfg.DefaultPaymentMethod
	}
}

// GetOrCreate 获取商家佣金设置，不存在时按默认值创建
func (s *SettingsService) GetOrCreate(ctx context.Context, vendorID int64) (*models.CommissionSettings, error) {
	settings, err := s.settingsRepo.GetByVendorID(ctx, vendorID)
	if err == nil {
		return settings, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	if _, err := s.vendorRepo.GetByID(ctx, vendorID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrVendorNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	settings = &models.CommissionSettings{
		VendorID:              vendorID,
		DefaultCommissionRate: s.defaultRate,
		MinimumPayout:         s.defaultMinimumPayout,
		PaymentMethod:         s.defaultMethod,
	}
	if err := s.settingsRepo.Create(ctx, settings); err != nil {
		// 并发创建时读取已写入的一条
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			existing, getErr := s.settingsRepo.GetByVendorID(ctx, vendorID)
			if getErr != nil {
				return nil, errors.ErrDatabaseError.WithError(getErr)
			}
			return existing, nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.log.Info("已创建默认佣金设置", logger.VendorID(vendorID))
	return settings, nil
}

// TierRequest 阶梯佣金请求
type TierRequest struct {
	Threshold float64 `json:"threshold" validate:"gte=0"`
	Rate      float64 `json:"rate" validate:"gte=0,lte=1"`
}

// UpdateSettingsRequest 更新佣金设置请求
// Tiers 为 nil 表示不修改，空数组表示清空阶梯
type UpdateSettingsRequest struct {
	DefaultCommissionRate *float64      `json:"default_commission_rate" validate:"omitempty,gte=0,lte=1"`
	Tiers                 []TierRequest `json:"tiers" validate:"omitempty,max=20,dive"`
	MinimumPayout         *float64      `json:"minimum_payout" validate:"omitempty,gte=0"`
	PaymentMethod         *string       `json:"payment_method" validate:"omitempty,oneof=bank_transfer paypal wallet"`
	PaymentDetails        *string       `json:"payment_details" validate:"omitempty,max=500"`
}

// SettingsInfo 佣金设置展示信息
type SettingsInfo struct {
	VendorID              int64                   `json:"vendor_id"`
	PlanCode              string                  `json:"plan_code"`
	DefaultCommissionRate decimal.Decimal         `json:"default_commission_rate"`
	Tiers                 []models.CommissionTier `json:"tiers"`
	MinimumPayout         decimal.Decimal         `json:"minimum_payout"`
	PaymentMethod         string                  `json:"payment_method"`
	PaymentAccount        string                  `json:"payment_account,omitempty"`
}

// GetSettings 获取商家佣金设置展示信息
func (s *SettingsService) GetSettings(ctx context.Context, vendorID int64) (*SettingsInfo, error) {
	settings, err := s.GetOrCreate(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	vendor, err := s.vendorRepo.GetByID(ctx, vendorID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.toInfo(vendor, settings), nil
}

// Update 更新商家佣金设置
func (s *SettingsService) Update(ctx context.Context, vendorID int64, req *UpdateSettingsRequest) (*SettingsInfo, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	settings, err := s.GetOrCreate(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	if req.DefaultCommissionRate != nil {
		settings.DefaultCommissionRate = decimal.NewFromFloat(*req.DefaultCommissionRate)
	}
	if req.Tiers != nil {
		tiers := make([]models.CommissionTier, 0, len(req.Tiers))
		for _, t := range req.Tiers {
			tiers = append(tiers, models.CommissionTier{
				Threshold: decimal.NewFromFloat(t.Threshold),
				Rate:      decimal.NewFromFloat(t.Rate),
			})
		}
		if err := ValidateTiers(tiers); err != nil {
			return nil, err
		}
		settings.Tiers = tiers
	}
	if req.MinimumPayout != nil {
		settings.MinimumPayout = decimal.NewFromFloat(*req.MinimumPayout).Round(moneyPlaces)
	}
	if req.PaymentMethod != nil {
		settings.PaymentMethod = *req.PaymentMethod
	}
	if req.PaymentDetails != nil {
		encrypted, err := s.cipher.Encrypt(*req.PaymentDetails)
		if err != nil {
			return nil, errors.ErrInternalError.WithError(err)
		}
		settings.PaymentDetails = encrypted
	}

	if err := s.settingsRepo.Update(ctx, settings); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	vendor, err := s.vendorRepo.GetByID(ctx, vendorID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.log.Info("佣金设置已更新",
		logger.VendorID(vendorID),
		zap.Int("tiers", len(settings.Tiers)),
		zap.String("payment_method", settings.PaymentMethod),
	)
	return s.toInfo(vendor, settings), nil
}

// SwitchPlan 切换商家套餐，立即生效，重复切换到同一套餐无副作用
func (s *SettingsService) SwitchPlan(ctx context.Context, vendorID int64, planCode string) (*models.VendorPlan, error) {
	plan, err := s.plans.Get(planCode)
	if err != nil {
		return nil, err
	}

	vendor, err := s.vendorRepo.GetByID(ctx, vendorID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrVendorNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if vendor.PlanCode == plan.Code {
		return plan, nil
	}

	if err := s.vendorRepo.UpdatePlan(ctx, vendorID, plan.Code); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.log.Info("商家套餐已切换",
		logger.VendorID(vendorID),
		zap.String("from", vendor.PlanCode),
		zap.String("to", plan.Code),
	)
	return plan, nil
}

// ListPlans 返回可选套餐
func (s *SettingsService) ListPlans() []models.VendorPlan {
	return s.plans.List()
}

// DecryptPaymentDetails 解密收款信息，供打款使用
func (s *SettingsService) DecryptPaymentDetails(settings *models.CommissionSettings) (string, error) {
	if settings.PaymentDetails == "" {
		return "", nil
	}
	return s.cipher.Decrypt(settings.PaymentDetails)
}

func (s *SettingsService) toInfo(vendor *models.Vendor, settings *models.CommissionSettings) *SettingsInfo {
	info := &SettingsInfo{
		VendorID:              settings.VendorID,
		PlanCode:              s.plans.ForVendor(vendor).Code,
		DefaultCommissionRate: settings.DefaultCommissionRate,
		Tiers:                 settings.Tiers,
		MinimumPayout:         settings.MinimumPayout,
		PaymentMethod:         settings.PaymentMethod,
	}
	if info.Tiers == nil {
		info.Tiers = []models.CommissionTier{}
	}

	account, err := s.DecryptPaymentDetails(settings)
	if err != nil {
		s.log.Warn("收款信息解密失败", logger.VendorID(settings.VendorID), zap.Error(err))
		return info
	}
	info.PaymentAccount = crypto.MaskPaymentAccount(account)
	return info
}
