package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/models"
)

// CommissionSettingsRepository 商家佣金设置仓储
type CommissionSettingsRepository struct {
	db *gorm.DB
}

// NewCommissionSettingsRepository 创建佣金设置仓储
func NewCommissionSettingsRepository(db *gorm.DB) *CommissionSettingsRepository {
	return &CommissionSettingsRepository{db: db}
}

// Create 创建佣金设置，vendor_id 唯一
func (r *CommissionSettingsRepository) Create(ctx context.Context, settings *models.CommissionSettings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

// GetByVendorID 获取商家佣金设置
func (r *CommissionSettingsRepository) GetByVendorID(ctx context.Context, vendorID int64) (*models.CommissionSettings, error) {
	var settings models.CommissionSettings
	err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update 保存佣金设置
func (r *CommissionSettingsRepository) Update(ctx context.Context, settings *models.CommissionSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
