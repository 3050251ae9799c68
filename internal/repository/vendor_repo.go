// Package repository 提供数据访问层
package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/models"
)

// VendorRepository 商家仓储
type VendorRepository struct {
	db *gorm.DB
}

// NewVendorRepository 创建商家仓储
func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// Create 创建商家
func (r *VendorRepository) Create(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

// GetByID 根据 ID 获取商家
func (r *VendorRepository) GetByID(ctx context.Context, id int64) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).First(&vendor, id).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// UpdatePlan 更新商家套餐
func (r *VendorRepository) UpdatePlan(ctx context.Context, id int64, planCode string) error {
	return r.db.WithContext(ctx).Model(&models.Vendor{}).
		Where("id = ?", id).
		Update("plan_code", planCode).Error
}

// GetPerformanceScore 获取绩效分，未评分返回 nil
func (r *VendorRepository) GetPerformanceScore(ctx context.Context, id int64) (*decimal.Decimal, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).Select("id", "performance_score").First(&vendor, id).Error
	if err != nil {
		return nil, err
	}
	return vendor.PerformanceScore, nil
}
