package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/models"
)

// PayoutRepository 打款批次仓储
type PayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建打款仓储
func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *PayoutRepository) WithTx(tx *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: tx}
}

// Create 创建打款批次
func (r *PayoutRepository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

// GetByID 根据 ID 获取打款批次
func (r *PayoutRepository) GetByID(ctx context.Context, id int64) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).First(&payout, id).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// GetByPayoutNo 根据批次号获取打款批次
func (r *PayoutRepository) GetByPayoutNo(ctx context.Context, payoutNo string) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where("payout_no = ?", payoutNo).First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// ListByVendor 分页获取商家打款批次
func (r *PayoutRepository) ListByVendor(ctx context.Context, vendorID int64, offset, limit int) ([]*models.Payout, int64, error) {
	var payouts []*models.Payout
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payout{}).Where("vendor_id = ?", vendorID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&payouts).Error; err != nil {
		return nil, 0, err
	}

	return payouts, total, nil
}

// UpdateStatementURL 回写对账单地址
func (r *PayoutRepository) UpdateStatementURL(ctx context.Context, id int64, url string) error {
	return r.db.WithContext(ctx).Model(&models.Payout{}).
		Where("id = ?", id).
		Update("statement_url", url).Error
}
