package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/models"
)

// CommissionRecordRepository 佣金记录仓储
// 记录只追加，除状态流转外不修改，从不删除
type CommissionRecordRepository struct {
	db *gorm.DB
}

// NewCommissionRecordRepository 创建佣金记录仓储
func NewCommissionRecordRepository(db *gorm.DB) *CommissionRecordRepository {
	return &CommissionRecordRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *CommissionRecordRepository) WithTx(tx *gorm.DB) *CommissionRecordRepository {
	return &CommissionRecordRepository{db: tx}
}

// CommissionFilter 佣金记录查询条件
type CommissionFilter struct {
	Status  string
	OrderID int64
	Start   *time.Time
	End     *time.Time
}

// Create 创建佣金记录
// (order_item_id, vendor_id) 重复时返回 gorm.ErrDuplicatedKey
func (r *CommissionRecordRepository) Create(ctx context.Context, record *models.CommissionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID 根据 ID 获取佣金记录
func (r *CommissionRecordRepository) GetByID(ctx context.Context, id int64) (*models.CommissionRecord, error) {
	var record models.CommissionRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByItemAndVendor 根据订单项和商家获取佣金记录
func (r *CommissionRecordRepository) GetByItemAndVendor(ctx context.Context, orderItemID, vendorID int64) (*models.CommissionRecord, error) {
	var record models.CommissionRecord
	err := r.db.WithContext(ctx).
		Where("order_item_id = ? AND vendor_id = ?", orderItemID, vendorID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByOrderID 获取订单的全部佣金记录
func (r *CommissionRecordRepository) GetByOrderID(ctx context.Context, orderID int64) ([]*models.CommissionRecord, error) {
	var records []*models.CommissionRecord
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&records).Error
	return records, err
}

// SumSaleAmount 统计商家 [from, to) 内未取消记录的销售额
func (r *CommissionRecordRepository) SumSaleAmount(ctx context.Context, vendorID int64, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.CommissionRecord{}).
		Select("SUM(sale_amount)").
		Where("vendor_id = ? AND status <> ? AND created_at >= ? AND created_at < ?",
			vendorID, models.CommissionStatusCancelled, from, to).
		Row().Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Round(2), nil
}

// ListForWindow 获取商家 [from, to) 内未取消的记录，用于统计
func (r *CommissionRecordRepository) ListForWindow(ctx context.Context, vendorID int64, from, to time.Time) ([]*models.CommissionRecord, error) {
	var records []*models.CommissionRecord
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND status <> ? AND created_at >= ? AND created_at < ?",
			vendorID, models.CommissionStatusCancelled, from, to).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

// ListPendingForPeriod 获取商家 [start, end) 内待打款的记录
// start 为零值时不设下界，取 end 之前的全部待打款记录
func (r *CommissionRecordRepository) ListPendingForPeriod(ctx context.Context, vendorID int64, start, end time.Time) ([]*models.CommissionRecord, error) {
	var records []*models.CommissionRecord
	query := r.db.WithContext(ctx).
		Where("vendor_id = ? AND status = ? AND created_at < ?", vendorID, models.CommissionStatusPending, end)
	if !start.IsZero() {
		query = query.Where("created_at >= ?", start)
	}
	err := query.Order("id ASC").Find(&records).Error
	return records, err
}

// VendorIDsWithPending 获取 end 之前存在待打款记录的商家
func (r *CommissionRecordRepository) VendorIDsWithPending(ctx context.Context, end time.Time) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.CommissionRecord{}).
		Distinct("vendor_id").
		Where("status = ? AND created_at < ?", models.CommissionStatusPending, end).
		Order("vendor_id ASC").
		Pluck("vendor_id", &ids).Error
	return ids, err
}

// MarkPaid 将待打款记录标记为已打款并关联打款批次
// 仅更新仍为 pending 的记录，返回实际更新行数
func (r *CommissionRecordRepository) MarkPaid(ctx context.Context, ids []int64, payoutID int64, paidAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.CommissionRecord{}).
		Where("id IN ? AND status = ?", ids, models.CommissionStatusPending).
		Updates(map[string]interface{}{
			"status":    models.CommissionStatusPaid,
			"payout_id": payoutID,
			"paid_at":   paidAt,
		})
	return result.RowsAffected, result.Error
}

// CancelPendingByOrderID 取消订单下待打款的佣金记录（退款时）
func (r *CommissionRecordRepository) CancelPendingByOrderID(ctx context.Context, orderID int64, cancelledAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.CommissionRecord{}).
		Where("order_id = ? AND status = ?", orderID, models.CommissionStatusPending).
		Updates(map[string]interface{}{
			"status":       models.CommissionStatusCancelled,
			"cancelled_at": cancelledAt,
		})
	return result.RowsAffected, result.Error
}

// ListByVendor 分页获取商家佣金记录
func (r *CommissionRecordRepository) ListByVendor(ctx context.Context, vendorID int64, filter *CommissionFilter, offset, limit int) ([]*models.CommissionRecord, int64, error) {
	var records []*models.CommissionRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CommissionRecord{}).Where("vendor_id = ?", vendorID)
	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.OrderID > 0 {
			query = query.Where("order_id = ?", filter.OrderID)
		}
		if filter.Start != nil {
			query = query.Where("created_at >= ?", *filter.Start)
		}
		if filter.End != nil {
			query = query.Where("created_at < ?", *filter.End)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ListByPayoutID 获取打款批次包含的记录
func (r *CommissionRecordRepository) ListByPayoutID(ctx context.Context, payoutID int64) ([]*models.CommissionRecord, error) {
	var records []*models.CommissionRecord
	err := r.db.WithContext(ctx).Where("payout_id = ?", payoutID).Order("id ASC").Find(&records).Error
	return records, err
}
