package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/models"
)

// SupplierRepository 供应商仓储
type SupplierRepository struct {
	db *gorm.DB
}

// NewSupplierRepository 创建供应商仓储
func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

// Create 创建供应商
func (r *SupplierRepository) Create(ctx context.Context, supplier *models.Supplier) error {
	return r.db.WithContext(ctx).Create(supplier).Error
}

// GetByID 根据 ID 获取供应商
func (r *SupplierRepository) GetByID(ctx context.Context, id int64) (*models.Supplier, error) {
	var supplier models.Supplier
	err := r.db.WithContext(ctx).First(&supplier, id).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// GetByCode 根据编码获取供应商
func (r *SupplierRepository) GetByCode(ctx context.Context, code string) (*models.Supplier, error) {
	var supplier models.Supplier
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&supplier).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// ListActive 获取启用中的供应商
func (r *SupplierRepository) ListActive(ctx context.Context) ([]*models.Supplier, error) {
	var suppliers []*models.Supplier
	err := r.db.WithContext(ctx).
		Where("status = ?", models.SupplierStatusActive).
		Order("id ASC").
		Find(&suppliers).Error
	return suppliers, err
}

// SupplierOrderRepository 供应商订单仓储
type SupplierOrderRepository struct {
	db *gorm.DB
}

// NewSupplierOrderRepository 创建供应商订单仓储
func NewSupplierOrderRepository(db *gorm.DB) *SupplierOrderRepository {
	return &SupplierOrderRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *SupplierOrderRepository) WithTx(tx *gorm.DB) *SupplierOrderRepository {
	return &SupplierOrderRepository{db: tx}
}

// Create 创建供应商订单及订单项
// (supplier_id, order_id) 重复时返回 gorm.ErrDuplicatedKey
func (r *SupplierOrderRepository) Create(ctx context.Context, order *models.SupplierOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID 获取供应商订单（含供应商、订单、订单项）
func (r *SupplierOrderRepository) GetByID(ctx context.Context, id int64) (*models.SupplierOrder, error) {
	var order models.SupplierOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Order").
		Preload("Items").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByOrderAndSupplier 根据平台订单和供应商获取供应商订单
func (r *SupplierOrderRepository) GetByOrderAndSupplier(ctx context.Context, orderID, supplierID int64) (*models.SupplierOrder, error) {
	var order models.SupplierOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ? AND supplier_id = ?", orderID, supplierID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByOrderID 获取平台订单下的全部供应商订单
func (r *SupplierOrderRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*models.SupplierOrder, error) {
	var orders []*models.SupplierOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

// ListPollable 获取需要轮询的供应商订单：已提交且未到终态，按上次同步时间从旧到新
func (r *SupplierOrderRepository) ListPollable(ctx context.Context, limit int) ([]*models.SupplierOrder, error) {
	var orders []*models.SupplierOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Order").
		Preload("Items").
		Where("status IN ? AND external_order_id IS NOT NULL", []string{
			models.SupplierOrderStatusSent,
			models.SupplierOrderStatusShipped,
			models.SupplierOrderStatusFailed,
		}).
		Order("last_synced_at IS NOT NULL, last_synced_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// UpdateIfStatus 仅当当前状态为 fromStatus 时更新，返回是否更新成功
func (r *SupplierOrderRepository) UpdateIfStatus(ctx context.Context, id int64, fromStatus string, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.SupplierOrder{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateFields 更新供应商订单字段
func (r *SupplierOrderRepository) UpdateFields(ctx context.Context, id int64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.SupplierOrder{}).
		Where("id = ?", id).
		Updates(updates).Error
}
