package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/models"
)

// OrderRepository 订单仓储
// 订单由下单服务写入，这里只读取并回写代发货相关的履约状态
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// GetByID 根据 ID 获取订单
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByIDWithItems 获取订单及订单项（含商品）
func (r *OrderRepository) GetByIDWithItems(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetItemByID 根据 ID 获取订单项
func (r *OrderRepository) GetItemByID(ctx context.Context, id int64) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItemsFulfillment 批量更新订单项履约状态，tracking 为空时不覆盖运单号
func (r *OrderRepository) UpdateItemsFulfillment(ctx context.Context, itemIDs []int64, status string, tracking *string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"fulfillment_status": status,
	}
	if tracking != nil {
		updates["tracking_number"] = *tracking
	}
	return r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id IN ?", itemIDs).
		Updates(updates).Error
}
