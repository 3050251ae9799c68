package models

import (
	"time"
)

// Supplier 代发货供应商
type Supplier struct {
	ID                       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code                     string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"code"`
	Name                     string    `gorm:"type:varchar(100);not null" json:"name"`
	APIBaseURL               string    `gorm:"type:varchar(255)" json:"api_base_url"`
	APIEmail                 string    `gorm:"type:varchar(100)" json:"-"`
	APIKey                   string    `gorm:"type:varchar(255)" json:"-"`
	NotifyCustomerOnShipment bool      `gorm:"not null;default:true" json:"notify_customer_on_shipment"`
	Status                   int8      `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt                time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Supplier) TableName() string {
	return "suppliers"
}

// SupplierStatus 供应商状态
const (
	SupplierStatusDisabled = 0 // 停用
	SupplierStatusActive   = 1 // 启用
)

// HasCredentials 是否已配置 API 凭证
func (s *Supplier) HasCredentials() bool {
	return s.APIBaseURL != "" && s.APIEmail != "" && s.APIKey != ""
}

// SupplierOrder 供应商订单
type SupplierOrder struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	SupplierID      int64      `gorm:"uniqueIndex:uk_supplier_order;index;not null" json:"supplier_id"`
	OrderID         int64      `gorm:"uniqueIndex:uk_supplier_order;not null" json:"order_id"`
	Status          string     `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	ExternalOrderID *string    `gorm:"type:varchar(64)" json:"external_order_id,omitempty"`
	TrackingNumber  *string    `gorm:"type:varchar(64)" json:"tracking_number,omitempty"`
	Carrier         *string    `gorm:"type:varchar(50)" json:"carrier,omitempty"`
	TrackingURL     *string    `gorm:"type:varchar(255)" json:"tracking_url,omitempty"`
	LastError       *string    `gorm:"type:varchar(500)" json:"last_error,omitempty"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	ShippedAt       *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Supplier *Supplier           `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Order    *Order              `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Items    []SupplierOrderItem `gorm:"foreignKey:SupplierOrderID" json:"items,omitempty"`
}

// TableName 表名
func (SupplierOrder) TableName() string {
	return "supplier_orders"
}

// SupplierOrderStatus 供应商订单状态
const (
	SupplierOrderStatusPending   = "pending"   // 待下单
	SupplierOrderStatusSent      = "sent"      // 已提交供应商
	SupplierOrderStatusShipped   = "shipped"   // 已发货
	SupplierOrderStatusFailed    = "failed"    // 供应商处理失败
	SupplierOrderStatusDelivered = "delivered" // 已送达
	SupplierOrderStatusCancelled = "cancelled" // 已取消
)

// IsTerminal 是否为终态
func (o *SupplierOrder) IsTerminal() bool {
	return o.Status == SupplierOrderStatusDelivered || o.Status == SupplierOrderStatusCancelled
}

// SupplierOrderItem 供应商订单项
type SupplierOrderItem struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	SupplierOrderID int64  `gorm:"index;not null" json:"supplier_order_id"`
	OrderItemID     int64  `gorm:"uniqueIndex;not null" json:"order_item_id"`
	SupplierSKU     string `gorm:"type:varchar(64);not null" json:"supplier_sku"`
	Quantity        int    `gorm:"not null" json:"quantity"`
}

// TableName 表名
func (SupplierOrderItem) TableName() string {
	return "supplier_order_items"
}
