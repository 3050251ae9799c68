package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 订单模型
type Order struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo         string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	CustomerID      int64           `gorm:"index;not null" json:"customer_id"`
	CustomerName    string          `gorm:"type:varchar(100);not null" json:"customer_name"`
	CustomerPhone   *string         `gorm:"type:varchar(20)" json:"customer_phone,omitempty"`
	ShippingCountry string          `gorm:"type:varchar(2)" json:"shipping_country"`
	ShippingCity    string          `gorm:"type:varchar(100)" json:"shipping_city"`
	ShippingAddress string          `gorm:"type:varchar(255)" json:"shipping_address"`
	ShippingZip     string          `gorm:"type:varchar(20)" json:"shipping_zip"`
	Currency        string          `gorm:"type:varchar(3);not null;default:USD" json:"currency"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	Status          string          `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName 表名
func (Order) TableName() string {
	return "orders"
}

// OrderStatus 订单状态
const (
	OrderStatusPending    = "pending"    // 待支付
	OrderStatusPaid       = "paid"       // 已支付
	OrderStatusProcessing = "processing" // 履约中
	OrderStatusShipped    = "shipped"    // 已发货
	OrderStatusDelivered  = "delivered"  // 已送达
	OrderStatusCancelled  = "cancelled"  // 已取消
	OrderStatusRefunded   = "refunded"   // 已退款
)

// OrderItem 订单项
type OrderItem struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           int64           `gorm:"index;not null" json:"order_id"`
	ProductID         int64           `gorm:"index;not null" json:"product_id"`
	VendorID          *int64          `gorm:"index" json:"vendor_id,omitempty"`
	ProductName       string          `gorm:"type:varchar(200);not null" json:"product_name"`
	Quantity          int             `gorm:"not null" json:"quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	SaleAmount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"sale_amount"`
	FulfillmentStatus string          `gorm:"type:varchar(20);not null;default:unfulfilled" json:"fulfillment_status"`
	TrackingNumber    *string         `gorm:"type:varchar(64)" json:"tracking_number,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	Order   *Order   `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName 表名
func (OrderItem) TableName() string {
	return "order_items"
}

// FulfillmentStatus 订单项履约状态
const (
	FulfillmentUnfulfilled = "unfulfilled" // 未履约
	FulfillmentProcessing  = "processing"  // 供应商处理中
	FulfillmentShipped     = "shipped"     // 已发货
	FulfillmentDelivered   = "delivered"   // 已送达
	FulfillmentCancelled   = "cancelled"   // 已取消
)

// Product 商品
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(200);not null" json:"name"`
	VendorID    *int64          `gorm:"index" json:"vendor_id,omitempty"`
	SupplierID  *int64          `gorm:"index" json:"supplier_id,omitempty"`
	SupplierSKU *string         `gorm:"type:varchar(64)" json:"supplier_sku,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`
	Status      int8            `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Product) TableName() string {
	return "products"
}

// IsSupplierSourced 是否为代发货商品
func (p *Product) IsSupplierSourced() bool {
	return p.SupplierID != nil && p.SupplierSKU != nil && *p.SupplierSKU != ""
}
