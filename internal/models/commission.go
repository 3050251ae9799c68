package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRecord 佣金记录，每个商家订单项一条
type CommissionRecord struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderItemID      int64           `gorm:"uniqueIndex:uk_commission_item_vendor;not null" json:"order_item_id"`
	VendorID         int64           `gorm:"uniqueIndex:uk_commission_item_vendor;index:idx_commission_vendor_status;not null" json:"vendor_id"`
	OrderID          int64           `gorm:"index;not null" json:"order_id"`
	SaleAmount       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"sale_amount"`
	CommissionRate   decimal.Decimal `gorm:"type:numeric(8,6);not null" json:"commission_rate"`
	BaseCommission   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_commission"`
	PerformanceBonus decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"performance_bonus"`
	TransactionFee   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"transaction_fee"`
	CommissionAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"commission_amount"`
	PlatformEarnings decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"platform_earnings"`
	Currency         string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status           string          `gorm:"type:varchar(20);index:idx_commission_vendor_status;not null;default:pending" json:"status"`
	PayoutID         *int64          `gorm:"index" json:"payout_id,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time       `gorm:"index;not null" json:"created_at"`
}

// TableName 表名
func (CommissionRecord) TableName() string {
	return "commission_records"
}

// CommissionStatus 佣金状态
const (
	CommissionStatusPending   = "pending"   // 待打款
	CommissionStatusPaid      = "paid"      // 已打款
	CommissionStatusCancelled = "cancelled" // 已取消（退款）
)

// Reconciles 校验三方拆分：商家收入 + 平台收入 = 销售额
func (r *CommissionRecord) Reconciles() bool {
	return r.CommissionAmount.Add(r.PlatformEarnings).Equal(r.SaleAmount) &&
		r.BaseCommission.Add(r.PerformanceBonus).Sub(r.TransactionFee).Equal(r.CommissionAmount)
}
