package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payout 商家打款批次
type Payout struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	PayoutNo      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"payout_no"`
	VendorID      int64           `gorm:"index;not null" json:"vendor_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	RecordCount   int             `gorm:"not null" json:"record_count"`
	PeriodStart   time.Time       `gorm:"not null" json:"period_start"`
	PeriodEnd     time.Time       `gorm:"not null" json:"period_end"`
	PaymentMethod string          `gorm:"type:varchar(30);not null" json:"payment_method"`
	Status        string          `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	StatementURL  *string         `gorm:"type:varchar(255)" json:"statement_url,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Records []CommissionRecord `gorm:"foreignKey:PayoutID" json:"records,omitempty"`
}

// TableName 表名
func (Payout) TableName() string {
	return "payouts"
}

// PayoutStatus 打款状态
const (
	PayoutStatusPending   = "pending"   // 待打款
	PayoutStatusCompleted = "completed" // 已完成
	PayoutStatusFailed    = "failed"    // 打款失败
)
