// Package models 定义数据模型
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor 商家账号
type Vendor struct {
	ID               int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string           `gorm:"type:varchar(100);not null" json:"name"`
	Phone            *string          `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Role             string           `gorm:"type:varchar(20);not null;default:vendor" json:"role"`
	Status           string           `gorm:"type:varchar(20);not null;default:active" json:"status"`
	PlanCode         string           `gorm:"type:varchar(20);not null;default:starter" json:"plan_code"`
	PerformanceScore *decimal.Decimal `gorm:"type:numeric(5,4)" json:"performance_score,omitempty"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Settings *CommissionSettings `gorm:"foreignKey:VendorID" json:"settings,omitempty"`
}

// TableName 表名
func (Vendor) TableName() string {
	return "vendors"
}

// VendorStatus 商家状态
const (
	VendorStatusPending   = "pending"   // 待审核
	VendorStatusActive    = "active"    // 正常
	VendorStatusSuspended = "suspended" // 停用
)

// RoleVendor 商家角色
const RoleVendor = "vendor"

// CommissionTier 阶梯佣金
// Threshold 为滚动销售额门槛，达到后适用 Rate
type CommissionTier struct {
	Threshold decimal.Decimal `json:"threshold"`
	Rate      decimal.Decimal `json:"rate"`
}

// CommissionSettings 商家佣金设置
type CommissionSettings struct {
	ID                    int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	VendorID              int64            `gorm:"uniqueIndex;not null" json:"vendor_id"`
	DefaultCommissionRate decimal.Decimal  `gorm:"type:numeric(8,6);not null" json:"default_commission_rate"`
	Tiers                 []CommissionTier `gorm:"type:text;serializer:json" json:"tiers,omitempty"`
	MinimumPayout         decimal.Decimal  `gorm:"type:numeric(14,2);not null" json:"minimum_payout"`
	PaymentMethod         string           `gorm:"type:varchar(30);not null" json:"payment_method"`
	PaymentDetails        string           `gorm:"type:text" json:"-"`
	CreatedAt             time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CommissionSettings) TableName() string {
	return "commission_settings"
}

// HasTiers 是否配置了阶梯佣金
func (s *CommissionSettings) HasTiers() bool {
	return len(s.Tiers) > 0
}

// PaymentMethod 打款方式
const (
	PaymentMethodBankTransfer = "bank_transfer" // 银行转账
	PaymentMethodPaypal       = "paypal"        // PayPal
	PaymentMethodWallet       = "wallet"        // 平台钱包
)

// TransactionFeeType 交易手续费类型
const (
	TransactionFeeFlat       = "flat"       // 每笔固定金额
	TransactionFeePercentage = "percentage" // 按销售额比例
)

// VendorPlan 商家套餐
type VendorPlan struct {
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	MonthlyFee         decimal.Decimal `json:"monthly_fee"`
	TransactionFeeType string          `json:"transaction_fee_type"`
	TransactionFee     decimal.Decimal `json:"transaction_fee"`
	MaxCommissionRate  decimal.Decimal `json:"max_commission_rate"`
}

// IsFlatFee 是否按笔收取固定手续费
func (p *VendorPlan) IsFlatFee() bool {
	return p.TransactionFeeType == TransactionFeeFlat
}
