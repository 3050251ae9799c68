// Package dropship 代发货供应商订单同步
package dropship

import (
	"strings"

	"github.com/dumeirei/marketplace-commission/internal/models"
)

// 状态机：pending → sent → {shipped, failed} → {delivered, cancelled}
var transitions = map[string][]string{
	models.SupplierOrderStatusPending: {models.SupplierOrderStatusSent},
	models.SupplierOrderStatusSent:    {models.SupplierOrderStatusShipped, models.SupplierOrderStatusFailed},
	models.SupplierOrderStatusShipped: {models.SupplierOrderStatusDelivered, models.SupplierOrderStatusCancelled},
	models.SupplierOrderStatusFailed:  {models.SupplierOrderStatusDelivered, models.SupplierOrderStatusCancelled},
}

// stage 状态所处的阶段，用于判断供应商状态是否回退
var stage = map[string]int{
	models.SupplierOrderStatusPending:   0,
	models.SupplierOrderStatusSent:      1,
	models.SupplierOrderStatusShipped:   2,
	models.SupplierOrderStatusFailed:    2,
	models.SupplierOrderStatusDelivered: 3,
	models.SupplierOrderStatusCancelled: 3,
}

// CanTransition 是否允许单步迁移
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionPath 返回从 from 到 to 需要经过的状态（不含 from）
// 供应商可能一次跳过多个状态，例如 sent 直接变为 delivered
// 不可达或无需迁移时返回 nil
func TransitionPath(from, to string) []string {
	if from == to {
		return nil
	}
	if CanTransition(from, to) {
		return []string{to}
	}
	if from == models.SupplierOrderStatusSent {
		switch to {
		case models.SupplierOrderStatusDelivered:
			return []string{models.SupplierOrderStatusShipped, to}
		case models.SupplierOrderStatusCancelled:
			return []string{models.SupplierOrderStatusFailed, to}
		}
	}
	return nil
}

// IsRegression 供应商状态是否落后于本地状态
func IsRegression(from, to string) bool {
	return stage[to] < stage[from]
}

// 供应商状态词汇
var supplierVocabulary = map[string]string{
	"CREATED":    models.SupplierOrderStatusSent,
	"IN_CART":    models.SupplierOrderStatusSent,
	"UNPAID":     models.SupplierOrderStatusSent,
	"UNSHIPPED":  models.SupplierOrderStatusSent,
	"PENDING":    models.SupplierOrderStatusSent,
	"PROCESSING": models.SupplierOrderStatusSent,

	"SHIPPED":    models.SupplierOrderStatusShipped,
	"DISPATCHED": models.SupplierOrderStatusShipped,
	"IN_TRANSIT": models.SupplierOrderStatusShipped,

	"DELIVERED": models.SupplierOrderStatusDelivered,
	"COMPLETED": models.SupplierOrderStatusDelivered,

	"FAILED":   models.SupplierOrderStatusFailed,
	"REJECTED": models.SupplierOrderStatusFailed,
	"ERROR":    models.SupplierOrderStatusFailed,

	"CANCELLED": models.SupplierOrderStatusCancelled,
	"CANCELED":  models.SupplierOrderStatusCancelled,
	"CLOSED":    models.SupplierOrderStatusCancelled,
}

// MapSupplierStatus 将供应商状态映射为本地状态
func MapSupplierStatus(raw string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	status, ok := supplierVocabulary[key]
	return status, ok
}

// fulfillmentStatus 供应商订单状态对应的订单项履约状态
func fulfillmentStatus(status string) (string, bool) {
	switch status {
	case models.SupplierOrderStatusSent:
		return models.FulfillmentProcessing, true
	case models.SupplierOrderStatusShipped:
		return models.FulfillmentShipped, true
	case models.SupplierOrderStatusDelivered:
		return models.FulfillmentDelivered, true
	case models.SupplierOrderStatusCancelled:
		return models.FulfillmentCancelled, true
	}
	return "", false
}
