package dropship

import (
	"time"

	"github.com/dumeirei/marketplace-commission/internal/common/utils"
	"github.com/dumeirei/marketplace-commission/internal/models"
	"github.com/dumeirei/marketplace-commission/pkg/supplier"
)

// OrderUpdate 一次轮询得到的供应商订单变更
type OrderUpdate struct {
	SupplierOrderID int64
	From            string
	To              string
	// Path 为实际经过的状态，最后一个等于 To
	Path           []string
	TrackingNumber *string
	Carrier        *string
	TrackingURL    *string
	SyncedAt       time.Time
}

// StatusChanged 是否发生状态迁移
func (u *OrderUpdate) StatusChanged() bool {
	return u.From != u.To
}

// EnteredShipped 本次变更是否经过已发货状态
func (u *OrderUpdate) EnteredShipped() bool {
	for _, s := range u.Path {
		if s == models.SupplierOrderStatusShipped {
			return true
		}
	}
	return false
}

// CheckOrderUpdates 根据供应商返回的状态计算本地订单需要的变更
// 纯函数：不访问数据库和网络。没有观测结果、状态无法识别、
// 终态订单、状态回退且物流信息未变化时不产生变更
func CheckOrderUpdates(orders []*models.SupplierOrder, observations map[int64]*supplier.OrderStatus, now time.Time) []OrderUpdate {
	updates := make([]OrderUpdate, 0, len(observations))
	for _, order := range orders {
		obs, ok := observations[order.ID]
		if !ok || obs == nil || order.IsTerminal() {
			continue
		}
		mapped, ok := MapSupplierStatus(obs.Status)
		if !ok {
			continue
		}

		update := OrderUpdate{
			SupplierOrderID: order.ID,
			From:            order.Status,
			To:              order.Status,
			SyncedAt:        now,
		}
		if path := TransitionPath(order.Status, mapped); path != nil {
			update.To = mapped
			update.Path = path
		} else if mapped != order.Status && !IsRegression(order.Status, mapped) {
			// 同阶段的横向变化（如 shipped 与 failed 之间）不处理
			continue
		}

		trackingChanged := false
		if v := changed(order.TrackingNumber, obs.TrackingNumber); v != nil {
			update.TrackingNumber = v
			trackingChanged = true
		}
		if v := changed(order.Carrier, obs.Carrier); v != nil {
			update.Carrier = v
			trackingChanged = true
		}
		if v := changed(order.TrackingURL, obs.TrackingURL); v != nil {
			update.TrackingURL = v
			trackingChanged = true
		}

		if !update.StatusChanged() && !trackingChanged {
			continue
		}
		updates = append(updates, update)
	}
	return updates
}

func changed(current *string, observed string) *string {
	if observed == "" {
		return nil
	}
	if current != nil && *current == observed {
		return nil
	}
	return utils.StringPtr(observed)
}
