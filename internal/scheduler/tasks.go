package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/service/dropship"
	"github.com/dumeirei/marketplace-commission/internal/service/payout"
)

// 任务名称与默认间隔
const (
	TaskPollSupplierOrders    = "poll_supplier_orders"
	TaskGenerateVendorPayouts = "generate_vendor_payouts"

	DefaultPollInterval   = 10 * time.Minute
	DefaultPayoutInterval = 7 * 24 * time.Hour
)

// SupplierPoller 供应商订单轮询
type SupplierPoller interface {
	PollOrderUpdates(ctx context.Context, now time.Time) (*dropship.PollResult, error)
}

// PayoutCycleRunner 打款周期
type PayoutCycleRunner interface {
	GenerateCycle(ctx context.Context, now time.Time) (*payout.CycleResult, error)
}

// TaskHandler 任务处理器
type TaskHandler struct {
	poller  SupplierPoller
	payouts PayoutCycleRunner
	log     *zap.Logger
	now     func() time.Time
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(poller SupplierPoller, payouts PayoutCycleRunner) *TaskHandler {
	return &TaskHandler{
		poller:  poller,
		payouts: payouts,
		log:     logger.Named("scheduler.tasks"),
		now:     time.Now,
	}
}

// PollSupplierOrders 同步供应商订单状态
// 受限流跳过的订单留到下一个周期
func (h *TaskHandler) PollSupplierOrders(ctx context.Context) error {
	result, err := h.poller.PollOrderUpdates(ctx, h.now())
	if result != nil && (result.Skipped > 0 || result.Failed > 0) {
		h.log.Warn("供应商订单同步未全部完成",
			zap.Int("checked", result.Checked),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
	return err
}

// GenerateVendorPayouts 汇总截至当天零点的待打款佣金生成商家打款
func (h *TaskHandler) GenerateVendorPayouts(ctx context.Context) error {
	result, err := h.payouts.GenerateCycle(ctx, h.now())
	if result != nil && result.Failed > 0 {
		h.log.Warn("部分商家打款生成失败",
			zap.Int("vendors", result.Vendors),
			zap.Int("failed", result.Failed),
		)
	}
	return err
}

// Register 注册全部任务，打款按 cycle_days 周期执行
func (h *TaskHandler) Register(s *Scheduler, dropshipCfg *config.DropshipConfig, payoutCfg *config.PayoutConfig) {
	pollInterval := DefaultPollInterval
	if dropshipCfg != nil && dropshipCfg.PollInterval > 0 {
		pollInterval = dropshipCfg.PollIntervalDuration()
	}
	payoutInterval := DefaultPayoutInterval
	if payoutCfg != nil && payoutCfg.CycleDays > 0 {
		payoutInterval = payoutCfg.CycleInterval()
	}
	if h.poller != nil {
		s.AddTask(TaskPollSupplierOrders, pollInterval, h.PollSupplierOrders)
	}
	if h.payouts != nil {
		s.AddTask(TaskGenerateVendorPayouts, payoutInterval, h.GenerateVendorPayouts)
	}
}
