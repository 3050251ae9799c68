// Package payout 商家打款批次服务
package payout

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/common/cache"
	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/common/metrics"
	"github.com/dumeirei/marketplace-commission/internal/common/tracing"
	"github.com/dumeirei/marketplace-commission/internal/common/utils"
	"github.com/dumeirei/marketplace-commission/internal/models"
	"github.com/dumeirei/marketplace-commission/internal/repository"
	"github.com/dumeirei/marketplace-commission/internal/service/commission"
)

// 默认参数
const (
	DefaultLockTTL  = 30 * time.Second
	DefaultLockWait = 10 * time.Second

	payoutNoPrefix = "PO"
	lockKeyPrefix  = cache.KeyPrefixPayoutLock
)

// PayoutService 打款批次服务
type PayoutService struct {
	db         *gorm.DB
	recordRepo *repository.CommissionRecordRepository
	payoutRepo *repository.PayoutRepository
	settings   *commission.SettingsService
	locker     *cache.Locker
	statements StatementStore
	log        *zap.Logger

	vendorLocks *vendorLocks
	lockTTL     time.Duration
	lockWait    time.Duration
	now         func() time.Time
}

// NewPayoutService 创建打款服务
// locker 为空时只做进程内互斥，多实例部署必须配置 Redis
func NewPayoutService(
	db *gorm.DB,
	recordRepo *repository.CommissionRecordRepository,
	payoutRepo *repository.PayoutRepository,
	settings *commission.SettingsService,
	locker *cache.Locker,
) *PayoutService {
	return &PayoutService{
		db:          db,
		recordRepo:  recordRepo,
		payoutRepo:  payoutRepo,
		settings:    settings,
		locker:      locker,
		log:         logger.Named("payout"),
		vendorLocks: newVendorLocks(),
		lockTTL:     DefaultLockTTL,
		lockWait:    DefaultLockWait,
		now:         time.Now,
	}
}

// Configure 应用打款配置
func (s *PayoutService) Configure(cfg *config.PayoutConfig) {
	if cfg == nil {
		return
	}
	if cfg.LockTTL > 0 {
		s.lockTTL = cfg.LockTTLDuration()
	}
	if cfg.LockWait > 0 {
		s.lockWait = cfg.LockWaitDuration()
	}
}

// SetStatementStore 设置对账单归档
func (s *PayoutService) SetStatementStore(store StatementStore) {
	s.statements = store
}

// SetClock 设置时钟，测试使用
func (s *PayoutService) SetClock(now func() time.Time) {
	s.now = now
}

// GeneratePayout 汇总商家 [periodStart, periodEnd) 内待打款的佣金生成打款批次
// periodStart 为零值时汇总 periodEnd 之前的全部待打款记录
// 没有待打款记录或合计低于最低打款金额时返回 nil，记录保持待打款
func (s *PayoutService) GeneratePayout(ctx context.Context, vendorID int64, periodStart, periodEnd time.Time) (*models.Payout, error) {
	if periodEnd.IsZero() || !periodStart.Before(periodEnd) {
		return nil, errors.InvalidInput(errors.ErrInvalidPeriod)
	}

	ctx, span := tracing.StartSpan(ctx, "payout.GeneratePayout",
		tracing.WithVendorID(vendorID),
		tracing.WithOperation("generate_payout"),
	)
	defer span.End()

	payout, err := s.generate(ctx, vendorID, periodStart, periodEnd)
	if err != nil {
		tracing.SetError(ctx, err)
		metrics.GetMetrics().RecordPayout("error", 0)
		return nil, err
	}
	return payout, nil
}

func (s *PayoutService) generate(ctx context.Context, vendorID int64, periodStart, periodEnd time.Time) (*models.Payout, error) {
	unlock, err := s.lockVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	settings, err := s.settings.GetOrCreate(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	var payout *models.Payout
	var records []*models.CommissionRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recordRepo := s.recordRepo.WithTx(tx)

		pending, err := recordRepo.ListPendingForPeriod(ctx, vendorID, periodStart, periodEnd)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if len(pending) == 0 {
			return nil
		}

		total := decimal.Zero
		ids := make([]int64, 0, len(pending))
		for _, r := range pending {
			total = total.Add(r.CommissionAmount)
			ids = append(ids, r.ID)
		}
		if !total.IsPositive() || total.LessThan(settings.MinimumPayout) {
			s.log.Info("待打款金额未达到最低打款金额，顺延到下个周期",
				logger.VendorID(vendorID),
				logger.Amount(total),
				zap.String("minimum_payout", settings.MinimumPayout.String()),
				zap.Int("records", len(pending)),
			)
			return nil
		}

		if periodStart.IsZero() {
			periodStart = utils.StartOfDay(oldestCreatedAt(pending).UTC())
		}

		now := s.now()
		p := &models.Payout{
			PayoutNo:      utils.GenerateSerialNo(payoutNoPrefix, now),
			VendorID:      vendorID,
			Amount:        total,
			Currency:      pending[0].Currency,
			RecordCount:   len(pending),
			PeriodStart:   periodStart,
			PeriodEnd:     periodEnd,
			PaymentMethod: settings.PaymentMethod,
			Status:        models.PayoutStatusPending,
		}
		if err := s.payoutRepo.WithTx(tx).Create(ctx, p); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}

		affected, err := recordRepo.MarkPaid(ctx, ids, p.ID, now)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if affected != int64(len(ids)) {
			metrics.GetMetrics().RecordConsistencyViolation("payout_mark_paid")
			s.log.Error("打款标记行数不一致，回滚",
				logger.VendorID(vendorID),
				logger.PayoutNo(p.PayoutNo),
				zap.Int("expected", len(ids)),
				zap.Int64("affected", affected),
			)
			return errors.ErrConsistencyViolation.WithMessage(
				fmt.Sprintf("打款标记行数不一致: 期望 %d 实际 %d", len(ids), affected))
		}

		payout = p
		records = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, nil
	}

	metrics.GetMetrics().RecordPayout("created", payout.Amount.InexactFloat64())
	s.log.Info("打款批次已生成",
		logger.VendorID(vendorID),
		logger.PayoutNo(payout.PayoutNo),
		logger.Amount(payout.Amount),
		zap.Int("records", payout.RecordCount),
	)

	s.archiveStatement(ctx, payout, records)
	return payout, nil
}

// archiveStatement 提交后上传对账单，失败不影响打款
func (s *PayoutService) archiveStatement(ctx context.Context, payout *models.Payout, records []*models.CommissionRecord) {
	if s.statements == nil {
		return
	}
	url, err := s.statements.Save(ctx, payout, records)
	if err != nil {
		s.log.Warn("对账单上传失败", logger.PayoutNo(payout.PayoutNo), zap.Error(err))
		return
	}
	if err := s.payoutRepo.UpdateStatementURL(ctx, payout.ID, url); err != nil {
		s.log.Warn("对账单地址保存失败", logger.PayoutNo(payout.PayoutNo), zap.Error(err))
		return
	}
	payout.StatementURL = utils.StringPtr(url)
}

func oldestCreatedAt(records []*models.CommissionRecord) time.Time {
	oldest := records[0].CreatedAt
	for _, r := range records[1:] {
		if r.CreatedAt.Before(oldest) {
			oldest = r.CreatedAt
		}
	}
	return oldest
}

// lockVendor 串行化同一商家的打款生成
// 进程内锁之外，配置 Redis 时再加分布式锁，两者都在 lockWait 内放弃
func (s *PayoutService) lockVendor(ctx context.Context, vendorID int64) (func(), error) {
	unlock, err := s.vendorLocks.acquire(ctx, vendorID, s.lockWait)
	if err != nil {
		return nil, err
	}

	if s.locker == nil {
		return unlock, nil
	}

	key := fmt.Sprintf("%s%d", lockKeyPrefix, vendorID)
	token, err := s.locker.Lock(ctx, key, s.lockTTL, s.lockWait)
	if err != nil {
		unlock()
		if stderrors.Is(err, cache.ErrLockNotAcquired) {
			return nil, errors.ErrPayoutInProgress
		}
		return nil, errors.ErrLockFailed.WithError(err)
	}

	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("释放打款锁失败", logger.VendorID(vendorID), zap.Error(err))
		}
		unlock()
	}, nil
}

// CycleResult 打款周期执行结果
type CycleResult struct {
	PeriodEnd time.Time        `json:"period_end"`
	Vendors   int              `json:"vendors"`
	Payouts   []*models.Payout `json:"payouts"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
}

// GenerateCycle 为截至当天零点仍有待打款记录的商家生成打款
// 之前未达到最低打款金额的余额一并汇总
// 单个商家失败不影响其他商家，错误合并返回
func (s *PayoutService) GenerateCycle(ctx context.Context, now time.Time) (*CycleResult, error) {
	end := utils.StartOfDay(now)
	result := &CycleResult{PeriodEnd: end, Payouts: []*models.Payout{}}

	vendorIDs, err := s.recordRepo.VendorIDsWithPending(ctx, end)
	if err != nil {
		return result, errors.ErrDatabaseError.WithError(err)
	}
	result.Vendors = len(vendorIDs)

	var errs error
	for _, vendorID := range vendorIDs {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		payout, err := s.GeneratePayout(ctx, vendorID, time.Time{}, end)
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("vendor %d: %w", vendorID, err))
			continue
		}
		if payout == nil {
			result.Skipped++
			continue
		}
		result.Payouts = append(result.Payouts, payout)
	}

	s.log.Info("打款周期执行完成",
		zap.Time("period_end", end),
		zap.Int("vendors", result.Vendors),
		zap.Int("created", len(result.Payouts)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, errs
}

// ListPayouts 分页查询商家打款批次
func (s *PayoutService) ListPayouts(ctx context.Context, vendorID int64, offset, limit int) ([]*models.Payout, int64, error) {
	payouts, total, err := s.payoutRepo.ListByVendor(ctx, vendorID, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return payouts, total, nil
}

// GetPayout 获取打款批次及其佣金记录
// vendorID 为 0 时不校验归属（管理端）
func (s *PayoutService) GetPayout(ctx context.Context, vendorID, payoutID int64) (*models.Payout, error) {
	payout, err := s.payoutRepo.GetByID(ctx, payoutID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPayoutNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if vendorID != 0 && payout.VendorID != vendorID {
		return nil, errors.ErrPayoutNotFound
	}
	return s.withRecords(ctx, payout)
}

// GetPayoutByNo 按批次号获取打款批次及其佣金记录（管理端对账）
func (s *PayoutService) GetPayoutByNo(ctx context.Context, payoutNo string) (*models.Payout, error) {
	payout, err := s.payoutRepo.GetByPayoutNo(ctx, payoutNo)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPayoutNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.withRecords(ctx, payout)
}

func (s *PayoutService) withRecords(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	records, err := s.recordRepo.ListByPayoutID(ctx, payout.ID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	payout.Records = make([]models.CommissionRecord, 0, len(records))
	for _, r := range records {
		payout.Records = append(payout.Records, *r)
	}
	return payout, nil
}
