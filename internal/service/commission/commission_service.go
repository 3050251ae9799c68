package commission

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/common/metrics"
	"github.com/dumeirei/marketplace-commission/internal/common/tracing"
	"github.com/dumeirei/marketplace-commission/internal/models"
	"github.com/dumeirei/marketplace-commission/internal/repository"
	"github.com/dumeirei/marketplace-commission/internal/service/currency"
)

// 默认参数
const (
	DefaultTrailingWindowDays = 30
	DefaultConcurrency        = 4
	DefaultBaseCurrency       = "USD"
)

// PerformanceScoreProvider 商家绩效评分来源，由外部流程维护
type PerformanceScoreProvider interface {
	Score(ctx context.Context, vendorID int64) (*decimal.Decimal, error)
}

// VendorScoreProvider 读取商家表中的绩效评分
type VendorScoreProvider struct {
	vendorRepo *repository.VendorRepository
}

// NewVendorScoreProvider 创建评分来源
func NewVendorScoreProvider(vendorRepo *repository.VendorRepository) *VendorScoreProvider {
	return &VendorScoreProvider{vendorRepo: vendorRepo}
}

// Score 获取商家绩效评分
func (p *VendorScoreProvider) Score(ctx context.Context, vendorID int64) (*decimal.Decimal, error) {
	return p.vendorRepo.GetPerformanceScore(ctx, vendorID)
}

// Breakdown 单个订单项的佣金拆分结果
type Breakdown struct {
	RecordID         int64           `json:"record_id"`
	VendorID         int64           `json:"vendor_id"`
	OrderID          int64           `json:"order_id"`
	OrderItemID      int64           `json:"order_item_id"`
	SaleAmount       decimal.Decimal `json:"sale_amount"`
	CommissionRate   decimal.Decimal `json:"commission_rate"`
	BaseCommission   decimal.Decimal `json:"base_commission"`
	PerformanceBonus decimal.Decimal `json:"performance_bonus"`
	TransactionFee   decimal.Decimal `json:"transaction_fee"`
	VendorEarnings   decimal.Decimal `json:"vendor_earnings"`
	PlatformEarnings decimal.Decimal `json:"platform_earnings"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewBreakdown 由佣金记录构造拆分结果
func NewBreakdown(r *models.CommissionRecord) *Breakdown {
	return &Breakdown{
		RecordID:         r.ID,
		VendorID:         r.VendorID,
		OrderID:          r.OrderID,
		OrderItemID:      r.OrderItemID,
		SaleAmount:       r.SaleAmount,
		CommissionRate:   r.CommissionRate,
		BaseCommission:   r.BaseCommission,
		PerformanceBonus: r.PerformanceBonus,
		TransactionFee:   r.TransactionFee,
		VendorEarnings:   r.CommissionAmount,
		PlatformEarnings: r.PlatformEarnings,
		Currency:         r.Currency,
		Status:           r.Status,
		CreatedAt:        r.CreatedAt,
	}
}

// CommissionService 佣金计算服务
type CommissionService struct {
	recordRepo *repository.CommissionRecordRepository
	orderRepo  *repository.OrderRepository
	vendorRepo *repository.VendorRepository
	settings   *SettingsService
	plans      *PlanCatalog
	resolver   *RateResolver
	scores     PerformanceScoreProvider
	rates      currency.RateProvider
	converter  *currency.Converter
	log        *zap.Logger

	baseCurrency   string
	trailingWindow time.Duration
	concurrency    int
	now            func() time.Time
}

// NewCommissionService 创建佣金计算服务
func NewCommissionService(
	recordRepo *repository.CommissionRecordRepository,
	orderRepo *repository.OrderRepository,
	vendorRepo *repository.VendorRepository,
	settings *SettingsService,
	plans *PlanCatalog,
	resolver *RateResolver,
) *CommissionService {
	return &CommissionService{
		recordRepo:     recordRepo,
		orderRepo:      orderRepo,
		vendorRepo:     vendorRepo,
		settings:       settings,
		plans:          plans,
		resolver:       resolver,
		scores:         NewVendorScoreProvider(vendorRepo),
		log:            logger.Named("commission"),
		baseCurrency:   DefaultBaseCurrency,
		trailingWindow: DefaultTrailingWindowDays * 24 * time.Hour,
		concurrency:    DefaultConcurrency,
		now:            time.Now,
	}
}

// Configure 应用佣金配置
func (s *CommissionService) Configure(cfg *config.CommissionConfig) {
	if cfg == nil {
		return
	}
	if cfg.TrailingWindowDays > 0 {
		s.trailingWindow = cfg.TrailingWindow()
	}
	if cfg.Concurrency > 0 {
		s.concurrency = cfg.Concurrency
	}
}

// SetCurrency 设置基准币种与汇率来源
func (s *CommissionService) SetCurrency(base string, rates currency.RateProvider, converter *currency.Converter) {
	if base != "" {
		s.baseCurrency = currency.NormalizeCode(base)
	}
	s.rates = rates
	s.converter = converter
}

// SetScoreProvider 替换绩效评分来源
func (s *CommissionService) SetScoreProvider(p PerformanceScoreProvider) {
	s.scores = p
}

// SetClock 设置时钟，测试使用
func (s *CommissionService) SetClock(now func() time.Time) {
	s.now = now
}

// Calculate 计算单个订单项的商家佣金并落库
// 同一 (orderItemID, vendorID) 重复调用返回已有结果
func (s *CommissionService) Calculate(ctx context.Context, vendorID int64, saleAmount decimal.Decimal, orderID, orderItemID int64) (*Breakdown, error) {
	ctx, span := tracing.StartSpan(ctx, "commission.Calculate",
		tracing.WithVendorID(vendorID),
		tracing.WithOrderID(orderID),
		tracing.WithOrderItemID(orderItemID),
	)
	defer span.End()

	breakdown, err := s.calculate(ctx, vendorID, saleAmount, orderID, orderItemID)
	if err != nil {
		tracing.SetError(ctx, err)
		metrics.GetMetrics().RecordCommission("error", 0)
		return nil, err
	}
	return breakdown, nil
}

func (s *CommissionService) calculate(ctx context.Context, vendorID int64, saleAmount decimal.Decimal, orderID, orderItemID int64) (*Breakdown, error) {
	sale := saleAmount.Round(moneyPlaces)
	if !sale.IsPositive() {
		return nil, errors.InvalidInput(errors.ErrInvalidSaleAmount)
	}
	if vendorID <= 0 || orderID <= 0 || orderItemID <= 0 {
		return nil, errors.ErrInvalidInput.WithMessage("商家、订单和订单项ID不能为空")
	}

	existing, err := s.recordRepo.GetByItemAndVendor(ctx, orderItemID, vendorID)
	if err == nil {
		metrics.GetMetrics().RecordCommission("existing", 0)
		return NewBreakdown(existing), nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	vendor, err := s.vendorRepo.GetByID(ctx, vendorID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrVendorNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	settings, err := s.settings.GetOrCreate(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	plan := s.plans.ForVendor(vendor)

	now := s.now()
	volume, err := s.recordRepo.SumSaleAmount(ctx, vendorID, now.Add(-s.trailingWindow), now)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	score, err := s.scores.Score(ctx, vendorID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	resolved, err := s.resolver.Resolve(ResolveInput{
		SaleAmount:       sale,
		TrailingVolume:   volume,
		Settings:         settings,
		Plan:             plan,
		PerformanceScore: score,
	})
	if err != nil {
		return nil, err
	}

	record := Split(sale, resolved)
	record.VendorID = vendorID
	record.OrderID = orderID
	record.OrderItemID = orderItemID
	record.Currency = s.baseCurrency
	record.Status = models.CommissionStatusPending
	record.CreatedAt = now

	if !record.Reconciles() {
		metrics.GetMetrics().RecordConsistencyViolation("commission_split")
		s.log.Error("佣金拆分不平衡",
			logger.VendorID(vendorID),
			logger.OrderItemID(orderItemID),
			logger.Amount(sale),
			zap.String("vendor_earnings", record.CommissionAmount.String()),
			zap.String("platform_earnings", record.PlatformEarnings.String()),
		)
		return nil, errors.ErrConsistencyViolation.WithMessage("佣金拆分不平衡")
	}

	if err := s.recordRepo.Create(ctx, record); err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			winner, getErr := s.recordRepo.GetByItemAndVendor(ctx, orderItemID, vendorID)
			if getErr != nil {
				return nil, errors.ErrDatabaseError.WithError(getErr)
			}
			metrics.GetMetrics().RecordCommission("existing", 0)
			return NewBreakdown(winner), nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordCommission("created", record.CommissionAmount.InexactFloat64())
	s.log.Info("佣金已计算",
		logger.VendorID(vendorID),
		logger.OrderID(orderID),
		logger.OrderItemID(orderItemID),
		logger.Amount(sale),
		zap.String("rate", resolved.BaseCommissionRate.String()),
		zap.String("vendor_earnings", record.CommissionAmount.String()),
		zap.Bool("clamped", resolved.Clamped),
	)
	return NewBreakdown(record), nil
}

// Split 按解析结果拆分销售额
// 商家收入各项先按分取整，平台收入取差额，舍入误差归平台
func Split(sale decimal.Decimal, resolved *ResolvedRate) *models.CommissionRecord {
	base := sale.Mul(resolved.BaseCommissionRate).Round(moneyPlaces)
	vendorEarnings := base.Add(resolved.PerformanceBonus).Sub(resolved.TransactionFee)
	return &models.CommissionRecord{
		SaleAmount:       sale,
		CommissionRate:   resolved.BaseCommissionRate,
		BaseCommission:   base,
		PerformanceBonus: resolved.PerformanceBonus,
		TransactionFee:   resolved.TransactionFee,
		CommissionAmount: vendorEarnings,
		PlatformEarnings: sale.Sub(vendorEarnings),
	}
}

// CalculateForOrder 订单履约时计算全部商家订单项的佣金
// 订单项并发计算，任意一项失败整体返回错误，已成功的记录可重复调用补齐
func (s *CommissionService) CalculateForOrder(ctx context.Context, orderID int64) ([]*Breakdown, error) {
	order, err := s.orderRepo.GetByIDWithItems(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrOrderNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	items := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if item.VendorID == nil || !item.SaleAmount.IsPositive() {
			continue
		}
		items = append(items, item)
	}

	results := make([]*Breakdown, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range items {
		i, item := i, items[i]
		g.Go(func() error {
			b, err := s.Calculate(gctx, *item.VendorID, item.SaleAmount, order.ID, item.ID)
			if err != nil {
				return err
			}
			results[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("订单佣金计算失败", logger.OrderID(orderID), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// CancelByOrderID 订单退款时取消待打款佣金
// 已打款的记录保持不变，只记录告警
func (s *CommissionService) CancelByOrderID(ctx context.Context, orderID int64) (int64, error) {
	if _, err := s.orderRepo.GetByID(ctx, orderID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.ErrOrderNotFound
		}
		return 0, errors.ErrDatabaseError.WithError(err)
	}

	cancelled, err := s.recordRepo.CancelPendingByOrderID(ctx, orderID, s.now())
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}

	records, err := s.recordRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return cancelled, errors.ErrDatabaseError.WithError(err)
	}
	for _, r := range records {
		if r.Status != models.CommissionStatusPaid {
			continue
		}
		s.log.Warn("退款订单存在已打款佣金，需人工处理",
			logger.OrderID(orderID),
			logger.VendorID(r.VendorID),
			zap.Int64p("payout_id", r.PayoutID),
			logger.Amount(r.CommissionAmount),
		)
	}

	s.log.Info("订单佣金已取消", logger.OrderID(orderID), zap.Int64("cancelled", cancelled))
	return cancelled, nil
}

// ListRecords 分页查询商家佣金记录
func (s *CommissionService) ListRecords(ctx context.Context, vendorID int64, filter *repository.CommissionFilter, offset, limit int) ([]*Breakdown, int64, error) {
	records, total, err := s.recordRepo.ListByVendor(ctx, vendorID, filter, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	list := make([]*Breakdown, 0, len(records))
	for _, r := range records {
		list = append(list, NewBreakdown(r))
	}
	return list, total, nil
}
