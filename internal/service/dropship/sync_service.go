package dropship

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

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
	"github.com/dumeirei/marketplace-commission/pkg/supplier"
)

// 默认参数
const (
	DefaultBatchSize       = 100
	DefaultTokenExpirySkew = time.Minute
	DefaultSubmitLockTTL   = time.Minute

	maxLastErrorLen = 500
)

// ClientFactory 根据供应商配置创建 API 客户端
type ClientFactory func(s *models.Supplier) (supplier.Client, error)

// NewHTTPClientFactory 返回基于 HTTP 的客户端工厂
func NewHTTPClientFactory(timeout time.Duration) ClientFactory {
	return func(s *models.Supplier) (supplier.Client, error) {
		c, err := supplier.NewHTTPClient(supplier.Config{
			BaseURL: s.APIBaseURL,
			Email:   s.APIEmail,
			APIKey:  s.APIKey,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// SyncService 供应商订单同步服务
type SyncService struct {
	db             *gorm.DB
	supplierRepo   *repository.SupplierRepository
	orderRepo      *repository.SupplierOrderRepository
	platformOrders *repository.OrderRepository
	gate           *RateLimitGate
	tokens         TokenCache
	clients        ClientFactory
	notifier       ShipmentNotifier
	locker         *cache.Locker
	log            *zap.Logger

	submitting sync.Map
	batchSize  int
	tokenSkew  time.Duration
	now        func() time.Time
}

// NewSyncService 创建同步服务
// gate、tokens 为空时使用进程内实现
func NewSyncService(
	db *gorm.DB,
	supplierRepo *repository.SupplierRepository,
	orderRepo *repository.SupplierOrderRepository,
	platformOrders *repository.OrderRepository,
	gate *RateLimitGate,
	tokens TokenCache,
	clients ClientFactory,
) *SyncService {
	if gate == nil {
		gate = NewRateLimitGate(nil, nil)
	}
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	return &SyncService{
		db:             db,
		supplierRepo:   supplierRepo,
		orderRepo:      orderRepo,
		platformOrders: platformOrders,
		gate:           gate,
		tokens:         tokens,
		clients:        clients,
		log:            logger.Named("dropship"),
		batchSize:      DefaultBatchSize,
		tokenSkew:      DefaultTokenExpirySkew,
		now:            time.Now,
	}
}

// Configure 应用代发货配置
func (s *SyncService) Configure(cfg *config.DropshipConfig) {
	if cfg == nil {
		return
	}
	if cfg.BatchSize > 0 {
		s.batchSize = cfg.BatchSize
	}
	if cfg.TokenExpirySkew > 0 {
		s.tokenSkew = cfg.TokenExpirySkewDuration()
	}
}

// SetNotifier 设置发货通知
func (s *SyncService) SetNotifier(n ShipmentNotifier) {
	s.notifier = n
}

// SetLocker 设置分布式锁，多实例部署时防止重复下单
func (s *SyncService) SetLocker(l *cache.Locker) {
	s.locker = l
}

// SetClock 设置时钟，测试使用
func (s *SyncService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateSupplierOrders 按供应商拆分平台订单中的代发货商品，生成待下单的供应商订单
// 已存在的供应商订单直接返回
func (s *SyncService) CreateSupplierOrders(ctx context.Context, orderID int64) ([]*models.SupplierOrder, error) {
	order, err := s.platformOrders.GetByIDWithItems(ctx, orderID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrOrderNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	groups := make(map[int64][]models.SupplierOrderItem)
	var supplierIDs []int64
	for _, item := range order.Items {
		if item.Product == nil || !item.Product.IsSupplierSourced() {
			continue
		}
		sid := *item.Product.SupplierID
		if _, ok := groups[sid]; !ok {
			supplierIDs = append(supplierIDs, sid)
		}
		groups[sid] = append(groups[sid], models.SupplierOrderItem{
			OrderItemID: item.ID,
			SupplierSKU: *item.Product.SupplierSKU,
			Quantity:    item.Quantity,
		})
	}

	result := make([]*models.SupplierOrder, 0, len(supplierIDs))
	for _, sid := range supplierIDs {
		if _, err := s.supplierRepo.GetByID(ctx, sid); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.ErrSupplierNotFound.WithMessage(fmt.Sprintf("供应商 %d 不存在", sid))
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}

		existing, err := s.orderRepo.GetByOrderAndSupplier(ctx, orderID, sid)
		if err == nil {
			result = append(result, existing)
			continue
		}
		if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrDatabaseError.WithError(err)
		}

		so := &models.SupplierOrder{
			SupplierID: sid,
			OrderID:    orderID,
			Status:     models.SupplierOrderStatusPending,
			Items:      groups[sid],
		}
		if err := s.orderRepo.Create(ctx, so); err != nil {
			if !stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
			// 并发创建，读取已有记录
			existing, err := s.orderRepo.GetByOrderAndSupplier(ctx, orderID, sid)
			if err != nil {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
			result = append(result, existing)
			continue
		}
		s.log.Info("供应商订单已创建",
			logger.OrderID(orderID),
			logger.SupplierOrderID(so.ID),
			zap.Int64("supplier_id", sid),
			zap.Int("items", len(so.Items)),
		)
		result = append(result, so)
	}
	return result, nil
}

// SubmitOrder 将待下单的供应商订单提交给供应商
func (s *SyncService) SubmitOrder(ctx context.Context, supplierOrderID int64) (*models.SupplierOrder, error) {
	ctx, span := tracing.StartSpan(ctx, "dropship.SubmitOrder",
		tracing.WithOperation("submit_supplier_order"),
	)
	defer span.End()

	so, err := s.submit(ctx, supplierOrderID)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	return so, nil
}

func (s *SyncService) submit(ctx context.Context, id int64) (*models.SupplierOrder, error) {
	unlock, err := s.lockSubmit(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	so, err := s.GetSupplierOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if so.Status != models.SupplierOrderStatusPending {
		return nil, errors.ErrSupplierOrderStatus
	}
	sup := so.Supplier
	if sup == nil {
		return nil, errors.ErrSupplierNotFound
	}
	if sup.Status != models.SupplierStatusActive {
		return nil, errors.ErrSupplierNotFound.WithMessage("供应商已停用")
	}
	if !sup.HasCredentials() {
		return nil, errors.ErrSupplierCredentialsMissing
	}
	if so.Order == nil {
		return nil, errors.ErrOrderNotFound
	}
	tracing.SetAttributes(ctx, tracing.WithSupplierCode(sup.Code), tracing.WithOrderID(so.OrderID))

	client, err := s.clients(sup)
	if err != nil {
		return nil, errors.ErrExternalService.WithError(err)
	}

	now := s.now()
	token, err := s.accessToken(ctx, sup, client, now)
	if err != nil {
		s.recordAttemptFailure(ctx, so.ID, err)
		return nil, err
	}
	if err := s.gate.AllowData(ctx, sup.Code, now); err != nil {
		return nil, err
	}

	res, err := client.SubmitOrder(ctx, token, buildSubmitRequest(so))
	if err != nil {
		err = s.callFailed(ctx, sup, "submit_order", CallData, now, err)
		s.recordAttemptFailure(ctx, so.ID, err)
		return nil, err
	}
	metrics.GetMetrics().RecordSupplierRequest(sup.Code, "submit_order", "ok")

	sentAt := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.orderRepo.WithTx(tx).UpdateIfStatus(ctx, so.ID, models.SupplierOrderStatusPending, map[string]interface{}{
			"status":            models.SupplierOrderStatusSent,
			"external_order_id": res.ExternalOrderID,
			"sent_at":           sentAt,
			"last_synced_at":    sentAt,
			"last_error":        nil,
		})
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return errors.ErrSupplierOrderStatus
		}
		if err := s.platformOrders.WithTx(tx).UpdateItemsFulfillment(ctx, itemIDs(so), models.FulfillmentProcessing, nil); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		return nil
	})
	if err != nil {
		// 供应商已经收单，本地状态未能更新，需要人工核对
		metrics.GetMetrics().RecordConsistencyViolation("supplier_order_submit")
		s.log.Error("供应商已接单但本地状态更新失败",
			logger.SupplierOrderID(so.ID),
			logger.SupplierCode(sup.Code),
			zap.String("external_order_id", res.ExternalOrderID),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("供应商订单已提交",
		logger.SupplierOrderID(so.ID),
		logger.SupplierCode(sup.Code),
		logger.OrderID(so.OrderID),
		zap.String("external_order_id", res.ExternalOrderID),
	)
	return s.GetSupplierOrder(ctx, so.ID)
}

// lockSubmit 同一供应商订单同时只允许一个提交
func (s *SyncService) lockSubmit(ctx context.Context, id int64) (func(), error) {
	if _, busy := s.submitting.LoadOrStore(id, struct{}{}); busy {
		return nil, errors.ErrSupplierOrderBusy
	}
	release := func() { s.submitting.Delete(id) }
	if s.locker == nil {
		return release, nil
	}

	key := fmt.Sprintf("%s%d", cache.KeyPrefixSupplierLock, id)
	token, ok, err := s.locker.TryLock(ctx, key, DefaultSubmitLockTTL)
	if err != nil {
		release()
		return nil, errors.ErrLockFailed.WithError(err)
	}
	if !ok {
		release()
		return nil, errors.ErrSupplierOrderBusy
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("释放供应商订单锁失败", logger.SupplierOrderID(id), zap.Error(err))
		}
		release()
	}, nil
}

func buildSubmitRequest(so *models.SupplierOrder) *supplier.SubmitOrderRequest {
	order := so.Order
	req := &supplier.SubmitOrderRequest{
		OrderNumber:  order.OrderNo,
		CustomerName: order.CustomerName,
		CountryCode:  order.ShippingCountry,
		City:         order.ShippingCity,
		Address:      order.ShippingAddress,
		Zip:          order.ShippingZip,
		Phone:        utils.SafeString(order.CustomerPhone),
		Items:        make([]supplier.OrderItem, 0, len(so.Items)),
	}
	for _, item := range so.Items {
		req.Items = append(req.Items, supplier.OrderItem{SKU: item.SupplierSKU, Quantity: item.Quantity})
	}
	return req
}

func itemIDs(so *models.SupplierOrder) []int64 {
	ids := make([]int64, 0, len(so.Items))
	for _, item := range so.Items {
		ids = append(ids, item.OrderItemID)
	}
	return ids
}

// accessToken 获取可用令牌，缓存的令牌临近过期时重新鉴权
func (s *SyncService) accessToken(ctx context.Context, sup *models.Supplier, client supplier.Client, now time.Time) (string, error) {
	token, ok, err := s.tokens.Get(ctx, sup.Code)
	if err != nil {
		s.log.Warn("读取供应商令牌缓存失败", logger.SupplierCode(sup.Code), zap.Error(err))
	}
	if ok && token.ValidAt(now, s.tokenSkew) {
		return token.AccessToken, nil
	}

	if err := s.gate.AllowAuth(ctx, sup.Code, now); err != nil {
		return "", err
	}
	token, err = client.Authenticate(ctx)
	if err != nil {
		if stderrors.Is(err, supplier.ErrUnauthorized) {
			metrics.GetMetrics().RecordSupplierRequest(sup.Code, "authenticate", "unauthorized")
			return "", errors.ErrSupplierUnauthorized.WithMessage("供应商凭证无效").WithError(err)
		}
		return "", s.callFailed(ctx, sup, "authenticate", CallAuth, now, err)
	}
	metrics.GetMetrics().RecordSupplierRequest(sup.Code, "authenticate", "ok")

	if err := s.tokens.Set(ctx, sup.Code, token); err != nil {
		s.log.Warn("保存供应商令牌失败", logger.SupplierCode(sup.Code), zap.Error(err))
	}
	return token.AccessToken, nil
}

// callFailed 处理已发出的供应商调用失败
func (s *SyncService) callFailed(ctx context.Context, sup *models.Supplier, endpoint string, kind CallKind, now time.Time, err error) error {
	if throttled, ok := supplier.AsThrottled(err); ok {
		metrics.GetMetrics().RecordSupplierRequest(sup.Code, endpoint, "throttled")
		if derr := s.gate.Throttled(ctx, sup.Code, kind, now, throttled.RetryAfter); derr != nil {
			s.log.Warn("保存供应商退避时间失败", logger.SupplierCode(sup.Code), zap.Error(derr))
		}
		s.log.Warn("供应商接口限流",
			logger.SupplierCode(sup.Code),
			zap.String("endpoint", endpoint),
			zap.Duration("retry_after", throttled.RetryAfter),
		)
		return errors.ErrRateLimited.WithMessage("供应商接口限流，请稍后重试").WithError(err)
	}
	if stderrors.Is(err, supplier.ErrUnauthorized) {
		metrics.GetMetrics().RecordSupplierRequest(sup.Code, endpoint, "unauthorized")
		if ierr := s.tokens.Invalidate(ctx, sup.Code); ierr != nil {
			s.log.Warn("清除供应商令牌失败", logger.SupplierCode(sup.Code), zap.Error(ierr))
		}
		return errors.ErrSupplierUnauthorized.WithError(err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.GetMetrics().RecordSupplierRequest(sup.Code, endpoint, "cancelled")
		return ctxErr
	}
	metrics.GetMetrics().RecordSupplierRequest(sup.Code, endpoint, "error")
	s.log.Warn("供应商接口调用失败",
		logger.SupplierCode(sup.Code),
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)
	return errors.ErrExternalService.WithMessage(fmt.Sprintf("供应商接口调用失败: %v", err)).WithError(err)
}

// recordAttemptFailure 记录最近一次调用失败原因，本地限流未发出请求时不记录
func (s *SyncService) recordAttemptFailure(ctx context.Context, id int64, err error) {
	var limited *RateLimitedError
	if stderrors.As(err, &limited) {
		return
	}
	msg := err.Error()
	if len(msg) > maxLastErrorLen {
		msg = msg[:maxLastErrorLen]
	}
	if uerr := s.orderRepo.UpdateFields(context.WithoutCancel(ctx), id, map[string]interface{}{"last_error": msg}); uerr != nil {
		s.log.Warn("记录供应商订单错误失败", logger.SupplierOrderID(id), zap.Error(uerr))
	}
}

// PollResult 一次轮询的结果
type PollResult struct {
	Checked  int           `json:"checked"`
	Queried  int           `json:"queried"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Notified int           `json:"notified"`
	Updates  []OrderUpdate `json:"-"`
}

// PollOrderUpdates 查询已提交订单在供应商侧的状态并同步到本地
// 受限流的订单本轮跳过，单个订单失败不影响其他订单，错误合并返回
func (s *SyncService) PollOrderUpdates(ctx context.Context, now time.Time) (*PollResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dropship.PollOrderUpdates",
		tracing.WithOperation("poll_supplier_orders"),
	)
	defer span.End()

	result := &PollResult{}
	orders, err := s.orderRepo.ListPollable(ctx, s.batchSize)
	if err != nil {
		return result, errors.ErrDatabaseError.WithError(err)
	}
	result.Checked = len(orders)

	var suppliers []*models.Supplier
	groups := make(map[int64][]*models.SupplierOrder)
	for _, so := range orders {
		if so.Supplier == nil {
			result.Skipped++
			continue
		}
		if _, ok := groups[so.SupplierID]; !ok {
			suppliers = append(suppliers, so.Supplier)
		}
		groups[so.SupplierID] = append(groups[so.SupplierID], so)
	}

	var errs error
	observations := make(map[int64]*supplier.OrderStatus)
	for _, sup := range suppliers {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		obs, st, err := s.pollSupplier(ctx, sup, groups[sup.ID], now)
		for id, o := range obs {
			observations[id] = o
		}
		result.Skipped += st.skipped
		result.Failed += st.failed
		errs = multierr.Append(errs, err)
	}
	result.Queried = len(observations)

	byID := make(map[int64]*models.SupplierOrder, len(orders))
	for _, so := range orders {
		byID[so.ID] = so
	}

	updated := make(map[int64]bool)
	for _, u := range CheckOrderUpdates(orders, observations, now) {
		so := byID[u.SupplierOrderID]
		applied, err := s.applyUpdate(ctx, so, u)
		if err != nil {
			result.Failed++
			errs = multierr.Append(errs, fmt.Errorf("supplier order %d: %w", so.ID, err))
			continue
		}
		updated[so.ID] = true
		if !applied {
			continue
		}
		result.Updated++
		result.Updates = append(result.Updates, u)
		if u.EnteredShipped() && s.notifyShipment(ctx, so, u) {
			result.Notified++
		}
	}

	for id := range observations {
		if updated[id] {
			continue
		}
		if err := s.orderRepo.UpdateFields(ctx, id, map[string]interface{}{
			"last_synced_at": now,
			"last_error":     nil,
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("supplier order %d: %w", id, errors.ErrDatabaseError.WithError(err)))
		}
	}

	s.log.Info("供应商订单轮询完成",
		zap.Int("checked", result.Checked),
		zap.Int("queried", result.Queried),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("notified", result.Notified),
	)
	if errs != nil {
		tracing.SetError(ctx, errs)
	}
	return result, errs
}

type pollStats struct {
	skipped int
	failed  int
}

// pollSupplier 查询同一供应商的一批订单
func (s *SyncService) pollSupplier(ctx context.Context, sup *models.Supplier, batch []*models.SupplierOrder, now time.Time) (map[int64]*supplier.OrderStatus, pollStats, error) {
	var st pollStats
	obs := make(map[int64]*supplier.OrderStatus, len(batch))
	if !sup.HasCredentials() {
		st.skipped = len(batch)
		s.log.Warn("供应商未配置 API 凭证，跳过轮询", logger.SupplierCode(sup.Code))
		return obs, st, nil
	}

	client, err := s.clients(sup)
	if err != nil {
		st.failed = len(batch)
		return obs, st, fmt.Errorf("supplier %s: %w", sup.Code, errors.ErrExternalService.WithError(err))
	}

	token, err := s.accessToken(ctx, sup, client, now)
	if err != nil {
		if errors.Is(err, errors.ErrRateLimited) {
			st.skipped = len(batch)
			s.log.Info("供应商鉴权受限，本轮跳过", logger.SupplierCode(sup.Code), zap.Error(err))
			return obs, st, nil
		}
		st.failed = len(batch)
		return obs, st, fmt.Errorf("supplier %s: %w", sup.Code, err)
	}

	var errs error
	for i, so := range batch {
		if err := s.gate.WaitData(ctx, sup.Code, now); err != nil {
			st.skipped += len(batch) - i
			if !errors.Is(err, errors.ErrRateLimited) {
				errs = multierr.Append(errs, err)
			}
			break
		}
		status, err := client.GetOrderStatus(ctx, token, *so.ExternalOrderID)
		if err != nil {
			err = s.callFailed(ctx, sup, "order_status", CallData, now, err)
			if errors.Is(err, errors.ErrRateLimited) {
				st.skipped += len(batch) - i
				break
			}
			st.failed++
			s.recordAttemptFailure(ctx, so.ID, err)
			errs = multierr.Append(errs, fmt.Errorf("supplier order %d: %w", so.ID, err))
			if errors.Is(err, errors.ErrSupplierUnauthorized) || ctx.Err() != nil {
				st.skipped += len(batch) - i - 1
				break
			}
			continue
		}
		metrics.GetMetrics().RecordSupplierRequest(sup.Code, "order_status", "ok")
		obs[so.ID] = status
	}
	return obs, st, errs
}

// applyUpdate 在事务内写入状态迁移与订单项履约状态
// 返回 false 表示状态已被其他进程修改，本次变更放弃
func (s *SyncService) applyUpdate(ctx context.Context, so *models.SupplierOrder, u OrderUpdate) (bool, error) {
	fields := map[string]interface{}{
		"last_synced_at": u.SyncedAt,
		"last_error":     nil,
	}
	if u.StatusChanged() {
		fields["status"] = u.To
		for _, st := range u.Path {
			switch st {
			case models.SupplierOrderStatusShipped:
				fields["shipped_at"] = u.SyncedAt
			case models.SupplierOrderStatusDelivered:
				fields["delivered_at"] = u.SyncedAt
			case models.SupplierOrderStatusCancelled:
				fields["cancelled_at"] = u.SyncedAt
			}
		}
	}
	if u.TrackingNumber != nil {
		fields["tracking_number"] = *u.TrackingNumber
	}
	if u.Carrier != nil {
		fields["carrier"] = *u.Carrier
	}
	if u.TrackingURL != nil {
		fields["tracking_url"] = *u.TrackingURL
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.orderRepo.WithTx(tx).UpdateIfStatus(ctx, so.ID, u.From, fields)
		if err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return nil
		}
		applied = true

		fs, ok := fulfillmentStatus(u.To)
		if !ok || (!u.StatusChanged() && u.TrackingNumber == nil) {
			return nil
		}
		if err := s.platformOrders.WithTx(tx).UpdateItemsFulfillment(ctx, itemIDs(so), fs, u.TrackingNumber); err != nil {
			return errors.ErrDatabaseError.WithError(err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if !applied {
		s.log.Info("供应商订单状态已被修改，跳过本次变更",
			logger.SupplierOrderID(so.ID),
			zap.String("from", u.From),
			zap.String("to", u.To),
		)
		return false, nil
	}
	if u.StatusChanged() {
		s.log.Info("供应商订单状态已更新",
			logger.SupplierOrderID(so.ID),
			zap.String("from", u.From),
			zap.String("to", u.To),
			zap.Strings("path", u.Path),
		)
	}
	return true, nil
}

// notifyShipment 发货通知，失败只记录日志
func (s *SyncService) notifyShipment(ctx context.Context, so *models.SupplierOrder, u OrderUpdate) bool {
	if s.notifier == nil || so.Supplier == nil || !so.Supplier.NotifyCustomerOnShipment {
		return false
	}
	if so.Order == nil {
		return false
	}
	phone := utils.SafeString(so.Order.CustomerPhone)
	if phone == "" {
		return false
	}

	notice := ShipmentNotice{
		OrderID:        so.OrderID,
		OrderNo:        so.Order.OrderNo,
		Phone:          phone,
		Carrier:        pick(u.Carrier, so.Carrier),
		TrackingNumber: pick(u.TrackingNumber, so.TrackingNumber),
		TrackingURL:    pick(u.TrackingURL, so.TrackingURL),
	}
	if err := s.notifier.NotifyShipment(ctx, notice); err != nil {
		s.log.Warn("发货通知发送失败",
			logger.SupplierOrderID(so.ID),
			logger.OrderID(so.OrderID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func pick(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

// GetSupplierOrder 获取供应商订单
func (s *SyncService) GetSupplierOrder(ctx context.Context, id int64) (*models.SupplierOrder, error) {
	so, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrSupplierOrderNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return so, nil
}

// ListSupplierOrders 获取平台订单下的供应商订单
func (s *SyncService) ListSupplierOrders(ctx context.Context, orderID int64) ([]*models.SupplierOrder, error) {
	orders, err := s.orderRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return orders, nil
}

// ClearTokens 清空令牌缓存，供应商凭证变更后调用
func (s *SyncService) ClearTokens(ctx context.Context) error {
	if err := s.tokens.Clear(ctx); err != nil {
		return errors.ErrCacheError.WithError(err)
	}
	return nil
}
