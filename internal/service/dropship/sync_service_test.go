package dropship

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/marketplace-commission/internal/common/cache"
	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/database"
	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/models"
	"github.com/dumeirei/marketplace-commission/internal/repository"
	"github.com/dumeirei/marketplace-commission/pkg/sms"
	"github.com/dumeirei/marketplace-commission/pkg/supplier"
)

// fakeClient 记录调用并返回预设结果的供应商客户端
type fakeClient struct {
	mu          sync.Mutex
	authCalls   int
	submitCalls int
	statusCalls int
	authErr     error
	submitErr   error
	statuses    map[string]*supplier.OrderStatus
	statusErrs  map[string]error
	submitted   []*supplier.SubmitOrderRequest
	expiresAt   time.Time
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		statuses:   make(map[string]*supplier.OrderStatus),
		statusErrs: make(map[string]error),
		expiresAt:  baseTime.Add(time.Hour),
	}
}

func (c *fakeClient) Authenticate(ctx context.Context) (*supplier.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authCalls++
	if c.authErr != nil {
		return nil, c.authErr
	}
	return &supplier.Token{AccessToken: fmt.Sprintf("tok-%d", c.authCalls), ExpiresAt: c.expiresAt}, nil
}

func (c *fakeClient) SubmitOrder(ctx context.Context, token string, req *supplier.SubmitOrderRequest) (*supplier.SubmitOrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitCalls++
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	c.submitted = append(c.submitted, req)
	return &supplier.SubmitOrderResult{ExternalOrderID: "EXT-" + req.OrderNumber}, nil
}

func (c *fakeClient) GetOrderStatus(ctx context.Context, token, externalOrderID string) (*supplier.OrderStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	if err, ok := c.statusErrs[externalOrderID]; ok {
		return nil, err
	}
	if st, ok := c.statuses[externalOrderID]; ok {
		cp := *st
		return &cp, nil
	}
	return &supplier.OrderStatus{Status: "PROCESSING"}, nil
}

type syncEnv struct {
	db             *gorm.DB
	suppliers      *repository.SupplierRepository
	supplierOrders *repository.SupplierOrderRepository
	orders         *repository.OrderRepository
	client         *fakeClient
	tokens         *MemoryTokenCache
	gate           *RateLimitGate
	sender         *sms.MockSender
	svc            *SyncService
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func setupSyncEnv(t *testing.T) *syncEnv {
	db := setupTestDB(t)
	env := &syncEnv{
		db:             db,
		suppliers:      repository.NewSupplierRepository(db),
		supplierOrders: repository.NewSupplierOrderRepository(db),
		orders:         repository.NewOrderRepository(db),
		client:         newFakeClient(),
		tokens:         NewMemoryTokenCache(),
		gate: NewRateLimitGate(nil, &config.DropshipConfig{
			AuthMinInterval:   300,
			DataRatePerSecond: 1000,
			DataBurst:         100,
		}),
		sender: sms.NewMockSender(),
	}
	env.svc = NewSyncService(db, env.suppliers, env.supplierOrders, env.orders, env.gate, env.tokens,
		func(s *models.Supplier) (supplier.Client, error) { return env.client, nil })
	env.svc.SetClock(func() time.Time { return baseTime })
	env.svc.SetNotifier(NewSMSShipmentNotifier(env.sender))
	return env
}

func (e *syncEnv) createSupplier(t *testing.T, code string, withCredentials bool) *models.Supplier {
	s := &models.Supplier{
		Code:                     code,
		Name:                     "供应商 " + code,
		NotifyCustomerOnShipment: true,
		Status:                   models.SupplierStatusActive,
	}
	if withCredentials {
		s.APIBaseURL = "https://api.supplier.test/v2"
		s.APIEmail = "ops@example.com"
		s.APIKey = "secret"
	}
	require.NoError(t, e.suppliers.Create(context.Background(), s))
	return s
}

var orderSeq int

// createOrder 创建订单，每个 supplierIDs 元素生成一个代发货订单项，0 表示商家自发货商品
func (e *syncEnv) createOrder(t *testing.T, supplierIDs ...int64) *models.Order {
	orderSeq++
	phone := "13800138000"
	order := &models.Order{
		OrderNo:         fmt.Sprintf("MO2026031000%d", orderSeq),
		CustomerID:      1,
		CustomerName:    "张三",
		CustomerPhone:   &phone,
		ShippingCountry: "CN",
		ShippingCity:    "上海",
		ShippingAddress: "人民路 1 号",
		ShippingZip:     "200000",
		Currency:        "USD",
		TotalAmount:     decimal.NewFromInt(int64(10 * len(supplierIDs))),
		Status:          models.OrderStatusPaid,
	}
	require.NoError(t, e.db.Create(order).Error)

	for i, sid := range supplierIDs {
		product := &models.Product{Name: fmt.Sprintf("商品 %d", i), Price: decimal.NewFromInt(10)}
		if sid != 0 {
			sidCopy := sid
			sku := fmt.Sprintf("SKU-%d-%d", orderSeq, i)
			product.SupplierID = &sidCopy
			product.SupplierSKU = &sku
		}
		require.NoError(t, e.db.Create(product).Error)
		item := &models.OrderItem{
			OrderID:     order.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    i + 1,
			UnitPrice:   decimal.NewFromInt(10),
			SaleAmount:  decimal.NewFromInt(int64(10 * (i + 1))),
		}
		require.NoError(t, e.db.Create(item).Error)
	}
	return order
}

// createSentOrder 直接构造已提交供应商的订单
func (e *syncEnv) createSentOrder(t *testing.T, sup *models.Supplier, externalID string) *models.SupplierOrder {
	order := e.createOrder(t, sup.ID)
	created, err := e.svc.CreateSupplierOrders(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	so := created[0]
	require.NoError(t, e.supplierOrders.UpdateFields(context.Background(), so.ID, map[string]interface{}{
		"status":            models.SupplierOrderStatusSent,
		"external_order_id": externalID,
		"sent_at":           baseTime.Add(-time.Hour),
	}))
	return so
}

func (e *syncEnv) reload(t *testing.T, id int64) *models.SupplierOrder {
	so, err := e.supplierOrders.GetByID(context.Background(), id)
	require.NoError(t, err)
	return so
}

func (e *syncEnv) itemsOf(t *testing.T, orderID int64) []models.OrderItem {
	order, err := e.orders.GetByIDWithItems(context.Background(), orderID)
	require.NoError(t, err)
	return order.Items
}

func TestSyncService_CreateSupplierOrders(t *testing.T) {
	env := setupSyncEnv(t)
	ctx := context.Background()
	a := env.createSupplier(t, "cj", true)
	b := env.createSupplier(t, "zd", true)

	order := env.createOrder(t, a.ID, b.ID, a.ID, 0)

	created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, a.ID, created[0].SupplierID)
	assert.Len(t, created[0].Items, 2)
	assert.Equal(t, b.ID, created[1].SupplierID)
	assert.Len(t, created[1].Items, 1)
	for _, so := range created {
		assert.Equal(t, models.SupplierOrderStatusPending, so.Status)
	}

	t.Run("重复调用返回已有订单", func(t *testing.T) {
		again, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, again, 2)
		assert.Equal(t, created[0].ID, again[0].ID)
		assert.Equal(t, created[1].ID, again[1].ID)

		var count int64
		env.db.Model(&models.SupplierOrder{}).Count(&count)
		assert.Equal(t, int64(2), count)
	})

	t.Run("没有代发货商品", func(t *testing.T) {
		plain := env.createOrder(t, 0)
		got, err := env.svc.CreateSupplierOrders(ctx, plain.ID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("订单不存在", func(t *testing.T) {
		_, err := env.svc.CreateSupplierOrders(ctx, 99999)
		assert.True(t, errors.Is(err, errors.ErrOrderNotFound))
	})

	t.Run("供应商不存在", func(t *testing.T) {
		orphan := env.createOrder(t, 4242)
		_, err := env.svc.CreateSupplierOrders(ctx, orphan.ID)
		assert.True(t, errors.Is(err, errors.ErrSupplierNotFound))
	})
}

func TestSyncService_SubmitOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("提交成功", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		order := env.createOrder(t, sup.ID, sup.ID)
		created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)

		so, err := env.svc.SubmitOrder(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.SupplierOrderStatusSent, so.Status)
		require.NotNil(t, so.ExternalOrderID)
		assert.Equal(t, "EXT-"+order.OrderNo, *so.ExternalOrderID)
		require.NotNil(t, so.SentAt)
		assert.True(t, so.SentAt.Equal(baseTime))
		assert.Nil(t, so.LastError)

		require.Len(t, env.client.submitted, 1)
		req := env.client.submitted[0]
		assert.Equal(t, order.OrderNo, req.OrderNumber)
		assert.Equal(t, "13800138000", req.Phone)
		assert.Equal(t, "CN", req.CountryCode)
		require.Len(t, req.Items, 2)
		assert.Equal(t, 1, req.Items[0].Quantity)
		assert.Equal(t, 2, req.Items[1].Quantity)

		for _, item := range env.itemsOf(t, order.ID) {
			assert.Equal(t, models.FulfillmentProcessing, item.FulfillmentStatus)
		}

		t.Run("重复提交", func(t *testing.T) {
			_, err := env.svc.SubmitOrder(ctx, so.ID)
			assert.True(t, errors.Is(err, errors.ErrSupplierOrderStatus))
			assert.Equal(t, 1, env.client.submitCalls)
		})

		t.Run("复用令牌", func(t *testing.T) {
			other := env.createOrder(t, sup.ID)
			created, err := env.svc.CreateSupplierOrders(ctx, other.ID)
			require.NoError(t, err)
			_, err = env.svc.SubmitOrder(ctx, created[0].ID)
			require.NoError(t, err)
			assert.Equal(t, 1, env.client.authCalls)
		})
	})

	t.Run("订单不存在", func(t *testing.T) {
		env := setupSyncEnv(t)
		_, err := env.svc.SubmitOrder(ctx, 12345)
		assert.True(t, errors.Is(err, errors.ErrSupplierOrderNotFound))
	})

	t.Run("未配置凭证", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "bare", false)
		order := env.createOrder(t, sup.ID)
		created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)

		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		assert.True(t, errors.Is(err, errors.ErrSupplierCredentialsMissing))
		assert.Equal(t, 0, env.client.authCalls)
	})

	t.Run("供应商限流", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		order := env.createOrder(t, sup.ID)
		created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)
		env.client.submitErr = &supplier.ErrThrottled{RetryAfter: 30 * time.Second}

		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		assert.True(t, errors.Is(err, errors.ErrRateLimited))

		so := env.reload(t, created[0].ID)
		assert.Equal(t, models.SupplierOrderStatusPending, so.Status)
		require.NotNil(t, so.LastError)

		// 退避期内不再发出请求
		env.client.submitErr = nil
		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		var limited *RateLimitedError
		require.True(t, stderrors.As(err, &limited))
		assert.True(t, limited.RetryAt.Equal(baseTime.Add(30*time.Second)))
		assert.Equal(t, 1, env.client.submitCalls)

		env.svc.SetClock(func() time.Time { return baseTime.Add(30 * time.Second) })
		so, err = env.svc.SubmitOrder(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.SupplierOrderStatusSent, so.Status)
		assert.Nil(t, so.LastError)
	})

	t.Run("令牌失效", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		order := env.createOrder(t, sup.ID)
		created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)
		env.client.submitErr = supplier.ErrUnauthorized

		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		assert.True(t, errors.Is(err, errors.ErrSupplierUnauthorized))

		_, ok, err := env.tokens.Get(ctx, sup.Code)
		require.NoError(t, err)
		assert.False(t, ok, "令牌应被清除")
	})

	t.Run("鉴权失败", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		order := env.createOrder(t, sup.ID)
		created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)
		env.client.authErr = supplier.ErrUnauthorized

		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		assert.True(t, errors.Is(err, errors.ErrSupplierUnauthorized))
		assert.Equal(t, 0, env.client.submitCalls)

		// 鉴权最小间隔内不再尝试
		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		assert.True(t, errors.Is(err, errors.ErrRateLimited))
		assert.Equal(t, 1, env.client.authCalls)
	})

	t.Run("供应商接口错误", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		order := env.createOrder(t, sup.ID)
		created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)
		env.client.submitErr = &supplier.APIError{StatusCode: 200, Code: 1601, Message: "sku not found"}

		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		assert.True(t, errors.Is(err, errors.ErrExternalService))

		so := env.reload(t, created[0].ID)
		assert.Equal(t, models.SupplierOrderStatusPending, so.Status)
		require.NotNil(t, so.LastError)
		assert.Contains(t, *so.LastError, "sku not found")
	})

	t.Run("正在提交", func(t *testing.T) {
		env := setupSyncEnv(t)
		locker := cache.NewLocker(newRedisClient(t))
		env.svc.SetLocker(locker)
		sup := env.createSupplier(t, "cj", true)
		order := env.createOrder(t, sup.ID)
		created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)

		key := fmt.Sprintf("%s%d", cache.KeyPrefixSupplierLock, created[0].ID)
		token, ok, err := locker.TryLock(ctx, key, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		assert.True(t, errors.Is(err, errors.ErrSupplierOrderBusy))
		assert.Equal(t, 0, env.client.submitCalls)

		require.NoError(t, locker.Release(ctx, key, token))
		_, err = env.svc.SubmitOrder(ctx, created[0].ID)
		assert.NoError(t, err)
	})
}

func TestSyncService_PollOrderUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("发货并通知", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		shipped := env.createSentOrder(t, sup, "EXT-1")
		waiting := env.createSentOrder(t, sup, "EXT-2")
		env.client.statuses["EXT-1"] = &supplier.OrderStatus{Status: "SHIPPED", TrackingNumber: "TN1", Carrier: "DHL"}

		result, err := env.svc.PollOrderUpdates(ctx, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Checked)
		assert.Equal(t, 2, result.Queried)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 1, result.Notified)
		assert.Equal(t, 0, result.Failed)

		so := env.reload(t, shipped.ID)
		assert.Equal(t, models.SupplierOrderStatusShipped, so.Status)
		require.NotNil(t, so.ShippedAt)
		assert.Equal(t, "TN1", *so.TrackingNumber)
		assert.Equal(t, "DHL", *so.Carrier)
		for _, item := range env.itemsOf(t, shipped.OrderID) {
			assert.Equal(t, models.FulfillmentShipped, item.FulfillmentStatus)
			require.NotNil(t, item.TrackingNumber)
			assert.Equal(t, "TN1", *item.TrackingNumber)
		}

		unchanged := env.reload(t, waiting.ID)
		assert.Equal(t, models.SupplierOrderStatusSent, unchanged.Status)
		require.NotNil(t, unchanged.LastSyncedAt)

		msg := env.sender.Last()
		require.NotNil(t, msg)
		assert.Equal(t, "13800138000", msg.Phone)
		assert.Equal(t, "TN1", msg.Params["tracking_number"])

		t.Run("送达后不再通知", func(t *testing.T) {
			env.client.statuses["EXT-1"] = &supplier.OrderStatus{Status: "DELIVERED", TrackingNumber: "TN1", Carrier: "DHL"}
			result, err := env.svc.PollOrderUpdates(ctx, baseTime.Add(time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 1, result.Updated)
			assert.Equal(t, 0, result.Notified)
			assert.Len(t, env.sender.Messages(), 1)

			so := env.reload(t, shipped.ID)
			assert.Equal(t, models.SupplierOrderStatusDelivered, so.Status)
			require.NotNil(t, so.DeliveredAt)
			for _, item := range env.itemsOf(t, shipped.OrderID) {
				assert.Equal(t, models.FulfillmentDelivered, item.FulfillmentStatus)
			}
		})

		t.Run("终态订单不再轮询", func(t *testing.T) {
			calls := env.client.statusCalls
			result, err := env.svc.PollOrderUpdates(ctx, baseTime.Add(2*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 1, result.Checked)
			assert.Equal(t, calls+1, env.client.statusCalls)
		})
	})

	t.Run("跳过状态直接送达", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		so := env.createSentOrder(t, sup, "EXT-1")
		env.client.statuses["EXT-1"] = &supplier.OrderStatus{Status: "DELIVERED"}

		result, err := env.svc.PollOrderUpdates(ctx, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 1, result.Notified)

		got := env.reload(t, so.ID)
		assert.Equal(t, models.SupplierOrderStatusDelivered, got.Status)
		assert.NotNil(t, got.ShippedAt)
		assert.NotNil(t, got.DeliveredAt)
	})

	t.Run("通知失败不影响同步", func(t *testing.T) {
		env := setupSyncEnv(t)
		env.sender.Err = stderrors.New("sms gateway down")
		sup := env.createSupplier(t, "cj", true)
		so := env.createSentOrder(t, sup, "EXT-1")
		env.client.statuses["EXT-1"] = &supplier.OrderStatus{Status: "SHIPPED", TrackingNumber: "TN1"}

		result, err := env.svc.PollOrderUpdates(ctx, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 0, result.Notified)
		assert.Equal(t, models.SupplierOrderStatusShipped, env.reload(t, so.ID).Status)
	})

	t.Run("单个订单查询失败", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		broken := env.createSentOrder(t, sup, "EXT-1")
		ok := env.createSentOrder(t, sup, "EXT-2")
		env.client.statusErrs["EXT-1"] = &supplier.APIError{StatusCode: 500, Message: "internal"}
		env.client.statuses["EXT-2"] = &supplier.OrderStatus{Status: "SHIPPED"}

		result, err := env.svc.PollOrderUpdates(ctx, baseTime)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrExternalService))
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, 1, result.Updated)

		require.NotNil(t, env.reload(t, broken.ID).LastError)
		assert.Equal(t, models.SupplierOrderStatusShipped, env.reload(t, ok.ID).Status)
	})

	t.Run("供应商限流跳过剩余订单", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		env.createSentOrder(t, sup, "EXT-1")
		env.createSentOrder(t, sup, "EXT-2")
		env.client.statusErrs["EXT-1"] = &supplier.ErrThrottled{RetryAfter: time.Minute}
		env.client.statusErrs["EXT-2"] = &supplier.ErrThrottled{RetryAfter: time.Minute}

		result, err := env.svc.PollOrderUpdates(ctx, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, 1, env.client.statusCalls)

		// 退避期内不发请求
		result, err = env.svc.PollOrderUpdates(ctx, baseTime.Add(30*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, 1, env.client.statusCalls)
	})

	t.Run("鉴权受限", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		env.createSentOrder(t, sup, "EXT-1")
		require.NoError(t, env.gate.AllowAuth(ctx, sup.Code, baseTime))

		result, err := env.svc.PollOrderUpdates(ctx, baseTime.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 0, env.client.authCalls)
		assert.Equal(t, 0, env.client.statusCalls)
	})

	t.Run("未配置凭证", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		so := env.createSentOrder(t, sup, "EXT-1")
		require.NoError(t, env.db.Model(&models.Supplier{}).Where("id = ?", sup.ID).Update("api_key", "").Error)

		result, err := env.svc.PollOrderUpdates(ctx, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)
		assert.Nil(t, env.reload(t, so.ID).LastSyncedAt)
	})

	t.Run("待提交订单不轮询", func(t *testing.T) {
		env := setupSyncEnv(t)
		sup := env.createSupplier(t, "cj", true)
		order := env.createOrder(t, sup.ID)
		_, err := env.svc.CreateSupplierOrders(ctx, order.ID)
		require.NoError(t, err)

		result, err := env.svc.PollOrderUpdates(ctx, baseTime)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Checked)
	})
}

func TestSyncService_HTTPClient(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	statuses := map[string]string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		write := func(data interface{}) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 200, "message": "ok", "data": data})
		}
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/auth/token":
			write(map[string]interface{}{"access_token": "live", "expires_at": baseTime.Add(time.Hour)})
		case r.Method == http.MethodPost && r.URL.Path == "/orders":
			if r.Header.Get("Authorization") != "Bearer live" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			statuses["S-1"] = "IN_TRANSIT"
			write(map[string]string{"order_id": "S-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/orders/S-1":
			write(map[string]string{"status": statuses["S-1"], "tracking_number": "YT123"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	env := setupSyncEnv(t)
	env.svc.clients = NewHTTPClientFactory(2 * time.Second)
	sup := env.createSupplier(t, "live", true)
	require.NoError(t, env.db.Model(&models.Supplier{}).Where("id = ?", sup.ID).Update("api_base_url", server.URL).Error)

	order := env.createOrder(t, sup.ID)
	created, err := env.svc.CreateSupplierOrders(ctx, order.ID)
	require.NoError(t, err)

	so, err := env.svc.SubmitOrder(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "S-1", *so.ExternalOrderID)

	result, err := env.svc.PollOrderUpdates(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	got := env.reload(t, so.ID)
	assert.Equal(t, models.SupplierOrderStatusShipped, got.Status)
	assert.Equal(t, "YT123", *got.TrackingNumber)
}
