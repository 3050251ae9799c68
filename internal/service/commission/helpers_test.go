package commission

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/crypto"
	"github.com/dumeirei/marketplace-commission/internal/common/database"
	"github.com/dumeirei/marketplace-commission/internal/models"
	"github.com/dumeirei/marketplace-commission/internal/repository"
	"github.com/dumeirei/marketplace-commission/internal/service/currency"
)

// 测试固定时间
var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db         *gorm.DB
	vendorRepo *repository.VendorRepository
	recordRepo *repository.CommissionRecordRepository
	orderRepo  *repository.OrderRepository
	settings   *SettingsService
	plans      *PlanCatalog
	service    *CommissionService
	now        time.Time
}

// setupTestDB 创建测试数据库
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

func setupTestEnv(t *testing.T, cipher crypto.FieldCipher) *testEnv {
	db := setupTestDB(t)

	plans, err := NewPlanCatalog(DefaultPlans(), PlanStarter)
	require.NoError(t, err)

	env := &testEnv{
		db:         db,
		vendorRepo: repository.NewVendorRepository(db),
		recordRepo: repository.NewCommissionRecordRepository(db),
		orderRepo:  repository.NewOrderRepository(db),
		plans:      plans,
		now:        testNow,
	}
	env.settings = NewSettingsService(
		repository.NewCommissionSettingsRepository(db),
		env.vendorRepo,
		plans,
		cipher,
	)
	env.service = NewCommissionService(
		env.recordRepo,
		env.orderRepo,
		env.vendorRepo,
		env.settings,
		plans,
		NewRateResolver(nil),
	)

	curCfg := &config.CurrencyConfig{
		Base:        "USD",
		Rates:       map[string]float64{"eur": 0.9, "jpy": 150},
		ZeroDecimal: []string{"JPY"},
	}
	env.service.SetCurrency("USD", currency.NewStaticRateProvider(curCfg), currency.NewConverter(curCfg, nil))
	env.service.SetClock(func() time.Time { return env.now })
	return env
}

// advance 推进测试时钟
func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func createVendor(t *testing.T, env *testEnv, planCode string, score *decimal.Decimal) *models.Vendor {
	vendor := &models.Vendor{
		Name:             "测试商家",
		Role:             models.RoleVendor,
		Status:           models.VendorStatusActive,
		PlanCode:         planCode,
		PerformanceScore: score,
	}
	require.NoError(t, env.vendorRepo.Create(context.Background(), vendor))
	return vendor
}

func setTiers(t *testing.T, env *testEnv, vendorID int64, defaultRate float64, tiers ...TierRequest) {
	req := &UpdateSettingsRequest{DefaultCommissionRate: &defaultRate, Tiers: tiers}
	if tiers == nil {
		req.Tiers = []TierRequest{}
	}
	_, err := env.settings.Update(context.Background(), vendorID, req)
	require.NoError(t, err)
}

func createOrder(t *testing.T, env *testEnv, items ...models.OrderItem) *models.Order {
	order := &models.Order{
		OrderNo:      "ORD" + time.Now().Format("150405.000000000"),
		CustomerID:   1,
		CustomerName: "张三",
		Currency:     "USD",
		Status:       models.OrderStatusPaid,
		Items:        items,
	}
	for _, item := range items {
		order.TotalAmount = order.TotalAmount.Add(item.SaleAmount)
	}
	require.NoError(t, env.db.Create(order).Error)
	return order
}

func orderItem(vendorID *int64, sale string) models.OrderItem {
	return models.OrderItem{
		ProductID:   1,
		VendorID:    vendorID,
		ProductName: "测试商品",
		Quantity:    1,
		UnitPrice:   dec(sale),
		SaleAmount:  dec(sale),
	}
}

func countRecords(t *testing.T, db *gorm.DB) int64 {
	var count int64
	require.NoError(t, db.Model(&models.CommissionRecord{}).Count(&count).Error)
	return count
}
