package commission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/models"
)

func seedAnalytics(t *testing.T, env *testEnv) *models.Vendor {
	ctx := context.Background()
	vendor := createVendor(t, env, PlanStarter, nil)
	start := env.now

	// 6 天前一笔，今天两笔，40 天前一笔（窗口外）
	env.now = start.Add(-6 * 24 * time.Hour)
	_, err := env.service.Calculate(ctx, vendor.ID, dec("100"), 1, 1)
	require.NoError(t, err)

	env.now = start.Add(-40 * 24 * time.Hour)
	_, err = env.service.Calculate(ctx, vendor.ID, dec("999"), 2, 2)
	require.NoError(t, err)

	env.now = start.Add(-time.Hour)
	_, err = env.service.Calculate(ctx, vendor.ID, dec("200"), 3, 3)
	require.NoError(t, err)

	env.now = start
	_, err = env.service.Calculate(ctx, vendor.ID, dec("50"), 4, 4)
	require.NoError(t, err)
	return vendor
}

func TestCommissionService_GetAnalytics(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	vendor := seedAnalytics(t, env)

	got, err := env.service.GetAnalytics(ctx, vendor.ID, 7, "USD")
	require.NoError(t, err)

	assert.Equal(t, "USD", got.Currency)
	assert.False(t, got.Converted)
	assert.Equal(t, 3, got.RecordCount)
	assert.True(t, got.TotalSales.Equal(dec("350")), "got %s", got.TotalSales)
	// 10% 佣金，3% 手续费
	assert.True(t, got.TotalCommission.Equal(dec("35")))
	assert.True(t, got.TotalFees.Equal(dec("10.5")))
	assert.True(t, got.TotalBonus.IsZero())
	assert.True(t, got.NetEarnings.Equal(dec("24.5")))

	require.Len(t, got.Trend, 7)
	assert.Equal(t, "2026-03-09", got.Trend[0].Date)
	assert.Equal(t, "2026-03-15", got.Trend[6].Date)
	assert.True(t, got.Trend[0].Sales.Equal(dec("100")))
	assert.Equal(t, 1, got.Trend[0].Count)
	assert.True(t, got.Trend[6].Sales.Equal(dec("250")))
	assert.Equal(t, 2, got.Trend[6].Count)
	for _, p := range got.Trend[1:6] {
		assert.True(t, p.Sales.IsZero(), "%s 应补零", p.Date)
		assert.Equal(t, 0, p.Count)
	}
}

func TestCommissionService_GetAnalytics_Currency(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	vendor := seedAnalytics(t, env)

	t.Run("换算为欧元", func(t *testing.T) {
		got, err := env.service.GetAnalytics(ctx, vendor.ID, 7, "eur")
		require.NoError(t, err)
		assert.Equal(t, "EUR", got.Currency)
		assert.True(t, got.Converted)
		assert.True(t, got.TotalSales.Equal(dec("315")), "got %s", got.TotalSales)
		assert.True(t, got.NetEarnings.Equal(dec("22.05")), "got %s", got.NetEarnings)
		assert.True(t, got.Trend[6].Sales.Equal(dec("225")))
	})

	t.Run("日元取整", func(t *testing.T) {
		got, err := env.service.GetAnalytics(ctx, vendor.ID, 7, "JPY")
		require.NoError(t, err)
		assert.Equal(t, "JPY", got.Currency)
		assert.True(t, got.NetEarnings.Equal(dec("3675")))
		for _, p := range got.Trend {
			assert.True(t, p.NetEarnings.Equal(p.NetEarnings.Round(0)))
		}
	})

	t.Run("汇率缺失时保持基准币种", func(t *testing.T) {
		got, err := env.service.GetAnalytics(ctx, vendor.ID, 7, "GBP")
		require.NoError(t, err)
		assert.Equal(t, "USD", got.Currency)
		assert.False(t, got.Converted)
		assert.True(t, got.TotalSales.Equal(dec("350")))
	})

	t.Run("未指定币种使用基准币种", func(t *testing.T) {
		got, err := env.service.GetAnalytics(ctx, vendor.ID, 7, "")
		require.NoError(t, err)
		assert.Equal(t, "USD", got.Currency)
	})
}

func TestCommissionService_GetAnalytics_Window(t *testing.T) {
	env := setupTestEnv(t, nil)
	ctx := context.Background()
	vendor := seedAnalytics(t, env)

	t.Run("单日窗口只统计今天", func(t *testing.T) {
		got, err := env.service.GetAnalytics(ctx, vendor.ID, 1, "USD")
		require.NoError(t, err)
		require.Len(t, got.Trend, 1)
		assert.True(t, got.TotalSales.Equal(dec("250")))
	})

	t.Run("已取消记录不计入", func(t *testing.T) {
		require.NoError(t, env.db.Model(&models.CommissionRecord{}).
			Where("order_item_id = ?", 4).
			Update("status", models.CommissionStatusCancelled).Error)
		got, err := env.service.GetAnalytics(ctx, vendor.ID, 1, "USD")
		require.NoError(t, err)
		assert.True(t, got.TotalSales.Equal(dec("200")))
	})

	t.Run("窗口天数不合法", func(t *testing.T) {
		for _, days := range []int{0, -1, 366} {
			_, err := env.service.GetAnalytics(ctx, vendor.ID, days, "USD")
			assert.True(t, errors.Is(err, errors.ErrInvalidInput), "days=%d", days)
		}
	})

	t.Run("无记录的商家返回零", func(t *testing.T) {
		empty := createVendor(t, env, PlanStarter, nil)
		got, err := env.service.GetAnalytics(ctx, empty.ID, 30, "EUR")
		require.NoError(t, err)
		assert.True(t, got.TotalSales.IsZero())
		assert.Len(t, got.Trend, 30)
	})
}
