//go:build integration

package payout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-commission/internal/common/cache"
	"github.com/dumeirei/marketplace-commission/internal/models"
	"github.com/dumeirei/marketplace-commission/internal/repository"
	"github.com/dumeirei/marketplace-commission/internal/service/commission"
	"github.com/dumeirei/marketplace-commission/internal/testutil"
)

// 多个实例并发生成同一商家打款，Postgres + Redis 下只产生一个批次
func TestPayoutService_Postgres_ConcurrentInstances(t *testing.T) {
	c := testutil.StartContainers(t)
	ctx := context.Background()

	plans, err := commission.NewPlanCatalog(commission.DefaultPlans(), commission.PlanStarter)
	require.NoError(t, err)
	vendorRepo := repository.NewVendorRepository(c.DB)
	env := &testEnv{
		db:         c.DB,
		vendorRepo: vendorRepo,
		recordRepo: repository.NewCommissionRecordRepository(c.DB),
		payoutRepo: repository.NewPayoutRepository(c.DB),
		settings: commission.NewSettingsService(
			repository.NewCommissionSettingsRepository(c.DB), vendorRepo, plans, nil),
	}

	vendor := env.createVendor(t, 50)
	for i := 0; i < 10; i++ {
		env.addRecord(t, vendor.ID, "20", models.CommissionStatusPending, periodStart.Add(time.Duration(i)*time.Hour))
	}

	const instances = 4
	var wg sync.WaitGroup
	results := make([]*models.Payout, instances)
	errs := make([]error, instances)
	for i := 0; i < instances; i++ {
		svc := env.newService(cache.NewLocker(c.Redis))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GeneratePayout(ctx, vendor.ID, periodStart, periodEnd)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] != nil {
			created++
			assert.True(t, results[i].Amount.Equal(decimal.NewFromInt(200)))
		}
	}
	assert.Equal(t, 1, created)

	var paid int64
	require.NoError(t, c.DB.Model(&models.CommissionRecord{}).
		Where("vendor_id = ? AND status = ?", vendor.ID, models.CommissionStatusPaid).
		Count(&paid).Error)
	assert.Equal(t, int64(10), paid)
}
