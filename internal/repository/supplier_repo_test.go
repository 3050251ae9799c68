// Package repository 供应商仓储单元测试
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-commission/internal/common/utils"
	"github.com/dumeirei/marketplace-commission/internal/models"
)

func createTestSupplier(t *testing.T, db *gorm.DB, code string) *models.Supplier {
	supplier := &models.Supplier{
		Code:       code,
		Name:       code,
		APIBaseURL: "https://api.example.com",
		APIEmail:   "ops@example.com",
		APIKey:     "secret",
		Status:     models.SupplierStatusActive,
	}
	require.NoError(t, db.Create(supplier).Error)
	return supplier
}

func TestSupplierRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSupplierRepository(db)
	ctx := context.Background()

	s := createTestSupplier(t, db, "cj")
	disabled := createTestSupplier(t, db, "old")
	require.NoError(t, db.Model(disabled).Update("status", models.SupplierStatusDisabled).Error)

	found, err := repo.GetByCode(ctx, "cj")
	require.NoError(t, err)
	assert.Equal(t, s.ID, found.ID)
	assert.True(t, found.HasCredentials())

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "cj", active[0].Code)
}

func TestSupplierOrderRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSupplierOrderRepository(db)
	ctx := context.Background()

	supplier := createTestSupplier(t, db, "cj")
	order := createTestOrder(t, db)

	so := &models.SupplierOrder{
		SupplierID: supplier.ID,
		OrderID:    order.ID,
		Status:     models.SupplierOrderStatusPending,
		Items: []models.SupplierOrderItem{
			{OrderItemID: order.Items[0].ID, SupplierSKU: "SKU-1", Quantity: 2},
		},
	}
	require.NoError(t, repo.Create(ctx, so))

	found, err := repo.GetByID(ctx, so.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Supplier)
	require.NotNil(t, found.Order)
	assert.Equal(t, "cj", found.Supplier.Code)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "SKU-1", found.Items[0].SupplierSKU)

	byOrder, err := repo.GetByOrderAndSupplier(ctx, order.ID, supplier.ID)
	require.NoError(t, err)
	assert.Equal(t, so.ID, byOrder.ID)

	t.Run("同一订单同一供应商只能有一个供应商订单", func(t *testing.T) {
		dup := &models.SupplierOrder{SupplierID: supplier.ID, OrderID: order.ID, Status: models.SupplierOrderStatusPending}
		assert.ErrorIs(t, repo.Create(ctx, dup), gorm.ErrDuplicatedKey)
	})
}

func TestSupplierOrderRepository_ListPollable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSupplierOrderRepository(db)
	ctx := context.Background()

	supplier := createTestSupplier(t, db, "cj")
	synced := time.Now().UTC().Add(-time.Hour)

	statuses := []struct {
		status   string
		external *string
		synced   *time.Time
	}{
		{models.SupplierOrderStatusPending, nil, nil},
		{models.SupplierOrderStatusSent, utils.StringPtr("EXT-1"), &synced},
		{models.SupplierOrderStatusShipped, utils.StringPtr("EXT-2"), nil},
		{models.SupplierOrderStatusFailed, utils.StringPtr("EXT-3"), nil},
		{models.SupplierOrderStatusDelivered, utils.StringPtr("EXT-4"), nil},
		{models.SupplierOrderStatusCancelled, utils.StringPtr("EXT-5"), nil},
	}
	for i, s := range statuses {
		so := &models.SupplierOrder{
			SupplierID:      supplier.ID,
			OrderID:         int64(i + 1),
			Status:          s.status,
			ExternalOrderID: s.external,
			LastSyncedAt:    s.synced,
		}
		require.NoError(t, repo.Create(ctx, so))
	}

	list, err := repo.ListPollable(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	// 从未同步过的优先
	assert.Equal(t, "EXT-2", utils.SafeString(list[0].ExternalOrderID))
	assert.Equal(t, "EXT-3", utils.SafeString(list[1].ExternalOrderID))
	assert.Equal(t, "EXT-1", utils.SafeString(list[2].ExternalOrderID))
	assert.NotNil(t, list[0].Supplier)

	limited, err := repo.ListPollable(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSupplierOrderRepository_UpdateIfStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSupplierOrderRepository(db)
	ctx := context.Background()

	supplier := createTestSupplier(t, db, "cj")
	so := &models.SupplierOrder{SupplierID: supplier.ID, OrderID: 1, Status: models.SupplierOrderStatusPending}
	require.NoError(t, repo.Create(ctx, so))

	ok, err := repo.UpdateIfStatus(ctx, so.ID, models.SupplierOrderStatusPending, map[string]interface{}{
		"status":            models.SupplierOrderStatusSent,
		"external_order_id": "EXT-9",
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateIfStatus(ctx, so.ID, models.SupplierOrderStatusPending, map[string]interface{}{
		"status": models.SupplierOrderStatusSent,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.UpdateFields(ctx, so.ID, map[string]interface{}{"last_error": "timeout"}))
	found, err := repo.GetByID(ctx, so.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SupplierOrderStatusSent, found.Status)
	assert.Equal(t, "EXT-9", utils.SafeString(found.ExternalOrderID))
	assert.Equal(t, "timeout", utils.SafeString(found.LastError))
}
