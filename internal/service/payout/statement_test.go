package payout

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-commission/internal/models"
)

func TestBuildStatementCSV(t *testing.T) {
	payout := &models.Payout{
		PayoutNo:    "PO20260308000000123456",
		VendorID:    7,
		Amount:      decimal.RequireFromString("20"),
		Currency:    "USD",
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	records := []*models.CommissionRecord{
		{
			ID: 1, OrderID: 10, OrderItemID: 100,
			SaleAmount:       decimal.RequireFromString("125"),
			CommissionRate:   decimal.RequireFromString("0.1"),
			BaseCommission:   decimal.RequireFromString("12.5"),
			PerformanceBonus: decimal.Zero,
			TransactionFee:   decimal.Zero,
			CommissionAmount: decimal.RequireFromString("12.5"),
			Currency:         "USD",
			CreatedAt:        time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC),
		},
		{
			ID: 2, OrderID: 11, OrderItemID: 101,
			SaleAmount:       decimal.RequireFromString("75"),
			CommissionRate:   decimal.RequireFromString("0.1"),
			BaseCommission:   decimal.RequireFromString("7.5"),
			PerformanceBonus: decimal.Zero,
			TransactionFee:   decimal.Zero,
			CommissionAmount: decimal.RequireFromString("7.5"),
			Currency:         "USD",
			CreatedAt:        time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		},
	}

	data, err := BuildStatementCSV(payout, records)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))

	rows, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "打款单号", rows[0][0])
	assert.Equal(t, []string{
		"PO20260308000000123456", "1", "10", "100", "125.00", "0.1",
		"12.50", "0.00", "0.00", "12.50", "USD", "2026-03-02 08:30:00",
	}, rows[1])
	assert.Equal(t, "7.50", rows[2][9])

	total := rows[3]
	assert.Equal(t, "合计", total[1])
	assert.Equal(t, "20.00", total[9])
	assert.Equal(t, "2026-03-01 ~ 2026-03-08", total[11])
}

func TestBuildStatementCSV_Empty(t *testing.T) {
	payout := &models.Payout{PayoutNo: "PO1", Amount: decimal.Zero, Currency: "USD", PeriodStart: periodStart, PeriodEnd: periodEnd}

	data, err := BuildStatementCSV(payout, nil)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
