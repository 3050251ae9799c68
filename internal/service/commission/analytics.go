package commission

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/common/utils"
	"github.com/dumeirei/marketplace-commission/internal/service/currency"
)

// 统计窗口范围（天）
const (
	MinAnalyticsWindowDays = 1
	MaxAnalyticsWindowDays = 365
)

// TrendPoint 每日趋势
type TrendPoint struct {
	Date        string          `json:"date"`
	Sales       decimal.Decimal `json:"sales"`
	NetEarnings decimal.Decimal `json:"net_earnings"`
	Count       int             `json:"count"`
}

// Analytics 商家收入统计
type Analytics struct {
	VendorID        int64           `json:"vendor_id"`
	WindowDays      int             `json:"window_days"`
	Currency        string          `json:"currency"`
	Converted       bool            `json:"converted"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	TotalBonus      decimal.Decimal `json:"total_bonus"`
	NetEarnings     decimal.Decimal `json:"net_earnings"`
	RecordCount     int             `json:"record_count"`
	Trend           []TrendPoint    `json:"trend"`
}

// GetAnalytics 统计商家最近 windowDays 天（含今天）的收入并换算币种
// 已取消的记录不计入
func (s *CommissionService) GetAnalytics(ctx context.Context, vendorID int64, windowDays int, target string) (*Analytics, error) {
	if windowDays < MinAnalyticsWindowDays || windowDays > MaxAnalyticsWindowDays {
		return nil, errors.ErrInvalidInput.WithMessage("统计天数必须在1到365之间")
	}
	target = currency.NormalizeCode(target)
	if target == "" {
		target = s.baseCurrency
	}

	now := s.now()
	today := utils.StartOfDay(now)
	start := today.AddDate(0, 0, -(windowDays - 1))
	end := today.AddDate(0, 0, 1)

	records, err := s.recordRepo.ListForWindow(ctx, vendorID, start, end)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	trend := make([]TrendPoint, windowDays)
	index := make(map[string]int, windowDays)
	for i := 0; i < windowDays; i++ {
		key := utils.DayKey(start.AddDate(0, 0, i))
		trend[i] = TrendPoint{Date: key, Sales: decimal.Zero, NetEarnings: decimal.Zero}
		index[key] = i
	}

	sales, commission, fees, bonus, net := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, r := range records {
		sales = sales.Add(r.SaleAmount)
		commission = commission.Add(r.BaseCommission)
		fees = fees.Add(r.TransactionFee)
		bonus = bonus.Add(r.PerformanceBonus)
		net = net.Add(r.CommissionAmount)

		if i, ok := index[utils.DayKey(r.CreatedAt.In(now.Location()))]; ok {
			trend[i].Sales = trend[i].Sales.Add(r.SaleAmount)
			trend[i].NetEarnings = trend[i].NetEarnings.Add(r.CommissionAmount)
			trend[i].Count++
		}
	}

	result := &Analytics{
		VendorID:    vendorID,
		WindowDays:  windowDays,
		Currency:    s.baseCurrency,
		RecordCount: len(records),
		Trend:       trend,
	}

	// 总额与趋势一次换算，保证使用同一汇率
	amounts := make([]decimal.Decimal, 0, 5+2*windowDays)
	amounts = append(amounts, sales, commission, fees, bonus, net)
	for _, p := range trend {
		amounts = append(amounts, p.Sales, p.NetEarnings)
	}
	if target != s.baseCurrency && s.converter != nil {
		rates := s.rateTable(ctx)
		if _, ok := rates.Rate(target); ok {
			result.Currency = target
			result.Converted = true
		}
		amounts = s.converter.ConvertMany(amounts, target, rates)
	}

	result.TotalSales = amounts[0]
	result.TotalCommission = amounts[1]
	result.TotalFees = amounts[2]
	result.TotalBonus = amounts[3]
	result.NetEarnings = amounts[4]
	for i := range result.Trend {
		result.Trend[i].Sales = amounts[5+2*i]
		result.Trend[i].NetEarnings = amounts[6+2*i]
	}
	return result, nil
}

func (s *CommissionService) rateTable(ctx context.Context) currency.RateTable {
	if s.rates == nil {
		return currency.RateTable{}
	}
	rates, err := s.rates.Rates(ctx)
	if err != nil {
		s.log.Warn("获取汇率失败", zap.Error(err), logger.Module("analytics"))
		return currency.RateTable{}
	}
	return rates
}
