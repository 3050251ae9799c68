package payout

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/dumeirei/marketplace-commission/internal/models"
	"github.com/dumeirei/marketplace-commission/pkg/oss"
)

// StatementStore 打款对账单归档
type StatementStore interface {
	Save(ctx context.Context, payout *models.Payout, records []*models.CommissionRecord) (string, error)
}

// OSSStatementStore 将对账单以 CSV 上传到对象存储
type OSSStatementStore struct {
	uploader oss.Uploader
	prefix   string
}

// NewOSSStatementStore 创建对账单归档
func NewOSSStatementStore(uploader oss.Uploader, prefix string) *OSSStatementStore {
	return &OSSStatementStore{uploader: uploader, prefix: prefix}
}

// Save 生成并上传对账单，返回访问地址
func (s *OSSStatementStore) Save(ctx context.Context, payout *models.Payout, records []*models.CommissionRecord) (string, error) {
	data, err := BuildStatementCSV(payout, records)
	if err != nil {
		return "", err
	}
	key := oss.StatementKey(s.prefix, payout.VendorID, payout.PayoutNo, payout.PeriodStart)
	return s.uploader.Upload(ctx, key, bytes.NewReader(data), oss.ContentTypeCSV)
}

// BuildStatementCSV 生成对账单 CSV，最后一行为合计
func BuildStatementCSV(payout *models.Payout, records []*models.CommissionRecord) ([]byte, error) {
	buf := new(bytes.Buffer)
	// 添加 BOM 以支持 Excel 中文显示
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(buf)

	headers := []string{
		"打款单号", "佣金记录ID", "订单ID", "订单项ID", "销售额", "佣金比例",
		"基础佣金", "绩效奖励", "交易手续费", "商家收入", "币种", "创建时间",
	}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}

	for _, r := range records {
		row := []string{
			payout.PayoutNo,
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.OrderID, 10),
			strconv.FormatInt(r.OrderItemID, 10),
			r.SaleAmount.StringFixed(2),
			r.CommissionRate.String(),
			r.BaseCommission.StringFixed(2),
			r.PerformanceBonus.StringFixed(2),
			r.TransactionFee.StringFixed(2),
			r.CommissionAmount.StringFixed(2),
			r.Currency,
			r.CreatedAt.Format(time.DateTime),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	total := []string{
		payout.PayoutNo, "合计", "", "", "", "", "", "", "",
		payout.Amount.StringFixed(2),
		payout.Currency,
		fmt.Sprintf("%s ~ %s", payout.PeriodStart.Format(time.DateOnly), payout.PeriodEnd.Format(time.DateOnly)),
	}
	if err := writer.Write(total); err != nil {
		return nil, err
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
