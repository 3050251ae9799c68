// Package utils 提供通用工具函数
package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

const (
	serialTimeLayout = "20060102150405"
	serialRandDigits = 6

	defaultPageSize = 10
	maxPageSize     = 100
)

// GenerateSerialNo 生成业务单号：前缀 + UTC 年月日时分秒 + 6 位随机数
// 时间取调用方的时钟，便于测试中固定
func GenerateSerialNo(prefix string, at time.Time) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(serialTimeLayout) + serialRandDigits)
	b.WriteString(prefix)
	b.WriteString(at.UTC().Format(serialTimeLayout))
	b.WriteString(RandomDigits(serialRandDigits))
	return b.String()
}

// RandomDigits 生成指定长度的随机数字串
func RandomDigits(n int) string {
	buf := make([]byte, n)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			panic(err)
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf)
}

// StartOfDay 返回 t 所在日期的零点（保留时区）
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayKey 返回日期键 2006-01-02
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// StringPtr 返回字符串指针
func StringPtr(s string) *string {
	return &s
}

// SafeString nil 返回空串
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Pagination 分页参数
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// Normalize 页码从 1 开始，每页默认 10 条，最多 100 条
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

// GetOffset 获取偏移量
func (p Pagination) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit 获取限制数
func (p Pagination) GetLimit() int {
	return p.PageSize
}
