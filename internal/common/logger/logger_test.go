package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
)

// resetLogger 测试结束后恢复全局日志器
func resetLogger(t *testing.T) {
	prev := log
	t.Cleanup(func() { log = prev })
}

func TestInit(t *testing.T) {
	t.Run("标准输出", func(t *testing.T) {
		resetLogger(t)
		require.NoError(t, Init(&config.LoggerConfig{Level: "debug", Format: "console", Output: "stdout"}))
		assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("写入文件", func(t *testing.T) {
		resetLogger(t)
		path := filepath.Join(t.TempDir(), "app.log")
		require.NoError(t, Init(&config.LoggerConfig{Level: "info", Format: "json", Output: "file", FilePath: path, MaxSize: 1}))

		GetLogger().Info("打款批次已生成", PayoutNo("PO1"))
		require.NoError(t, Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"payout_no":"PO1"`)
	})

	t.Run("没有可用输出", func(t *testing.T) {
		resetLogger(t)
		err := Init(&config.LoggerConfig{Output: "file"})
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestBuild_JSON(t *testing.T) {
	buf := &zaptest.Buffer{}
	l := build(&config.LoggerConfig{Level: "info", Format: "json"}, buf)

	l.Debug("不应输出")
	l.Named("payout").Info("佣金已结算",
		VendorID(42),
		Amount(decimal.RequireFromString("12.3456")),
		Currency("USD"),
		Latency(1500*time.Millisecond),
	)

	lines := buf.Lines()
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "payout", entry["logger"])
	assert.Equal(t, "佣金已结算", entry["msg"])
	assert.EqualValues(t, 42, entry["vendor_id"])
	assert.Equal(t, "12.35", entry["amount"])
	assert.Equal(t, "USD", entry["currency"])
	assert.EqualValues(t, 1500, entry["latency"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}$`, entry["time"])
}

func TestBuild_Console(t *testing.T) {
	buf := &zaptest.Buffer{}
	l := build(&config.LoggerConfig{Level: "warn"}, buf)

	l.Info("过滤")
	l.Warn("供应商限流", SupplierCode("cj"), SupplierOrderID(7))

	lines := buf.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "WARN")
	assert.Contains(t, lines[0], `"supplier": "cj"`)
	assert.Contains(t, lines[0], `"supplier_order_id": 7`)
}

func TestGetLogger_LazyInit(t *testing.T) {
	resetLogger(t)
	log = nil

	l := GetLogger()
	require.NotNil(t, l)
	assert.Same(t, l, GetLogger())
}

func TestSync_Uninitialized(t *testing.T) {
	resetLogger(t)
	log = nil
	assert.NoError(t, Sync())
}

func TestFieldKeys(t *testing.T) {
	fields := map[string]zap.Field{
		"request_id":        RequestID("r1"),
		"user_id":           UserID(1),
		"order_id":          OrderID(2),
		"order_item_id":     OrderItemID(3),
		"module":            Module("analytics"),
		"status_code":       StatusCode(200),
		"method":            Method("GET"),
		"path":              Path("/api/v1/vendor/payouts"),
		"ip":                IP("127.0.0.1"),
		"supplier_order_id": SupplierOrderID(4),
	}
	for key, f := range fields {
		assert.Equal(t, key, f.Key)
	}
}
