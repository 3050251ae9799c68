// Package logger 提供结构化日志功能
package logger

import (
	"errors"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
)

var log *zap.Logger

// Init 初始化全局日志器
// output 为 stdout 时只写标准输出；配置 file_path 且 output 不是 stdout 时写入滚动文件
func Init(cfg *config.LoggerConfig) error {
	var writers []zapcore.WriteSyncer
	if cfg.Output == "stdout" || cfg.Output == "" {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}
	if cfg.FilePath != "" && cfg.Output != "stdout" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}))
	}
	if len(writers) == 0 {
		return errors.New("logger: no output configured")
	}

	log = build(cfg, zapcore.NewMultiWriteSyncer(writers...))
	return nil
}

func build(cfg *config.LoggerConfig, ws zapcore.WriteSyncer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	options := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		options = append(options, zap.AddCaller())
	}
	return zap.New(zapcore.NewCore(encoder, ws, parseLevel(cfg.Level)), options...)
}

// parseLevel 未知级别按 info 处理
func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 获取全局日志器，未初始化时返回开发模式日志器
func GetLogger() *zap.Logger {
	if log == nil {
		log, _ = zap.NewDevelopment()
	}
	return log
}

// Named 返回命名日志器，服务各自以模块名区分
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// Sync 刷新缓冲
func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

// RequestID 请求ID字段
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// UserID 用户ID字段
func UserID(id int64) zap.Field {
	return zap.Int64("user_id", id)
}

// VendorID 商家ID字段
func VendorID(id int64) zap.Field {
	return zap.Int64("vendor_id", id)
}

// OrderID 订单ID字段
func OrderID(id int64) zap.Field {
	return zap.Int64("order_id", id)
}

// OrderItemID 订单项ID字段
func OrderItemID(id int64) zap.Field {
	return zap.Int64("order_item_id", id)
}

// PayoutNo 打款单号字段
func PayoutNo(no string) zap.Field {
	return zap.String("payout_no", no)
}

// SupplierCode 供应商编码字段
func SupplierCode(code string) zap.Field {
	return zap.String("supplier", code)
}

// SupplierOrderID 供应商订单ID字段
func SupplierOrderID(id int64) zap.Field {
	return zap.Int64("supplier_order_id", id)
}

// Currency 币种字段
func Currency(code string) zap.Field {
	return zap.String("currency", code)
}

// Amount 金额字段，固定两位小数
func Amount(amount decimal.Decimal) zap.Field {
	return zap.String("amount", amount.StringFixed(2))
}

// Module 模块字段
func Module(name string) zap.Field {
	return zap.String("module", name)
}

func Latency(d time.Duration) zap.Field {
	return zap.Duration("latency", d)
}

func StatusCode(code int) zap.Field {
	return zap.Int("status_code", code)
}

func Method(method string) zap.Field {
	return zap.String("method", method)
}

func Path(path string) zap.Field {
	return zap.String("path", path)
}

func IP(ip string) zap.Field {
	return zap.String("ip", ip)
}
