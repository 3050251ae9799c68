// Package database 提供数据库连接和迁移
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/models"
)

const pingTimeout = 5 * time.Second

var db *gorm.DB

// Init 初始化数据库连接
// driver 为 sqlite 时 name 作为数据库文件路径，仅用于本地调试
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   newGormLogger(cfg),
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              cfg.Driver != "sqlite",
		// 唯一索引冲突转换为 gorm.ErrDuplicatedKey，佣金幂等依赖这一点
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db = gdb
	return db, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// zapWriter 将 GORM 日志写入 zap
type zapWriter struct {
	sugar *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.sugar.Infof(format, args...)
}

func newGormLogger(cfg *config.DatabaseConfig) gormlogger.Interface {
	return gormlogger.New(
		zapWriter{sugar: logger.Named("gorm").Sugar()},
		gormlogger.Config{
			SlowThreshold:             time.Duration(cfg.SlowThreshold) * time.Millisecond,
			LogLevel:                  logLevel(cfg.LogMode),
			IgnoreRecordNotFoundError: true,
		},
	)
}

// logLevel 关闭 SQL 日志时仍记录慢查询
func logLevel(logMode bool) gormlogger.LogLevel {
	if logMode {
		return gormlogger.Info
	}
	return gormlogger.Warn
}

// Close 关闭数据库连接
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&models.Vendor{},
		&models.CommissionSettings{},
		&models.CommissionRecord{},
		&models.Payout{},
		&models.Order{},
		&models.OrderItem{},
		&models.Product{},
		&models.Supplier{},
		&models.SupplierOrder{},
		&models.SupplierOrderItem{},
	}
}

// AutoMigrate 自动迁移表结构
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
