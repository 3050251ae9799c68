// Package config 提供应用配置管理功能
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Crypto     CryptoConfig     `mapstructure:"crypto"`
	SMS        SMSConfig        `mapstructure:"sms"`
	OSS        OSSConfig        `mapstructure:"oss"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Commission CommissionConfig `mapstructure:"commission"`
	Plans      PlansConfig      `mapstructure:"plans"`
	Currency   CurrencyConfig   `mapstructure:"currency"`
	Payout     PayoutConfig     `mapstructure:"payout"`
	Dropship   DropshipConfig   `mapstructure:"dropship"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Name            string `mapstructure:"name"`
	Mode            string `mapstructure:"mode"`
	Port            int    `mapstructure:"port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogMode         bool   `mapstructure:"log_mode"`
	SlowThreshold   int    `mapstructure:"slow_threshold"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Addr 返回 Redis 地址
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig JWT配置
// 令牌由外部认证服务签发，本服务只做校验
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
	Leeway int    `mapstructure:"leeway"` // 秒
}

// CryptoConfig 加密配置
type CryptoConfig struct {
	AESKey string `mapstructure:"aes_key"`
}

// SMSConfig 短信配置
type SMSConfig struct {
	Provider        string `mapstructure:"provider"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	SignName        string `mapstructure:"sign_name"`
	TemplateID      string `mapstructure:"template_id"`
}

// OSSConfig 对象存储配置
type OSSConfig struct {
	Provider        string `mapstructure:"provider"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
	CustomDomain    string `mapstructure:"custom_domain"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// CommissionConfig 佣金配置
type CommissionConfig struct {
	DefaultRate          float64                 `mapstructure:"default_rate"`
	TrailingWindowDays   int                     `mapstructure:"trailing_window_days"`
	DefaultMinimumPayout *float64                `mapstructure:"default_minimum_payout"` // 0 表示任意正余额都打款
	DefaultPaymentMethod string                  `mapstructure:"default_payment_method"`
	PerformanceSteps     []PerformanceStepConfig `mapstructure:"performance_steps"`
	Concurrency          int                     `mapstructure:"concurrency"`
}

// TrailingWindow 返回滚动销售额统计窗口
func (c *CommissionConfig) TrailingWindow() time.Duration {
	return time.Duration(c.TrailingWindowDays) * 24 * time.Hour
}

// PerformanceStepConfig 绩效奖励阶梯
type PerformanceStepConfig struct {
	MinScore  float64 `mapstructure:"min_score"`
	BonusRate float64 `mapstructure:"bonus_rate"`
}

// PlansConfig 商家套餐配置
type PlansConfig struct {
	DefaultPlan string       `mapstructure:"default_plan"`
	Items       []PlanConfig `mapstructure:"items"`
}

// PlanConfig 单个套餐
type PlanConfig struct {
	Code               string  `mapstructure:"code"`
	Name               string  `mapstructure:"name"`
	MonthlyFee         float64 `mapstructure:"monthly_fee"`
	TransactionFeeType string  `mapstructure:"transaction_fee_type"`
	TransactionFee     float64 `mapstructure:"transaction_fee"`
	MaxCommissionRate  float64 `mapstructure:"max_commission_rate"`
}

// CurrencyConfig 汇率配置
// viper 会把 map 的键转为小写，使用方需要自行转为大写
type CurrencyConfig struct {
	Base        string             `mapstructure:"base"`
	Rates       map[string]float64 `mapstructure:"rates"`
	ZeroDecimal []string           `mapstructure:"zero_decimal"`
	RedisKey    string             `mapstructure:"redis_key"`
}

// PayoutConfig 打款配置
type PayoutConfig struct {
	CycleDays    int    `mapstructure:"cycle_days"`
	LockTTL      int    `mapstructure:"lock_ttl"`
	LockWait     int    `mapstructure:"lock_wait"`
	StatementDir string `mapstructure:"statement_dir"`
}

// CycleInterval 返回定时打款的间隔
func (p *PayoutConfig) CycleInterval() time.Duration {
	return time.Duration(p.CycleDays) * 24 * time.Hour
}

// LockTTLDuration 返回打款锁过期时间
func (p *PayoutConfig) LockTTLDuration() time.Duration {
	return time.Duration(p.LockTTL) * time.Second
}

// LockWaitDuration 返回等待打款锁的最长时间
func (p *PayoutConfig) LockWaitDuration() time.Duration {
	return time.Duration(p.LockWait) * time.Second
}

// DropshipConfig 代发货同步配置
type DropshipConfig struct {
	HTTPTimeout       int     `mapstructure:"http_timeout"`
	PollInterval      int     `mapstructure:"poll_interval"`
	AuthMinInterval   int     `mapstructure:"auth_min_interval"`
	DataRatePerSecond float64 `mapstructure:"data_rate_per_second"`
	DataBurst         int     `mapstructure:"data_burst"`
	TokenExpirySkew   int     `mapstructure:"token_expiry_skew"`
	BatchSize         int     `mapstructure:"batch_size"`
}

// HTTPTimeoutDuration 返回供应商接口超时时间
func (d *DropshipConfig) HTTPTimeoutDuration() time.Duration {
	return time.Duration(d.HTTPTimeout) * time.Second
}

// PollIntervalDuration 返回轮询间隔
func (d *DropshipConfig) PollIntervalDuration() time.Duration {
	return time.Duration(d.PollInterval) * time.Second
}

// AuthMinIntervalDuration 返回两次鉴权之间的最小间隔
func (d *DropshipConfig) AuthMinIntervalDuration() time.Duration {
	return time.Duration(d.AuthMinInterval) * time.Second
}

// TokenExpirySkewDuration 返回令牌提前过期时间
func (d *DropshipConfig) TokenExpirySkewDuration() time.Duration {
	return time.Duration(d.TokenExpirySkew) * time.Second
}

// defaultJWTSecret 仅用于本地开发，release 模式下禁止使用
const defaultJWTSecret = "your-super-secret-key-change-in-production"

// Load 加载配置：默认值 < 配置文件 < 环境变量，加载后校验
// configPath 为空时依次在 ./configs 和当前目录查找 config.yaml
func Load(configPath string) (*Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回仅包含默认值的配置
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	_ = v.Unmarshal(cfg)
	return cfg
}

// Validate 校验配置，返回全部问题
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port out of range: %d", c.Server.Port)
	check(c.Database.Driver == "postgres" || c.Database.Driver == "sqlite",
		"database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	if c.IsRelease() {
		check(c.JWT.Secret != defaultJWTSecret, "jwt.secret must be changed in release mode")
	}
	if c.Crypto.AESKey != "" {
		n := len(c.Crypto.AESKey)
		check(n == 16 || n == 24 || n == 32, "crypto.aes_key must be 16, 24 or 32 bytes, got %d", n)
	}

	check(c.Commission.DefaultRate >= 0 && c.Commission.DefaultRate <= 1,
		"commission.default_rate must be within [0, 1], got %v", c.Commission.DefaultRate)
	check(c.Commission.TrailingWindowDays > 0, "commission.trailing_window_days must be positive")
	check(c.Commission.DefaultMinimumPayout == nil || *c.Commission.DefaultMinimumPayout >= 0,
		"commission.default_minimum_payout must not be negative")

	plans := make(map[string]struct{}, len(c.Plans.Items))
	for _, p := range c.Plans.Items {
		plans[p.Code] = struct{}{}
		check(p.TransactionFeeType == "flat" || p.TransactionFeeType == "percentage",
			"plan %s: unknown transaction_fee_type %q", p.Code, p.TransactionFeeType)
	}
	if _, ok := plans[c.Plans.DefaultPlan]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("plans.default_plan %q is not defined", c.Plans.DefaultPlan))
	}

	check(c.Currency.Base != "", "currency.base is required")
	check(c.Payout.CycleDays > 0, "payout.cycle_days must be positive")
	check(c.Dropship.DataRatePerSecond > 0, "dropship.data_rate_per_second must be positive")
	check(c.Dropship.PollInterval > 0, "dropship.poll_interval must be positive")
	return errs
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.name", "marketplace-commission")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.shutdown_timeout", 10)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "marketplace")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_mode", true)
	v.SetDefault("database.slow_threshold", 200)

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 10)
	v.SetDefault("redis.dial_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	// JWT defaults
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.issuer", "marketplace")
	v.SetDefault("jwt.leeway", 30)

	// SMS defaults
	v.SetDefault("sms.provider", "aliyun")

	// OSS defaults
	v.SetDefault("oss.provider", "aliyun")

	// Logger defaults
	v.SetDefault("logger.level", "debug")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "./logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.caller", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "marketplace")
	v.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "marketplace-commission")
	v.SetDefault("tracing.sample_rate", 1.0)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Request-ID"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 86400)

	// Commission defaults
	v.SetDefault("commission.default_rate", 0.10)
	v.SetDefault("commission.trailing_window_days", 30)
	v.SetDefault("commission.default_minimum_payout", 50.00)
	v.SetDefault("commission.default_payment_method", "bank_transfer")
	v.SetDefault("commission.performance_steps", []map[string]interface{}{
		{"min_score": 0.0, "bonus_rate": -0.01},
		{"min_score": 0.5, "bonus_rate": 0.0},
		{"min_score": 0.95, "bonus_rate": 0.015},
	})
	v.SetDefault("commission.concurrency", 4)

	// Plan defaults
	v.SetDefault("plans.default_plan", "starter")
	v.SetDefault("plans.items", []map[string]interface{}{
		{"code": "starter", "name": "Starter", "monthly_fee": 0.0, "transaction_fee_type": "percentage", "transaction_fee": 0.03, "max_commission_rate": 0.15},
		{"code": "professional", "name": "Professional", "monthly_fee": 29.99, "transaction_fee_type": "flat", "transaction_fee": 0.30, "max_commission_rate": 0.20},
		{"code": "enterprise", "name": "Enterprise", "monthly_fee": 99.99, "transaction_fee_type": "flat", "transaction_fee": 0.0, "max_commission_rate": 0.25},
	})

	// Currency defaults
	v.SetDefault("currency.base", "USD")
	v.SetDefault("currency.rates", map[string]float64{
		"USD": 1, "EUR": 0.92, "GBP": 0.79, "JPY": 149.5, "CNY": 7.24, "KRW": 1330,
	})
	v.SetDefault("currency.zero_decimal", []string{
		"BIF", "CLP", "DJF", "GNF", "JPY", "KMF", "KRW", "MGA",
		"PYG", "RWF", "UGX", "VND", "VUV", "XAF", "XOF", "XPF",
	})
	v.SetDefault("currency.redis_key", "currency:rates")

	// Payout defaults
	v.SetDefault("payout.cycle_days", 7)
	v.SetDefault("payout.lock_ttl", 30)
	v.SetDefault("payout.lock_wait", 10)
	v.SetDefault("payout.statement_dir", "statements")

	// Dropship defaults
	v.SetDefault("dropship.http_timeout", 15)
	v.SetDefault("dropship.poll_interval", 600)
	v.SetDefault("dropship.auth_min_interval", 300)
	v.SetDefault("dropship.data_rate_per_second", 1.0)
	v.SetDefault("dropship.data_burst", 1)
	v.SetDefault("dropship.token_expiry_skew", 60)
	v.SetDefault("dropship.batch_size", 100)
}

// IsDebug 是否为调试模式
func (c *Config) IsDebug() bool {
	return c.Server.Mode == "debug"
}

// IsRelease 是否为发布模式
func (c *Config) IsRelease() bool {
	return c.Server.Mode == "release"
}
