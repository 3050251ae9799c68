// Package main 是应用程序入口
package main

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/dumeirei/marketplace-commission/docs"
	"github.com/dumeirei/marketplace-commission/internal/common/cache"
	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/crypto"
	"github.com/dumeirei/marketplace-commission/internal/common/jwt"
	"github.com/dumeirei/marketplace-commission/internal/common/metrics"
	commonMiddleware "github.com/dumeirei/marketplace-commission/internal/common/middleware"
	"github.com/dumeirei/marketplace-commission/internal/common/response"
	adminHandler "github.com/dumeirei/marketplace-commission/internal/handler/admin"
	vendorHandler "github.com/dumeirei/marketplace-commission/internal/handler/vendor"
	"github.com/dumeirei/marketplace-commission/internal/middleware"
	"github.com/dumeirei/marketplace-commission/internal/repository"
	"github.com/dumeirei/marketplace-commission/internal/scheduler"
	"github.com/dumeirei/marketplace-commission/internal/service/commission"
	"github.com/dumeirei/marketplace-commission/internal/service/currency"
	"github.com/dumeirei/marketplace-commission/internal/service/dropship"
	"github.com/dumeirei/marketplace-commission/internal/service/payout"
	"github.com/dumeirei/marketplace-commission/pkg/oss"
	"github.com/dumeirei/marketplace-commission/pkg/sms"
)

// 管理端手动触发接口限流
const (
	adminActionLimit  = 10
	adminActionWindow = time.Minute
	maxRequestBody    = 1 << 20
)

// services 应用服务集合
type services struct {
	commission *commission.CommissionService
	settings   *commission.SettingsService
	payout     *payout.PayoutService
	dropship   *dropship.SyncService
}

// buildServices 初始化仓储与服务
// redisClient 为空时限流、令牌缓存与分布式锁退化为进程内实现
func buildServices(cfg *config.Config, log *zap.Logger, db *gorm.DB, redisClient *redis.Client) (*services, error) {
	// 初始化仓储
	vendorRepo := repository.NewVendorRepository(db)
	settingsRepo := repository.NewCommissionSettingsRepository(db)
	recordRepo := repository.NewCommissionRecordRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	supplierOrderRepo := repository.NewSupplierOrderRepository(db)

	plans, err := commission.NewPlanCatalogFromConfig(&cfg.Plans)
	if err != nil {
		return nil, fmt.Errorf("加载套餐配置失败: %w", err)
	}
	policy, err := commission.PerformancePolicyFromConfig(&cfg.Commission)
	if err != nil {
		return nil, fmt.Errorf("加载绩效阶梯失败: %w", err)
	}
	cipher, err := crypto.NewFieldCipher(cfg.Crypto.AESKey)
	if err != nil {
		return nil, fmt.Errorf("初始化字段加密失败: %w", err)
	}
	if cfg.Crypto.AESKey == "" {
		log.Warn("未配置 AES 密钥，收款信息将明文存储")
	}

	locker := cache.NewLocker(redisClient)

	// 佣金
	settingsSvc := commission.NewSettingsService(settingsRepo, vendorRepo, plans, cipher)
	settingsSvc.SetDefaults(&cfg.Commission)

	var rates currency.RateProvider = currency.NewStaticRateProvider(&cfg.Currency)
	if redisClient != nil && cfg.Currency.RedisKey != "" {
		rates = currency.NewRedisRateProvider(redisClient, &cfg.Currency, rates, nil)
	}
	commissionSvc := commission.NewCommissionService(recordRepo, orderRepo, vendorRepo, settingsSvc, plans, commission.NewRateResolver(policy))
	commissionSvc.Configure(&cfg.Commission)
	commissionSvc.SetCurrency(cfg.Currency.Base, rates, currency.NewConverter(&cfg.Currency, nil))

	// 打款
	payoutSvc := payout.NewPayoutService(db, recordRepo, payoutRepo, settingsSvc, locker)
	payoutSvc.Configure(&cfg.Payout)
	uploader, err := newUploader(&cfg.OSS)
	if err != nil {
		return nil, err
	}
	payoutSvc.SetStatementStore(payout.NewOSSStatementStore(uploader, cfg.Payout.StatementDir))

	// 代发货
	var (
		store  dropship.RateLimitStore
		tokens dropship.TokenCache
	)
	if redisClient != nil {
		store = dropship.NewRedisRateLimitStore(redisClient)
		tokens = dropship.NewRedisTokenCache(redisClient)
	}
	syncSvc := dropship.NewSyncService(
		db, supplierRepo, supplierOrderRepo, orderRepo,
		dropship.NewRateLimitGate(store, &cfg.Dropship),
		tokens,
		dropship.NewHTTPClientFactory(cfg.Dropship.HTTPTimeoutDuration()),
	)
	syncSvc.Configure(&cfg.Dropship)
	syncSvc.SetLocker(locker)
	sender, err := newSMSSender(&cfg.SMS)
	if err != nil {
		return nil, err
	}
	syncSvc.SetNotifier(dropship.NewSMSShipmentNotifier(sender))

	return &services{
		commission: commissionSvc,
		settings:   settingsSvc,
		payout:     payoutSvc,
		dropship:   syncSvc,
	}, nil
}

// newUploader 未配置 OSS 时使用内存上传器（开发环境）
func newUploader(cfg *config.OSSConfig) (oss.Uploader, error) {
	if cfg.Provider != "aliyun" || cfg.AccessKeyID == "" {
		return oss.NewMockUploader(), nil
	}
	uploader, err := oss.NewAliyunUploader(&oss.AliyunConfig{
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
		BucketName:      cfg.Bucket,
		Domain:          cfg.CustomDomain,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化对象存储失败: %w", err)
	}
	return uploader, nil
}

// newSMSSender 未配置短信凭证时使用 Mock（开发环境）
func newSMSSender(cfg *config.SMSConfig) (sms.Sender, error) {
	if cfg.Provider != "aliyun" || cfg.AccessKeyID == "" {
		return sms.NewMockSender(), nil
	}
	sender, err := sms.NewAliyunSender(&sms.AliyunConfig{
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
		SignName:        cfg.SignName,
		Templates:       map[string]string{sms.TemplateShipmentNotify: cfg.TemplateID},
	})
	if err != nil {
		return nil, fmt.Errorf("初始化短信服务失败: %w", err)
	}
	return sender, nil
}

// setupRouter 设置路由与后台任务，返回未启动的调度器
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
) (*scheduler.Scheduler, error) {
	svc, err := buildServices(cfg, logger, db, redisClient)
	if err != nil {
		return nil, err
	}

	verifier := jwt.NewVerifier(&jwt.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Leeway: time.Duration(cfg.JWT.Leeway) * time.Second,
	})

	// 初始化处理器
	vendorH := vendorHandler.NewHandler(svc.commission, svc.settings, svc.payout)
	commissionH := adminHandler.NewCommissionHandler(svc.commission, svc.payout)
	dropshipH := adminHandler.NewDropshipHandler(svc.dropship)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.RequestSizeLimiter(maxRequestBody))
	r.Use(middleware.CORS(&cfg.CORS))
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   []string{"/health", "/ping", "/ready", cfg.Metrics.Path},
		}), commonMiddleware.TraceIDHeader())
	}
	if cfg.Metrics.Enabled {
		r.Use(metrics.GetMetrics().Middleware())
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}
	r.Use(middleware.AccessLog(logger, cfg.Metrics.Path))

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))

	// Swagger 文档
	if !cfg.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	{
		// 商家端
		vendor := v1.Group("/vendor")
		vendor.Use(middleware.VendorAuth(verifier))
		vendor.Use(middleware.UserRateLimit(redisClient, 120, time.Minute))
		vendorH.RegisterRoutes(vendor)

		// 管理端
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(verifier))
		admin.Use(middleware.AdminActionRateLimit(redisClient, adminActionLimit, adminActionWindow))
		{
			finance := admin.Group("")
			finance.Use(middleware.RequireRoles(middleware.RoleFinance))
			commissionH.RegisterRoutes(finance)

			ops := admin.Group("")
			ops.Use(middleware.RequireRoles(middleware.RoleOperator))
			dropshipH.RegisterRoutes(ops)
		}
	}

	// 404 处理
	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	})

	// 后台任务
	s := scheduler.NewScheduler()
	if cfg.Metrics.Enabled {
		s.WithMetrics(metrics.GetMetrics())
	}
	scheduler.NewTaskHandler(svc.dropship, svc.payout).Register(s, &cfg.Dropship, &cfg.Payout)
	return s, nil
}
