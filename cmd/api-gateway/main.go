// Package main 是应用程序入口
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dumeirei/marketplace-commission/internal/common/cache"
	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/database"
	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/common/metrics"
	"github.com/dumeirei/marketplace-commission/internal/common/tracing"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

const defaultShutdownTimeout = 30 * time.Second

// @title Marketplace Commission API
// @version 1.0
// @description 商家佣金、打款与代发货同步服务
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger.GetLogger()); err != nil {
		logger.GetLogger().Error("服务异常退出", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// run 初始化依赖并运行 HTTP 服务与后台任务，ctx 取消后优雅退出
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("服务启动中",
		zap.String("version", version),
		zap.String("mode", cfg.Server.Mode),
	)

	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Namespace)
	}

	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	db, err := database.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Warn("关闭数据库失败", zap.Error(err))
		}
	}()
	if cfg.IsDebug() {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	// Redis 未启用时限流与锁退化为进程内实现
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		if redisClient, err = cache.Init(&cfg.Redis); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	} else {
		log.Warn("Redis 未启用，限流与分布式锁仅在本进程内生效")
	}

	gin.SetMode(ginMode(cfg.Server.Mode))
	engine := gin.New()

	sched, err := setupRouter(engine, cfg, log, db, redisClient)
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP 服务监听", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sched.Start(gctx)
		<-gctx.Done()

		log.Info("服务关闭中")
		timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// 等待正在执行的同步与打款任务结束
		sched.Stop()
		if terr := tracer.Shutdown(shutdownCtx); terr != nil {
			log.Warn("关闭追踪失败", zap.Error(terr))
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("服务已退出")
	return nil
}

func ginMode(mode string) string {
	switch mode {
	case "release", "production":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
