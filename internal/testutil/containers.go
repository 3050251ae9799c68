//go:build integration

// Package testutil 提供 testcontainers-go 集成测试环境
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/multierr"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/marketplace-commission/internal/common/database"
)

const (
	postgresImage = "postgres:15-alpine"
	redisImage    = "redis:7-alpine"
)

// Containers 集成测试使用的 Postgres 与 Redis 容器
type Containers struct {
	postgres testcontainers.Container
	redis    testcontainers.Container

	DB    *gorm.DB
	Redis *redis.Client
}

// StartContainers 启动容器并完成表结构迁移，测试结束时自动清理
func StartContainers(t *testing.T) *Containers {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	c := &Containers{}
	t.Cleanup(func() {
		if err := c.terminate(ctx); err != nil {
			t.Logf("清理容器失败: %v", err)
		}
	})

	if err := c.startPostgres(ctx); err != nil {
		t.Fatalf("启动 Postgres 失败: %v", err)
	}
	if err := c.startRedis(ctx); err != nil {
		t.Fatalf("启动 Redis 失败: %v", err)
	}
	if err := database.AutoMigrate(c.DB); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	return c
}

func (c *Containers) startPostgres(ctx context.Context) error {
	container, err := tcPostgres.Run(ctx, postgresImage,
		tcPostgres.WithDatabase("marketplace_test"),
		tcPostgres.WithUsername("test_user"),
		tcPostgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to start postgres container: %w", err)
	}
	c.postgres = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("failed to get postgres dsn: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	c.DB = db
	return nil
}

func (c *Containers) startRedis(ctx context.Context) error {
	container, err := tcRedis.Run(ctx, redisImage,
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to start redis container: %w", err)
	}
	c.redis = container

	host, err := container.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		return fmt.Errorf("failed to get redis port: %w", err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	c.Redis = client
	return nil
}

func (c *Containers) terminate(ctx context.Context) error {
	var errs error
	if c.Redis != nil {
		errs = multierr.Append(errs, c.Redis.Close())
	}
	if c.redis != nil {
		errs = multierr.Append(errs, c.redis.Terminate(ctx))
	}
	if c.postgres != nil {
		errs = multierr.Append(errs, c.postgres.Terminate(ctx))
	}
	return errs
}
