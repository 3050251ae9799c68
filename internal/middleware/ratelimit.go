package middleware

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/dumeirei/marketplace-commission/internal/common/response"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RedisClient *redis.Client             // 为空时退化为进程内令牌桶
	KeyPrefix   string                    // Redis 键前缀
	Limit       int                       // 窗口内允许次数
	Window      time.Duration             // 时间窗口
	KeyFunc     func(*gin.Context) string // 自定义键生成函数
}

// RateLimit 限流中间件
// 有 Redis 时使用固定窗口计数，多实例共享；否则按键维护 rate.Limiter
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string {
			return config.KeyPrefix + c.ClientIP() + ":" + c.FullPath()
		}
	}

	local := newLocalLimiters(config.Limit, config.Window)

	return func(c *gin.Context) {
		key := keyFunc(c)

		if config.RedisClient == nil {
			if !local.allow(key) {
				c.Header("Retry-After", strconv.Itoa(int(config.Window.Seconds())))
				response.TooManyRequests(c, "请求过于频繁，请稍后再试")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		ctx := c.Request.Context()
		count, err := config.RedisClient.Incr(ctx, key).Result()
		if err != nil {
			// Redis 错误时放行
			c.Next()
			return
		}
		if count == 1 {
			config.RedisClient.Expire(ctx, key, config.Window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		if int(count) > config.Limit {
			ttl, _ := config.RedisClient.TTL(ctx, key).Result()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(config.Limit-int(count)))

		c.Next()
	}
}

// UserRateLimit 按登录用户限流，未登录按 IP
func UserRateLimit(redisClient *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		RedisClient: redisClient,
		KeyPrefix:   "ratelimit:user:",
		Limit:       limit,
		Window:      window,
		KeyFunc: func(c *gin.Context) string {
			if userID := GetUserID(c); userID > 0 {
				return fmt.Sprintf("ratelimit:user:%s:%d", GetUserType(c), userID)
			}
			return "ratelimit:ip:" + c.ClientIP()
		},
	})
}

// AdminActionRateLimit 管理端手动触发类接口限流（按管理员 + 路由）
func AdminActionRateLimit(redisClient *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		RedisClient: redisClient,
		KeyPrefix:   "ratelimit:admin:",
		Limit:       limit,
		Window:      window,
		KeyFunc: func(c *gin.Context) string {
			return fmt.Sprintf("ratelimit:admin:%d:%s", GetAdminID(c), c.FullPath())
		},
	})
}

// localLimiters 进程内按键限流
type localLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLocalLimiters(n int, window time.Duration) *localLimiters {
	if n <= 0 {
		n = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &localLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(window / time.Duration(n)),
		burst:    n,
	}
}

func (l *localLimiters) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
