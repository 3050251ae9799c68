package dropship

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/dumeirei/marketplace-commission/internal/common/cache"
	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/common/errors"
	"github.com/dumeirei/marketplace-commission/internal/common/metrics"
)

// CallKind 供应商调用类别，鉴权与数据调用分别限流
type CallKind string

const (
	CallAuth CallKind = "auth"
	CallData CallKind = "data"
)

// 默认限流参数
const (
	DefaultAuthMinInterval = 5 * time.Minute
	DefaultDataRate        = 1.0
	DefaultDataBurst       = 1
	DefaultDataMaxWait     = 2 * time.Second
)

// RateLimitedError 本地判断下一次允许调用的时间未到，请求没有发出
type RateLimitedError struct {
	Supplier string
	Kind     CallKind
	RetryAt  time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("supplier %s %s call rate limited until %s", e.Supplier, e.Kind, e.RetryAt.Format(time.RFC3339))
}

// Unwrap 归入 ErrRateLimited
func (e *RateLimitedError) Unwrap() error {
	return errors.ErrRateLimited
}

// RateLimitStore 保存每个供应商的下一次允许调用时间
type RateLimitStore interface {
	// Reserve 若下一次允许时间已到，则把它推后 interval 并返回 true；
	// 否则返回当前的下一次允许时间和 false。interval 为 0 时只检查不推后
	Reserve(ctx context.Context, supplier string, kind CallKind, now time.Time, interval time.Duration) (time.Time, bool, error)
	// Defer 把下一次允许时间推后到 until，已经更晚时不变
	Defer(ctx context.Context, supplier string, kind CallKind, until time.Time) error
}

// MemoryRateLimitStore 进程内限流状态
type MemoryRateLimitStore struct {
	mu   sync.Mutex
	next map[string]time.Time
}

// NewMemoryRateLimitStore 创建进程内限流状态
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{next: make(map[string]time.Time)}
}

func memoryKey(supplier string, kind CallKind) string {
	return supplier + ":" + string(kind)
}

// Reserve 检查并预占下一次调用
func (s *MemoryRateLimitStore) Reserve(ctx context.Context, supplier string, kind CallKind, now time.Time, interval time.Duration) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(supplier, kind)
	if next, ok := s.next[key]; ok && next.After(now) {
		return next, false, nil
	}
	if interval > 0 {
		s.next[key] = now.Add(interval)
	}
	return time.Time{}, true, nil
}

// Defer 推后下一次允许时间
func (s *MemoryRateLimitStore) Defer(ctx context.Context, supplier string, kind CallKind, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(supplier, kind)
	if next, ok := s.next[key]; !ok || until.After(next) {
		s.next[key] = until
	}
	return nil
}

const reserveScript = `
local nextAt = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
local now = tonumber(ARGV[2])
if nextAt > now then
  return nextAt
end
local interval = tonumber(ARGV[3])
if interval > 0 then
  redis.call("HSET", KEYS[1], ARGV[1], now + interval)
end
return 0
`

const deferScript = `
local nextAt = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
local untilMs = tonumber(ARGV[2])
if untilMs > nextAt then
  redis.call("HSET", KEYS[1], ARGV[1], untilMs)
end
return 1
`

// RedisRateLimitStore 多实例共享的限流状态，每个供应商一个 hash，时间为毫秒时间戳
type RedisRateLimitStore struct {
	client     *redis.Client
	reserveLua *redis.Script
	deferLua   *redis.Script
}

// NewRedisRateLimitStore 创建 Redis 限流状态
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client:     client,
		reserveLua: redis.NewScript(reserveScript),
		deferLua:   redis.NewScript(deferScript),
	}
}

func redisLimitKey(supplier string) string {
	return cache.BuildKey(cache.KeyPrefixSupplierLimit, supplier)
}

// Reserve 检查并预占下一次调用
func (s *RedisRateLimitStore) Reserve(ctx context.Context, supplier string, kind CallKind, now time.Time, interval time.Duration) (time.Time, bool, error) {
	next, err := s.reserveLua.Run(ctx, s.client, []string{redisLimitKey(supplier)},
		string(kind), now.UnixMilli(), interval.Milliseconds()).Int64()
	if err != nil {
		return time.Time{}, false, err
	}
	if next > 0 {
		return time.UnixMilli(next), false, nil
	}
	return time.Time{}, true, nil
}

// Defer 推后下一次允许时间
func (s *RedisRateLimitStore) Defer(ctx context.Context, supplier string, kind CallKind, until time.Time) error {
	return s.deferLua.Run(ctx, s.client, []string{redisLimitKey(supplier)}, string(kind), until.UnixMilli()).Err()
}

// RateLimitGate 供应商调用前的限流闸门
// 鉴权调用之间至少间隔 authInterval；数据调用受供应商退避时间和本地令牌桶双重限制
type RateLimitGate struct {
	store        RateLimitStore
	authInterval time.Duration
	dataRate     rate.Limit
	dataBurst    int
	dataMaxWait  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitGate 创建限流闸门，store 为空时使用进程内状态
func NewRateLimitGate(store RateLimitStore, cfg *config.DropshipConfig) *RateLimitGate {
	if store == nil {
		store = NewMemoryRateLimitStore()
	}
	g := &RateLimitGate{
		store:        store,
		authInterval: DefaultAuthMinInterval,
		dataRate:     rate.Limit(DefaultDataRate),
		dataBurst:    DefaultDataBurst,
		dataMaxWait:  DefaultDataMaxWait,
		limiters:     make(map[string]*rate.Limiter),
	}
	if cfg != nil {
		if cfg.AuthMinInterval > 0 {
			g.authInterval = cfg.AuthMinIntervalDuration()
		}
		if cfg.DataRatePerSecond > 0 {
			g.dataRate = rate.Limit(cfg.DataRatePerSecond)
		}
		if cfg.DataBurst > 0 {
			g.dataBurst = cfg.DataBurst
		}
	}
	return g
}

// AllowAuth 申请一次鉴权调用
func (g *RateLimitGate) AllowAuth(ctx context.Context, supplier string, now time.Time) error {
	retryAt, ok, err := g.store.Reserve(ctx, supplier, CallAuth, now, g.authInterval)
	if err != nil {
		return errors.ErrCacheError.WithError(err)
	}
	if !ok {
		metrics.GetMetrics().RecordSupplierRateLimited(supplier, string(CallAuth))
		return &RateLimitedError{Supplier: supplier, Kind: CallAuth, RetryAt: retryAt}
	}
	return nil
}

// AllowData 申请一次数据调用
func (g *RateLimitGate) AllowData(ctx context.Context, supplier string, now time.Time) error {
	retryAt, ok, err := g.store.Reserve(ctx, supplier, CallData, now, 0)
	if err != nil {
		return errors.ErrCacheError.WithError(err)
	}
	if !ok {
		metrics.GetMetrics().RecordSupplierRateLimited(supplier, string(CallData))
		return &RateLimitedError{Supplier: supplier, Kind: CallData, RetryAt: retryAt}
	}

	limiter := g.limiter(supplier)
	if !limiter.AllowN(now, 1) {
		metrics.GetMetrics().RecordSupplierRateLimited(supplier, string(CallData))
		delay := time.Duration(float64(time.Second) / float64(g.dataRate))
		return &RateLimitedError{Supplier: supplier, Kind: CallData, RetryAt: now.Add(delay)}
	}
	return nil
}

// WaitData 批量轮询使用：供应商退避时间未到时立即返回，
// 本地令牌桶需要等待且等待不超过 dataMaxWait 时阻塞等待
func (g *RateLimitGate) WaitData(ctx context.Context, supplier string, now time.Time) error {
	retryAt, ok, err := g.store.Reserve(ctx, supplier, CallData, now, 0)
	if err != nil {
		return errors.ErrCacheError.WithError(err)
	}
	if !ok {
		metrics.GetMetrics().RecordSupplierRateLimited(supplier, string(CallData))
		return &RateLimitedError{Supplier: supplier, Kind: CallData, RetryAt: retryAt}
	}

	r := g.limiter(supplier).Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if !r.OK() || delay > g.dataMaxWait {
		r.Cancel()
		metrics.GetMetrics().RecordSupplierRateLimited(supplier, string(CallData))
		return &RateLimitedError{Supplier: supplier, Kind: CallData, RetryAt: now.Add(delay)}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Throttled 供应商返回限流后推后下一次允许时间
// retryAfter 为 0 时鉴权按 authInterval、数据按一个令牌周期退避
func (g *RateLimitGate) Throttled(ctx context.Context, supplier string, kind CallKind, now time.Time, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		if kind == CallAuth {
			retryAfter = g.authInterval
		} else {
			retryAfter = time.Duration(float64(time.Second) / float64(g.dataRate))
		}
	}
	if err := g.store.Defer(ctx, supplier, kind, now.Add(retryAfter)); err != nil {
		return errors.ErrCacheError.WithError(err)
	}
	return nil
}

func (g *RateLimitGate) limiter(supplier string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[supplier]
	if !ok {
		l = rate.NewLimiter(g.dataRate, g.dataBurst)
		g.limiters[supplier] = l
	}
	return l
}
