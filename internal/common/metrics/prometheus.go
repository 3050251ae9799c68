// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	httpRequestsInFlight   prometheus.Gauge
	commissionCalculations *prometheus.CounterVec
	vendorEarningsTotal    prometheus.Counter
	payoutsTotal           *prometheus.CounterVec
	payoutAmountTotal      prometheus.Counter
	currencyRateMissing    *prometheus.CounterVec
	supplierRequestsTotal  *prometheus.CounterVec
	supplierRateLimited    *prometheus.CounterVec
	consistencyViolations  *prometheus.CounterVec
	taskRunsTotal          *prometheus.CounterVec
	taskDuration           *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	mu             sync.Mutex
)

// Init 初始化指标收集器
func Init(namespace string) *Metrics {
	m := newMetrics(namespace)
	mu.Lock()
	defaultMetrics = m
	mu.Unlock()
	return m
}

func newMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketplace"
	}

	m := &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		commissionCalculations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commission_calculations_total",
				Help:      "Total number of commission calculations by result",
			},
			[]string{"result"},
		),
		vendorEarningsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commission_vendor_earnings_total",
				Help:      "Sum of vendor earnings recorded, in base currency",
			},
		),
		payoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payouts_total",
				Help:      "Total number of payout generation attempts by result",
			},
			[]string{"result"},
		),
		payoutAmountTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payout_amount_total",
				Help:      "Sum of generated payout amounts, in base currency",
			},
		),
		currencyRateMissing: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "currency_rate_missing_total",
				Help:      "Conversions that fell back to the unconverted amount",
			},
			[]string{"currency"},
		),
		supplierRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "supplier_requests_total",
				Help:      "Total number of supplier API requests",
			},
			[]string{"supplier", "endpoint", "result"},
		),
		supplierRateLimited: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "supplier_rate_limited_total",
				Help:      "Supplier API calls deferred by the local rate-limit state",
			},
			[]string{"supplier", "kind"},
		),
		consistencyViolations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consistency_violations_total",
				Help:      "Detected financial integrity violations",
			},
			[]string{"kind"},
		),
		taskRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_task_runs_total",
				Help:      "Background task runs by outcome",
			},
			[]string{"task", "result"},
		),
		taskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scheduled_task_duration_seconds",
				Help:      "Background task run duration in seconds",
				Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"task"},
		),
	}
	return m
}

// GetMetrics 获取默认指标收集器
func GetMetrics() *Metrics {
	mu.Lock()
	defer mu.Unlock()
	if defaultMetrics == nil {
		defaultMetrics = newMetrics("")
	}
	return defaultMetrics
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过 metrics 端点本身
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// Handler 返回 Prometheus HTTP 处理器
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordCommission 记录一次佣金计算
func (m *Metrics) RecordCommission(result string, vendorEarnings float64) {
	m.commissionCalculations.WithLabelValues(result).Inc()
	if vendorEarnings > 0 {
		m.vendorEarningsTotal.Add(vendorEarnings)
	}
}

// RecordPayout 记录一次打款生成
func (m *Metrics) RecordPayout(result string, amount float64) {
	m.payoutsTotal.WithLabelValues(result).Inc()
	if amount > 0 {
		m.payoutAmountTotal.Add(amount)
	}
}

// RecordCurrencyRateMissing 记录缺失汇率
func (m *Metrics) RecordCurrencyRateMissing(currency string) {
	m.currencyRateMissing.WithLabelValues(currency).Inc()
}

// RecordSupplierRequest 记录供应商接口调用
func (m *Metrics) RecordSupplierRequest(supplier, endpoint, result string) {
	m.supplierRequestsTotal.WithLabelValues(supplier, endpoint, result).Inc()
}

// RecordSupplierRateLimited 记录被本地限流拦截的供应商调用
func (m *Metrics) RecordSupplierRateLimited(supplier, kind string) {
	m.supplierRateLimited.WithLabelValues(supplier, kind).Inc()
}

// RecordConsistencyViolation 记录数据一致性异常
func (m *Metrics) RecordConsistencyViolation(kind string) {
	m.consistencyViolations.WithLabelValues(kind).Inc()
}

// RecordTaskRun 记录一次后台任务执行，result 为 success / failed / skipped
func (m *Metrics) RecordTaskRun(task, result string, duration time.Duration) {
	m.taskRunsTotal.WithLabelValues(task, result).Inc()
	if result != "skipped" {
		m.taskDuration.WithLabelValues(task).Observe(duration.Seconds())
	}
}

// RecordHTTPRequest 手动记录 HTTP 请求（用于非中间件场景）
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m := GetMetrics()
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
