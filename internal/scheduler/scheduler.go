// Package scheduler 按固定间隔运行后台任务（供应商订单轮询、周期打款）
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-commission/internal/common/logger"
	"github.com/dumeirei/marketplace-commission/internal/common/metrics"
)

// DefaultTaskTimeout 单次任务执行超时
const DefaultTaskTimeout = 5 * time.Minute

const (
	runSuccess = "success"
	runFailed  = "failed"
	runSkipped = "skipped"
)

// TaskFunc 任务处理函数
type TaskFunc func(ctx context.Context) error

// Task 定时任务
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Handler  TaskFunc

	running atomic.Bool
}

// Scheduler 定时任务调度器
// 同一任务上一轮未结束时，本轮直接跳过
type Scheduler struct {
	tasks   []*Task
	log     *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler 创建调度器
func NewScheduler() *Scheduler {
	return &Scheduler{log: logger.Named("scheduler")}
}

// WithMetrics 记录任务执行次数与耗时
func (s *Scheduler) WithMetrics(m *metrics.Metrics) *Scheduler {
	s.metrics = m
	return s
}

// AddTask 添加任务，须在 Start 之前调用
func (s *Scheduler) AddTask(name string, interval time.Duration, handler TaskFunc) *Task {
	task := &Task{Name: name, Interval: interval, Timeout: DefaultTaskTimeout, Handler: handler}
	s.tasks = append(s.tasks, task)
	return task
}

// Tasks 返回已注册的任务
func (s *Scheduler) Tasks() []*Task {
	return s.tasks
}

// Start 启动全部任务，每个任务立即执行一次；ctx 取消时任务停止
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.log.Info("调度器启动", zap.Int("tasks", len(s.tasks)))
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
}

// Stop 停止调度并等待执行中的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("调度器已停止")
}

func (s *Scheduler) loop(ctx context.Context, task *Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx, task)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, task)
		}
	}
}

// RunOnce 执行一次任务，返回是否真正执行
// 失败只记录日志，下一个周期重试
func (s *Scheduler) RunOnce(ctx context.Context, task *Task) bool {
	if !task.running.CompareAndSwap(false, true) {
		s.log.Warn("上一轮任务未结束，跳过", zap.String("task", task.Name))
		s.record(task.Name, runSkipped, 0)
		return false
	}
	defer task.running.Store(false)

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := task.Handler(runCtx)
	elapsed := time.Since(start)
	if err != nil {
		s.log.Error("任务执行失败", zap.String("task", task.Name), logger.Latency(elapsed), zap.Error(err))
		s.record(task.Name, runFailed, elapsed)
		return true
	}
	s.log.Debug("任务执行完成", zap.String("task", task.Name), logger.Latency(elapsed))
	s.record(task.Name, runSuccess, elapsed)
	return true
}

func (s *Scheduler) record(task, result string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordTaskRun(task, result, d)
	}
}
