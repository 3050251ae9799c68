package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-commission/internal/common/config"
	"github.com/dumeirei/marketplace-commission/internal/service/dropship"
	"github.com/dumeirei/marketplace-commission/internal/service/payout"
)

type fakePoller struct {
	calls  int32
	result *dropship.PollResult
	err    error
	at     time.Time
}

func (p *fakePoller) PollOrderUpdates(ctx context.Context, now time.Time) (*dropship.PollResult, error) {
	atomic.AddInt32(&p.calls, 1)
	p.at = now
	return p.result, p.err
}

type fakePayouts struct {
	result *payout.CycleResult
	err    error
	at     time.Time
}

func (p *fakePayouts) GenerateCycle(ctx context.Context, now time.Time) (*payout.CycleResult, error) {
	p.at = now
	return p.result, p.err
}

func TestScheduler_RunsTaskImmediatelyAndStops(t *testing.T) {
	s := NewScheduler()
	var runs int32
	s.AddTask("tick", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("失败也不影响调度")
	})

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestScheduler_StopsWithParentContext(t *testing.T) {
	s := NewScheduler()
	stopped := make(chan struct{})
	s.AddTask("wait", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("父 context 取消后任务未退出")
	}
	s.Stop()
}

func TestScheduler_TaskTimeout(t *testing.T) {
	s := NewScheduler()
	done := make(chan error, 1)
	task := s.AddTask("slow", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	task.Timeout = 20 * time.Millisecond

	s.Start(context.Background())
	defer s.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("任务未超时")
	}
}

func TestScheduler_RunOnce_SkipsOverlap(t *testing.T) {
	s := NewScheduler()
	entered := make(chan struct{})
	release := make(chan struct{})
	task := s.AddTask("sync", time.Hour, func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	})

	finished := make(chan bool, 1)
	go func() { finished <- s.RunOnce(context.Background(), task) }()
	<-entered

	assert.False(t, s.RunOnce(context.Background(), task), "上一轮未结束时跳过")

	close(release)
	assert.True(t, <-finished)
}

func TestTaskHandler(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)

	t.Run("轮询供应商订单", func(t *testing.T) {
		poller := &fakePoller{result: &dropship.PollResult{Checked: 3, Skipped: 1}}
		h := NewTaskHandler(poller, &fakePayouts{})
		h.now = func() time.Time { return now }

		require.NoError(t, h.PollSupplierOrders(context.Background()))
		assert.Equal(t, now, poller.at)

		poller.err = errors.New("supplier down")
		assert.Error(t, h.PollSupplierOrders(context.Background()))
	})

	t.Run("生成打款", func(t *testing.T) {
		payouts := &fakePayouts{result: &payout.CycleResult{Vendors: 2, Failed: 1}, err: errors.New("vendor 1")}
		h := NewTaskHandler(&fakePoller{}, payouts)
		h.now = func() time.Time { return now }

		assert.Error(t, h.GenerateVendorPayouts(context.Background()))
		assert.Equal(t, now, payouts.at)
	})

	t.Run("注册任务", func(t *testing.T) {
		s := NewScheduler()
		h := NewTaskHandler(&fakePoller{}, &fakePayouts{})
		h.Register(s, &config.DropshipConfig{PollInterval: 120}, &config.PayoutConfig{CycleDays: 14})

		tasks := s.Tasks()
		require.Len(t, tasks, 2)
		assert.Equal(t, TaskPollSupplierOrders, tasks[0].Name)
		assert.Equal(t, 2*time.Minute, tasks[0].Interval)
		assert.Equal(t, TaskGenerateVendorPayouts, tasks[1].Name)
		assert.Equal(t, 14*24*time.Hour, tasks[1].Interval)
	})

	t.Run("未配置时使用默认间隔", func(t *testing.T) {
		s := NewScheduler()
		NewTaskHandler(&fakePoller{}, &fakePayouts{}).Register(s, nil, nil)

		tasks := s.Tasks()
		require.Len(t, tasks, 2)
		assert.Equal(t, DefaultPollInterval, tasks[0].Interval)
		assert.Equal(t, DefaultPayoutInterval, tasks[1].Interval)
	})
}
