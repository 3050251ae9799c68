package payout

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dumeirei/marketplace-commission/internal/common/errors"
)

// vendorLocks 进程内按商家串行化，等待受 ctx 与 wait 约束
// 没有持有者也没有等待者的条目会被移除
type vendorLocks struct {
	mu    sync.Mutex
	locks map[int64]*vendorLock
}

type vendorLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newVendorLocks() *vendorLocks {
	return &vendorLocks{locks: make(map[int64]*vendorLock)}
}

// acquire 获取商家锁，wait 内未获取返回 ErrPayoutInProgress
func (v *vendorLocks) acquire(ctx context.Context, vendorID int64, wait time.Duration) (func(), error) {
	v.mu.Lock()
	l, ok := v.locks[vendorID]
	if !ok {
		l = &vendorLock{sem: semaphore.NewWeighted(1)}
		v.locks[vendorID] = l
	}
	l.refs++
	v.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	err := l.sem.Acquire(waitCtx, 1)
	cancel()
	if err != nil {
		v.unref(vendorID, l)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.ErrPayoutInProgress
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.sem.Release(1)
			v.unref(vendorID, l)
		})
	}, nil
}

func (v *vendorLocks) unref(vendorID int64, l *vendorLock) {
	v.mu.Lock()
	defer v.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(v.locks, vendorID)
	}
}

func (v *vendorLocks) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.locks)
}
