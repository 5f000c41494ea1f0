package selector

import (
	"context"
	"sync"
)

// Scope 一次挂载的生命周期：收集取消订阅函数，关闭时统一释放，
// 并取消在途的异步任务。
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	gate     sync.RWMutex // apply 执行期间阻止 Close
	mu       sync.Mutex
	cleanups []func()
	closed   bool
	wg       sync.WaitGroup
}

func newScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context 卸载时取消
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Track 登记清理函数。Scope 已关闭时立即执行。
func (s *Scope) Track(cleanup func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cleanup()
		return
	}
	s.cleanups = append(s.cleanups, cleanup)
	s.mu.Unlock()
}

// Go 运行异步任务；apply 只在 Scope 仍然存活时执行，卸载后的结果直接丢弃。
// apply 中不能关闭自身所在的 Scope。
func (s *Scope) Go(work func(ctx context.Context) error, apply func(err error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		err := work(s.ctx)

		s.gate.RLock()
		defer s.gate.RUnlock()
		if !s.Closed() && apply != nil {
			apply(err)
		}
	}()
}

// Active 尚未释放的清理函数数量
func (s *Scope) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cleanups)
}

func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close 逆序执行清理函数，可重复调用
func (s *Scope) Close() {
	s.gate.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.gate.Unlock()
		return
	}
	s.closed = true
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()
	s.gate.Unlock()

	s.cancel()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Wait 等待在途任务结束，主要用于测试
func (s *Scope) Wait() {
	s.wg.Wait()
}
