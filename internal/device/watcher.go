package device

import (
	"sort"
	"sync"
	"time"
)

// Watcher 持有当前 Profile，在 resize / orientationchange 事件到来时重新计算，
// 仅在 Profile 变化时通知订阅者。
type Watcher struct {
	mu          sync.Mutex
	breakpoints Breakpoints
	current     Profile
	last        *Signals
	pending     *Signals
	debounce    time.Duration
	timer       *time.Timer
	subs        map[int]func(Profile)
	nextID      int
	closed      bool
}

func NewWatcher(bp Breakpoints, debounce time.Duration) *Watcher {
	return &Watcher{
		breakpoints: bp,
		current:     Default(),
		debounce:    debounce,
		subs:        make(map[int]func(Profile)),
	}
}

func (w *Watcher) Current() Profile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Update 接收一次环境事件。debounce 为 0 时立即生效。
func (w *Watcher) Update(sig Signals) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.debounce <= 0 {
		w.mu.Unlock()
		w.apply(&sig)
		return
	}

	w.pending = &sig
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.Flush)
	} else {
		w.timer.Reset(w.debounce)
	}
	w.mu.Unlock()
}

// Flush 立即应用挂起的事件
func (w *Watcher) Flush() {
	w.mu.Lock()
	sig := w.pending
	w.pending = nil
	if w.timer != nil {
		w.timer.Stop()
	}
	closed := w.closed
	w.mu.Unlock()

	if sig == nil || closed {
		return
	}
	w.apply(sig)
}

// SetBreakpoints 配置热更新后按最后一次信号重新计算
func (w *Watcher) SetBreakpoints(bp Breakpoints) {
	w.mu.Lock()
	w.breakpoints = bp
	last := w.last
	w.mu.Unlock()

	if last != nil {
		w.apply(last)
	}
}

func (w *Watcher) apply(sig *Signals) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.last = sig
	next := w.breakpoints.Resolve(sig)
	if next == w.current {
		w.mu.Unlock()
		return
	}
	w.current = next

	ids := make([]int, 0, len(w.subs))
	for id := range w.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Profile), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, w.subs[id])
	}
	w.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

// Subscribe 返回的函数可重复调用
func (w *Watcher) Subscribe(fn func(Profile)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return func() {}
	}

	id := w.nextID
	w.nextID++
	w.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

func (w *Watcher) SubscriberCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

// Close 停止计时器并释放所有订阅
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = nil
	w.subs = make(map[int]func(Profile))
}
