package selector

import (
	"color_academy_backend/internal/auth"
	"color_academy_backend/internal/device"
	"color_academy_backend/pkg/logger"
	"context"
	"sync"

	"go.uber.org/zap"
)

// Host 一个页面槽位：任何时刻最多挂载一个变体。
//
// 设备类别跨越断点时先卸载旧变体再挂载新变体；需要登录的页面在认证结果
// 返回前保持 loading，不会先挂载受保护内容再跳转。
type Host struct {
	opMu sync.Mutex // 串行化挂载相关操作

	mu     sync.RWMutex
	region Region

	ctx    context.Context
	cancel context.CancelFunc

	page    Page
	policy  Policy
	authn   auth.Authenticator
	profile device.Profile

	user         *auth.User
	authResolved bool
	authUnsub    func()

	mounted   Component
	scope     *Scope
	variant   Variant
	mounts    int
	listeners []func(Region)
	started   bool
	closed    bool
}

// NewHost authn 为 nil 时需要登录的页面始终跳转
func NewHost(page Page, policy Policy, authn auth.Authenticator) *Host {
	return &Host{
		page:    page,
		policy:  policy,
		authn:   authn,
		profile: device.Default(),
		region:  Region{Page: page.ID, Status: StatusLoading},
	}
}

// OnChange 区域状态变化时调用，需在 Start 之前注册。
// 回调在 Host 的操作锁内执行，不能再调用 Host 的方法。
func (h *Host) OnChange(fn func(Region)) {
	h.opMu.Lock()
	defer h.opMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *Host) Region() Region {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.region
}

// Mounts 累计挂载次数
func (h *Host) Mounts() int {
	h.opMu.Lock()
	defer h.opMu.Unlock()
	return h.mounts
}

// Scope 当前挂载的 Scope，未挂载时为 nil
func (h *Host) Scope() *Scope {
	h.opMu.Lock()
	defer h.opMu.Unlock()
	return h.scope
}

func (h *Host) Start(ctx context.Context, profile device.Profile) {
	h.opMu.Lock()
	if h.started || h.closed {
		h.opMu.Unlock()
		return
	}
	h.started = true
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.profile = profile

	if !h.page.RequiresAuth {
		h.mountLocked()
		h.opMu.Unlock()
		return
	}

	h.setRegionLocked(Region{Page: h.page.ID, Status: StatusLoading})
	if h.authn == nil {
		h.setRegionLocked(Region{Page: h.page.ID, Status: StatusRedirect})
		h.opMu.Unlock()
		return
	}
	h.authUnsub = h.authn.OnAuthStateChange(h.handleAuthChange)
	hostCtx := h.ctx
	h.opMu.Unlock()

	h.resolveAuth(hostCtx)
}

// resolveAuth 不持锁调用 CurrentUser，认证方可以在其中同步触发回调
func (h *Host) resolveAuth(ctx context.Context) {
	user, err := h.authn.CurrentUser(ctx)

	h.opMu.Lock()
	defer h.opMu.Unlock()
	if h.closed {
		return
	}
	// 期间已收到更新的认证事件
	if h.authResolved {
		return
	}
	h.authResolved = true

	if err != nil {
		logger.Log.Warn("selector: auth status unavailable", zap.String("page", h.page.ID), zap.Error(err))
		h.setRegionLocked(Region{Page: h.page.ID, Status: StatusFailed, Kind: ErrorKindAuth, Err: err, Message: err.Error()})
		return
	}
	h.user = user
	if user == nil {
		h.setRegionLocked(Region{Page: h.page.ID, Status: StatusRedirect})
		return
	}
	h.mountLocked()
}

func (h *Host) handleAuthChange(user *auth.User) {
	h.opMu.Lock()
	defer h.opMu.Unlock()
	if h.closed || !h.started {
		return
	}
	h.authResolved = true
	h.user = user

	if user == nil {
		h.unmountLocked()
		h.setRegionLocked(Region{Page: h.page.ID, Status: StatusRedirect})
		return
	}
	if h.mounted == nil {
		h.mountLocked()
	}
}

// UpdateProfile 设备信号变化。只有选中的变体变化时才会切换挂载。
func (h *Host) UpdateProfile(profile device.Profile) {
	h.opMu.Lock()
	defer h.opMu.Unlock()
	h.profile = profile
	h.reconcileLocked()
}

// SetPolicy 配置热更新
func (h *Host) SetPolicy(p Policy) {
	h.opMu.Lock()
	defer h.opMu.Unlock()
	h.policy = p
	h.reconcileLocked()
}

func (h *Host) reconcileLocked() {
	if h.closed || h.mounted == nil {
		return
	}
	if h.policy.Select(h.profile) == h.variant {
		return
	}
	h.unmountLocked()
	h.mountLocked()
}

// Reset 失败区域的重试入口
func (h *Host) Reset() {
	h.opMu.Lock()
	if h.closed || !h.started || h.region.Status != StatusFailed {
		h.opMu.Unlock()
		return
	}
	kind := h.region.Kind
	h.unmountLocked()

	if kind == ErrorKindAuth {
		h.authResolved = false
		h.setRegionLocked(Region{Page: h.page.ID, Status: StatusLoading})
		ctx := h.ctx
		h.opMu.Unlock()
		h.resolveAuth(ctx)
		return
	}

	h.mountLocked()
	h.opMu.Unlock()
}

// Close 卸载当前变体并释放认证订阅，可重复调用
func (h *Host) Close() {
	h.opMu.Lock()
	defer h.opMu.Unlock()
	if h.closed {
		return
	}
	h.unmountLocked()
	if h.authUnsub != nil {
		h.authUnsub()
		h.authUnsub = nil
	}
	if h.cancel != nil {
		h.cancel()
	}
	h.closed = true

	h.mu.Lock()
	h.region = Region{Page: h.page.ID, Status: StatusClosed}
	h.mu.Unlock()
}

func (h *Host) mountLocked() {
	if h.page.RequiresAuth && h.user == nil {
		h.setRegionLocked(Region{Page: h.page.ID, Status: StatusRedirect})
		return
	}

	v := h.policy.Select(h.profile)
	factory := h.page.factory(v)
	if factory == nil {
		h.setRegionLocked(Region{Page: h.page.ID, Status: StatusFailed, Variant: v, Kind: ErrorKindMount, Err: ErrVariantMissing, Message: ErrVariantMissing.Error()})
		return
	}

	comp := factory()
	scope := newScope(h.ctx)
	if err := safeMount(comp, scope); err != nil {
		// 挂载一半的订阅同样要释放
		scope.Close()
		logger.Log.Error("selector: mount failed", zap.String("page", h.page.ID), zap.String("variant", string(v)), zap.Error(err))
		h.setRegionLocked(Region{Page: h.page.ID, Status: StatusFailed, Variant: v, Kind: ErrorKindMount, Err: err, Message: err.Error()})
		return
	}

	h.mounted = comp
	h.scope = scope
	h.variant = v
	h.mounts++
	h.setRegionLocked(Region{Page: h.page.ID, Status: StatusMounted, Variant: v})
}

func (h *Host) unmountLocked() {
	if h.mounted == nil {
		return
	}
	if err := safeUnmount(h.mounted); err != nil {
		logger.Log.Error("selector: unmount failed", zap.String("page", h.page.ID), zap.Error(err))
	}
	h.scope.Close()
	h.mounted = nil
	h.scope = nil
	h.variant = ""
}

func (h *Host) setRegionLocked(r Region) {
	h.mu.Lock()
	h.region = r
	h.mu.Unlock()

	for _, fn := range h.listeners {
		fn(r)
	}
}
