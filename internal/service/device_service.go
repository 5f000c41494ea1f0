package service

import (
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/device"
	"color_academy_backend/internal/selector"
	"color_academy_backend/pkg/monitoring"
	"net/http"
	"sync"
	"time"
)

// DeviceService 当前生效的断点与平板策略，支持配置热更新
type DeviceService struct {
	mu          sync.RWMutex
	breakpoints device.Breakpoints
	policy      selector.Policy
	debounce    time.Duration
}

func NewDeviceService(cfg *config.DeviceConfig) *DeviceService {
	s := &DeviceService{
		breakpoints: device.DefaultBreakpoints(),
		policy:      selector.DefaultPolicy(),
	}
	s.Apply(cfg)
	return s
}

// Apply 返回断点或策略是否发生变化
func (s *DeviceService) Apply(cfg *config.DeviceConfig) bool {
	bp := device.Breakpoints{MobileMax: cfg.MobileMaxWidth, TabletMax: cfg.TabletMaxWidth}
	if bp.MobileMax <= 0 || bp.TabletMax <= bp.MobileMax {
		bp = device.DefaultBreakpoints()
	}
	policy := selector.DefaultPolicy()
	if v, ok := selector.ParseVariant(cfg.TabletVariant); ok {
		policy.TabletVariant = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := bp != s.breakpoints || policy != s.policy
	s.breakpoints = bp
	s.policy = policy
	s.debounce = cfg.Debounce()
	return changed
}

func (s *DeviceService) Breakpoints() device.Breakpoints {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.breakpoints
}

func (s *DeviceService) Policy() selector.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *DeviceService) Debounce() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debounce
}

// ProfileFromRequest 信号缺失时得到默认 Profile
func (s *DeviceService) ProfileFromRequest(r *http.Request) device.Profile {
	p := s.Breakpoints().Resolve(device.SignalsFromRequest(r))
	monitoring.DeviceClassifications.WithLabelValues(string(p.Class)).Inc()
	return p
}

// Select 按当前策略选择变体
func (s *DeviceService) Select(p device.Profile) selector.Variant {
	return s.Policy().Select(p)
}
