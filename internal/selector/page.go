// Package selector 根据设备 Profile 与页面标识选择移动端或桌面端变体，
// 并管理变体的挂载、切换与卸载。
package selector

import (
	"color_academy_backend/internal/device"
	"errors"
	"sort"
	"sync"
)

type Variant string

const (
	VariantMobile  Variant = "mobile"
	VariantDesktop Variant = "desktop"
)

var ErrPageNotFound = errors.New("page not found")

// Policy 平板归属哪个变体由配置决定
type Policy struct {
	TabletVariant Variant `json:"tabletVariant"`
}

func DefaultPolicy() Policy {
	return Policy{TabletVariant: VariantDesktop}
}

func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantMobile, VariantDesktop:
		return Variant(s), true
	}
	return "", false
}

// Select 纯函数，同一 Profile 总是得到同一变体
func (p Policy) Select(profile device.Profile) Variant {
	switch profile.Class {
	case device.Mobile:
		return VariantMobile
	case device.Tablet:
		if p.TabletVariant == VariantMobile {
			return VariantMobile
		}
		return VariantDesktop
	default:
		return VariantDesktop
	}
}

// Component 展示组件。Mount 中注册的订阅必须交给 Scope 管理。
type Component interface {
	Mount(scope *Scope) error
	Unmount()
}

type Factory func() Component

type Page struct {
	ID           string
	Title        string
	RequiresAuth bool
	Mobile       Factory
	Desktop      Factory
}

func (p Page) factory(v Variant) Factory {
	if v == VariantMobile {
		return p.Mobile
	}
	return p.Desktop
}

type Registry struct {
	mu    sync.RWMutex
	pages map[string]Page
}

func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]Page)}
}

func (r *Registry) Register(p Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[p.ID] = p
}

func (r *Registry) Lookup(id string) (Page, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pages[id]
	if !ok {
		return Page{}, ErrPageNotFound
	}
	return p, nil
}

// Pages 按 ID 排序
func (r *Registry) Pages() []Page {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Page, 0, len(r.pages))
	for _, p := range r.pages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
