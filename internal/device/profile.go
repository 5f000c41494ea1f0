package device

// Class 设备类别
type Class string

const (
	Mobile  Class = "mobile"
	Tablet  Class = "tablet"
	Desktop Class = "desktop"
)

func (c Class) Valid() bool {
	switch c {
	case Mobile, Tablet, Desktop:
		return true
	}
	return false
}

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// Profile 当前视口环境的只读快照，不做持久化
type Profile struct {
	Class          Class       `json:"class"`
	HasTouch       bool        `json:"hasTouch"`
	Orientation    Orientation `json:"orientation"`
	ViewportWidth  int         `json:"viewportWidth"`
	ViewportHeight int         `json:"viewportHeight"`
}

// Signals 客户端上报或从请求中提取的环境信号
type Signals struct {
	ViewportWidth  int   `json:"width"`
	ViewportHeight int   `json:"height"`
	TouchEvents    bool  `json:"touchEvents"`
	MaxTouchPoints int   `json:"maxTouchPoints"`
	Hint           Class `json:"hint,omitempty"` // 服务端根据 UA 推断的类别，仅在宽度未知时使用
}

const (
	DefaultMobileMax = 768
	DefaultTabletMax = 1024
)

// Breakpoints 宽度分段，上界闭区间
type Breakpoints struct {
	MobileMax int `json:"mobileMax"`
	TabletMax int `json:"tabletMax"`
}

func DefaultBreakpoints() Breakpoints {
	return Breakpoints{MobileMax: DefaultMobileMax, TabletMax: DefaultTabletMax}
}

// Default 环境不可用时的确定性默认值，首屏渲染与水合保持一致
func Default() Profile {
	return Profile{
		Class:       Desktop,
		HasTouch:    false,
		Orientation: Landscape,
	}
}

func (b Breakpoints) Classify(width int) Class {
	switch {
	case width <= b.MobileMax:
		return Mobile
	case width <= b.TabletMax:
		return Tablet
	default:
		return Desktop
	}
}

func (b Breakpoints) Resolve(sig *Signals) Profile {
	if sig == nil {
		return Default()
	}

	hasTouch := sig.TouchEvents || sig.MaxTouchPoints > 0

	if sig.ViewportWidth <= 0 {
		if !sig.Hint.Valid() {
			p := Default()
			p.HasTouch = hasTouch
			return p
		}
		p := Profile{Class: sig.Hint, HasTouch: hasTouch, Orientation: Landscape}
		if sig.Hint == Mobile {
			p.Orientation = Portrait
		}
		return p
	}

	orientation := Landscape
	if sig.ViewportHeight > sig.ViewportWidth {
		orientation = Portrait
	}

	return Profile{
		Class:          b.Classify(sig.ViewportWidth),
		HasTouch:       hasTouch,
		Orientation:    orientation,
		ViewportWidth:  sig.ViewportWidth,
		ViewportHeight: sig.ViewportHeight,
	}
}

// Resolve 使用默认断点
func Resolve(sig *Signals) Profile {
	return DefaultBreakpoints().Resolve(sig)
}
