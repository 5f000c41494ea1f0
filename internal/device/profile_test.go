package device

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBands(t *testing.T) {
	bp := DefaultBreakpoints()

	tests := []struct {
		width int
		want  Class
	}{
		{0, Mobile},
		{320, Mobile},
		{768, Mobile},
		{769, Tablet},
		{1024, Tablet},
		{1025, Desktop},
		{1920, Desktop},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, bp.Classify(tt.width), "width %d", tt.width)
		// 同一宽度多次计算结果一致
		assert.Equal(t, bp.Classify(tt.width), bp.Classify(tt.width))
	}
}

func TestResolveTouchIsIndependentOfClass(t *testing.T) {
	p := Resolve(&Signals{ViewportWidth: 1440, ViewportHeight: 900, MaxTouchPoints: 10})
	assert.Equal(t, Desktop, p.Class)
	assert.True(t, p.HasTouch)
	assert.Equal(t, Landscape, p.Orientation)

	p = Resolve(&Signals{ViewportWidth: 375, ViewportHeight: 812, TouchEvents: true})
	assert.Equal(t, Mobile, p.Class)
	assert.True(t, p.HasTouch)
	assert.Equal(t, Portrait, p.Orientation)

	p = Resolve(&Signals{ViewportWidth: 600, ViewportHeight: 400})
	assert.Equal(t, Mobile, p.Class)
	assert.False(t, p.HasTouch)
}

func TestResolveSquareViewportIsLandscape(t *testing.T) {
	p := Resolve(&Signals{ViewportWidth: 800, ViewportHeight: 800})
	assert.Equal(t, Landscape, p.Orientation)
	assert.Equal(t, Tablet, p.Class)
}

func TestResolveWithoutEnvironmentReturnsDefault(t *testing.T) {
	assert.Equal(t, Default(), Resolve(nil))
	assert.Equal(t, Profile{Class: Desktop, Orientation: Landscape}, Default())
}

func TestResolveFallsBackToHint(t *testing.T) {
	p := Resolve(&Signals{Hint: Mobile})
	assert.Equal(t, Mobile, p.Class)
	assert.Equal(t, Portrait, p.Orientation)

	p = Resolve(&Signals{Hint: Tablet, MaxTouchPoints: 5})
	assert.Equal(t, Tablet, p.Class)
	assert.True(t, p.HasTouch)

	// 宽度已知时忽略 hint
	p = Resolve(&Signals{ViewportWidth: 1280, ViewportHeight: 720, Hint: Mobile})
	assert.Equal(t, Desktop, p.Class)
}

func TestCustomBreakpoints(t *testing.T) {
	bp := Breakpoints{MobileMax: 600, TabletMax: 900}
	assert.Equal(t, Tablet, bp.Classify(768))
	assert.Equal(t, Desktop, bp.Classify(1000))
}

func TestSignalsFromRequest(t *testing.T) {
	t.Run("explicit headers", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Viewport-Width", "390")
		r.Header.Set("X-Viewport-Height", "844")
		r.Header.Set("X-Touch-Points", "5")

		sig := SignalsFromRequest(r)
		require.NotNil(t, sig)
		assert.Equal(t, 390, sig.ViewportWidth)
		assert.Equal(t, 844, sig.ViewportHeight)
		assert.Equal(t, 5, sig.MaxTouchPoints)
	})

	t.Run("client hint with fraction", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Viewport-Width", "1280.5")

		sig := SignalsFromRequest(r)
		require.NotNil(t, sig)
		assert.Equal(t, 1280, sig.ViewportWidth)
	})

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: ViewportCookie, Value: "1024x768"})

		sig := SignalsFromRequest(r)
		require.NotNil(t, sig)
		assert.Equal(t, 1024, sig.ViewportWidth)
		assert.Equal(t, 768, sig.ViewportHeight)
		assert.Equal(t, Tablet, Resolve(sig).Class)
	})

	t.Run("mobile client hint", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Sec-CH-UA-Mobile", "?1")

		sig := SignalsFromRequest(r)
		require.NotNil(t, sig)
		assert.Equal(t, Mobile, sig.Hint)
	})

	t.Run("iphone user agent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")

		sig := SignalsFromRequest(r)
		require.NotNil(t, sig)
		assert.Equal(t, Mobile, sig.Hint)
	})

	t.Run("nothing usable", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: ViewportCookie, Value: "garbage"})
		assert.Nil(t, SignalsFromRequest(r))
	})
}
