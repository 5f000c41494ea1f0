package device

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mssola/useragent"
)

const ViewportCookie = "viewport"

// SignalsFromRequest 从客户端提示头、自定义头、cookie 与 UA 中提取环境信号。
// 没有任何可用信号时返回 nil。
func SignalsFromRequest(r *http.Request) *Signals {
	sig := &Signals{}
	found := false

	if w := firstInt(r.Header, "X-Viewport-Width", "Sec-CH-Viewport-Width", "Viewport-Width"); w > 0 {
		sig.ViewportWidth = w
		found = true
	}
	if h := firstInt(r.Header, "X-Viewport-Height", "Sec-CH-Viewport-Height"); h > 0 {
		sig.ViewportHeight = h
	}

	// cookie 格式: 1280x720
	if sig.ViewportWidth == 0 {
		if c, err := r.Cookie(ViewportCookie); err == nil {
			if w, h, ok := parseViewport(c.Value); ok {
				sig.ViewportWidth = w
				sig.ViewportHeight = h
				found = true
			}
		}
	}

	if n := firstInt(r.Header, "X-Touch-Points"); n > 0 {
		sig.MaxTouchPoints = n
		found = true
	}
	if v := r.Header.Get("X-Touch-Events"); v == "1" || strings.EqualFold(v, "true") {
		sig.TouchEvents = true
		found = true
	}

	if hint := hintFromRequest(r); hint != "" {
		sig.Hint = hint
		found = true
	}

	if !found {
		return nil
	}
	return sig
}

func hintFromRequest(r *http.Request) Class {
	switch r.Header.Get("Sec-CH-UA-Mobile") {
	case "?1":
		return Mobile
	case "?0":
		return Desktop
	}

	raw := r.Header.Get("User-Agent")
	if raw == "" {
		return ""
	}

	ua := useragent.New(raw)
	if ua.Bot() {
		return ""
	}
	if ua.Platform() == "iPad" {
		return Tablet
	}
	if ua.Mobile() {
		return Mobile
	}
	if strings.Contains(ua.OS(), "Android") {
		// Android 非 Mobile 的 UA 基本是平板
		return Tablet
	}
	return ""
}

func parseViewport(v string) (int, int, bool) {
	parts := strings.SplitN(strings.ToLower(v), "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h < 0 {
		return 0, 0, false
	}
	return w, h, true
}

func firstInt(h http.Header, keys ...string) int {
	for _, k := range keys {
		v := strings.TrimSpace(h.Get(k))
		if v == "" {
			continue
		}
		// Viewport-Width 可能带小数
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return int(f)
		}
	}
	return 0
}
