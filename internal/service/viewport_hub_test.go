package service

import (
	"color_academy_backend/internal/auth"
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/device"
	"color_academy_backend/internal/gateway"
	"color_academy_backend/internal/progress"
	"color_academy_backend/pkg/database"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hubFixture struct {
	hub      *ViewportHub
	progress *ProgressService
	formulas *FormulaService
	server   *httptest.Server
}

func testDeviceConfig() *config.DeviceConfig {
	return &config.DeviceConfig{MobileMaxWidth: 768, TabletMaxWidth: 1024, TabletVariant: "desktop"}
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	gw, err := gateway.NewGormGateway(db)
	require.NoError(t, err)

	f := &hubFixture{
		progress: NewProgressService(nil, "test"),
		formulas: NewFormulaService(gw),
	}
	f.hub = NewViewportHub(NewPageRegistry(), NewDeviceService(testDeviceConfig()), f.progress, f.formulas, NewImageService(nil, gw), nil)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := f.hub.Pages.Lookup(r.URL.Query().Get("page"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		var user *auth.User
		if r.URL.Query().Get("anon") == "" {
			user = &auth.User{ID: 7, Email: "ana@example.com"}
		}
		f.hub.Serve(w, r, page, user, device.SignalsFromRequest(r))
	}))
	t.Cleanup(func() {
		f.hub.Stop()
		f.server.Close()
	})
	return f
}

func (f *hubFixture) dial(t *testing.T, query string, width string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?" + query
	header := http.Header{}
	if width != "" {
		header.Set("X-Viewport-Width", width)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	return conn
}

type received struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// readUntil 消息顺序不固定，读到满足条件的为止
func readUntil(t *testing.T, conn *websocket.Conn, match func(received) bool) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg received
		require.NoError(t, json.Unmarshal(raw, &msg))
		if match(msg) {
			return msg
		}
	}
}

func region(status, variant string) func(received) bool {
	return func(m received) bool {
		return m.Type == MsgRegion && m.Data["status"] == status && (variant == "" || m.Data["variant"] == variant)
	}
}

func ofType(msgType string) func(received) bool {
	return func(m received) bool { return m.Type == msgType }
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": msgType, "data": data}))
}

func TestViewportSessionLifecycle(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "page="+PageTutorials, "1200")
	defer conn.Close()

	readUntil(t, conn, region("mounted", "desktop"))
	msg := readUntil(t, conn, ofType(MsgProgress))
	assert.Equal(t, "desktop", msg.Data["variant"])
	assert.Contains(t, msg.Data, "courses")

	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	store, err := f.progress.StoreFor(context.Background(), 7)
	require.NoError(t, err)

	// 其它入口写入的进度推送到已挂载的视图
	require.NoError(t, f.progress.SetChapterProgress(context.Background(), 7, progress.Beginner, "c1",
		progress.ChapterProgress{ChapterID: "c1", Completed: true, LastVisitedAt: time.Now()}))
	msg = readUntil(t, conn, func(m received) bool {
		if m.Type != MsgProgress {
			return false
		}
		summary, _ := m.Data["summary"].([]interface{})
		if len(summary) == 0 {
			return false
		}
		first, _ := summary[0].(map[string]interface{})
		return first["completed"] == float64(1)
	})
	assert.Equal(t, "desktop", msg.Data["variant"])

	send(t, conn, MsgViewport, ViewportEvent{Width: 600, Height: 900, TouchPoints: 5})
	readUntil(t, conn, region("mounted", "mobile"))
	msg = readUntil(t, conn, ofType(MsgProgress))
	assert.Equal(t, "mobile", msg.Data["variant"])
	assert.NotContains(t, msg.Data, "courses")
	assert.Equal(t, 1, store.SubscriberCount())

	send(t, conn, MsgLogout, nil)
	readUntil(t, conn, region("redirect", ""))
	assert.Eventually(t, func() bool { return store.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestViewportSessionClosingReleasesSubscriptions(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "page="+PageTutorials, "1200")

	readUntil(t, conn, ofType(MsgProgress))
	store, err := f.progress.StoreFor(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, store.SubscriberCount())

	conn.Close()
	assert.Eventually(t, func() bool {
		return f.hub.Count() == 0 && store.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestViewportGatedPageRedirectsAnonymous(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "anon=1&page="+PageMixing, "1200")
	defer conn.Close()

	readUntil(t, conn, region("redirect", ""))
}

func TestViewportPublicPage(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "anon=1&page="+PageHome, "")
	defer conn.Close()

	// 没有任何信号时按默认 Profile（桌面）渲染
	readUntil(t, conn, region("mounted", "desktop"))
	msg := readUntil(t, conn, ofType(MsgView))
	assert.Equal(t, "sidebar", msg.Data["layout"])
}

func TestViewportRecordsPage(t *testing.T) {
	f := newHubFixture(t)
	for i := 0; i < 7; i++ {
		_, err := f.formulas.SaveFormula(context.Background(), 7, &FormulaRequest{Name: "Ash", BaseLevel: 6, TargetLevel: 7, Developer: 20})
		require.NoError(t, err)
	}
	_, err := f.formulas.SaveFormula(context.Background(), 8, &FormulaRequest{Name: "Other", BaseLevel: 5, TargetLevel: 5})
	require.NoError(t, err)

	conn := f.dial(t, "page="+PageMixing, "1200")
	defer conn.Close()
	msg := readUntil(t, conn, ofType(MsgRecords))
	records, _ := msg.Data["records"].([]interface{})
	assert.Len(t, records, 7)

	mobile := f.dial(t, "page="+PageMixing, "400")
	defer mobile.Close()
	msg = readUntil(t, mobile, ofType(MsgRecords))
	records, _ = msg.Data["records"].([]interface{})
	assert.Len(t, records, mobileListLimit)
}

func TestApplyDeviceConfigSwapsLiveSessions(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "page="+PageQuiz, "900")
	defer conn.Close()

	readUntil(t, conn, region("mounted", "desktop"))
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	// 相同配置不触发任何切换
	f.hub.ApplyDeviceConfig(testDeviceConfig())

	cfg := testDeviceConfig()
	cfg.TabletVariant = "mobile"
	f.hub.ApplyDeviceConfig(cfg)
	readUntil(t, conn, region("mounted", "mobile"))
}

func TestSignOutUserRedirectsOnlyThatUser(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t, "page="+PageSolver, "1200")
	defer conn.Close()
	readUntil(t, conn, region("mounted", "desktop"))
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	f.hub.SignOutUser(99)
	f.hub.SignOutUser(7)
	readUntil(t, conn, region("redirect", ""))
}
