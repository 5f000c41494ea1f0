package service

import (
	"color_academy_backend/internal/auth"
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/device"
	"color_academy_backend/internal/selector"
	"color_academy_backend/pkg/logger"
	"color_academy_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

// 客户端上行消息类型
const (
	MsgViewport = "VIEWPORT"
	MsgRetry    = "RETRY"
	MsgLogout   = "LOGOUT"
)

// WSMessage 下行消息
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ViewportEvent resize / orientationchange 时客户端上报的环境信号
type ViewportEvent struct {
	Width       int  `json:"width"`
	Height      int  `json:"height"`
	TouchPoints int  `json:"touchPoints"`
	TouchEvents bool `json:"touchEvents"`
}

func (e ViewportEvent) signals() device.Signals {
	return device.Signals{
		ViewportWidth:  e.Width,
		ViewportHeight: e.Height,
		MaxTouchPoints: e.TouchPoints,
		TouchEvents:    e.TouchEvents,
	}
}

// ViewportSession 一个浏览器标签页上的一个页面槽位
type ViewportSession struct {
	ID     string
	UserID uint

	hub     *ViewportHub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	authn   *auth.SessionAuthenticator
	watcher *device.Watcher
	host    *selector.Host
	unwatch func()

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	stopOnce sync.Once
}

// emit 非阻塞，连接关闭后静默丢弃
func (s *ViewportSession) emit(msgType string, data interface{}) {
	payload, err := json.Marshal(WSMessage{Type: msgType, Data: data})
	if err != nil {
		logger.Log.Error("viewport: encode message failed", zap.String("type", msgType), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- payload:
		monitoring.ViewportMessages.WithLabelValues(msgType, "out").Inc()
	default:
		logger.Log.Warn("viewport: send buffer full, dropping message", zap.String("session", s.ID), zap.String("type", msgType))
	}
}

// Host 当前页面槽位
func (s *ViewportSession) Host() *selector.Host {
	return s.host
}

func (s *ViewportSession) handle(msg inboundMessage) {
	monitoring.ViewportMessages.WithLabelValues(msg.Type, "in").Inc()

	switch msg.Type {
	case MsgViewport:
		var ev ViewportEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		s.watcher.Update(ev.signals())
	case MsgRetry:
		s.host.Reset()
	case MsgLogout:
		s.authn.SignOut()
	}
}

func (s *ViewportSession) readPump() {
	defer s.stop()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warn("viewport: unexpected close", zap.String("session", s.ID), zap.Error(err))
			}
			return
		}

		// resize 事件频繁，超出速率的直接丢弃，下一次事件会带上最新尺寸
		if !s.limiter.Allow() {
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		s.handle(msg)
	}
}

func (s *ViewportSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// stop 卸载页面并释放该连接持有的全部订阅
func (s *ViewportSession) stop() {
	s.stopOnce.Do(func() {
		s.unwatch()
		s.host.Close()
		s.watcher.Close()
		s.cancel()

		s.mu.Lock()
		s.closed = true
		close(s.send)
		s.mu.Unlock()

		s.hub.unregister(s)
	})
}

// ViewportHub 管理所有实时连接，配置热更新时同步到每个连接
type ViewportHub struct {
	Pages    *selector.Registry
	Device   *DeviceService
	Progress *ProgressService
	Formulas *FormulaService
	Images   *ImageService

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*ViewportSession
}

func NewViewportHub(pages *selector.Registry, dev *DeviceService, prog *ProgressService, formulas *FormulaService, images *ImageService, allowedOrigins []string) *ViewportHub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &ViewportHub{
		Pages:    pages,
		Device:   dev,
		Progress: prog,
		Formulas: formulas,
		Images:   images,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin] || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
		sessions: make(map[string]*ViewportSession),
	}
}

func (h *ViewportHub) register(s *ViewportSession) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	monitoring.ViewportSessions.Inc()
}

func (h *ViewportHub) unregister(s *ViewportSession) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if ok {
		monitoring.ViewportSessions.Dec()
	}
}

func (h *ViewportHub) snapshot() []*ViewportSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*ViewportSession, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

func (h *ViewportHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// ApplyDeviceConfig 新断点与平板策略立即作用于所有连接
func (h *ViewportHub) ApplyDeviceConfig(cfg *config.DeviceConfig) {
	if !h.Device.Apply(cfg) {
		return
	}
	bp := h.Device.Breakpoints()
	policy := h.Device.Policy()
	sessions := h.snapshot()
	for _, s := range sessions {
		s.watcher.SetBreakpoints(bp)
		s.host.SetPolicy(policy)
	}
	logger.Log.Info("viewport: device config applied", zap.Int("sessions", len(sessions)))
}

// SignOutUser 通知该用户的所有连接，受保护页面随即卸载并跳转
func (h *ViewportHub) SignOutUser(userID uint) {
	for _, s := range h.snapshot() {
		if s.UserID == userID && userID != 0 {
			s.authn.SignOut()
		}
	}
}

// Stop 关闭所有连接
func (h *ViewportHub) Stop() {
	sessions := h.snapshot()
	for _, s := range sessions {
		s.stop()
	}
	logger.Log.Info("ViewportHub stopped", zap.Int("closedConnections", len(sessions)))
}

// Serve 升级连接并挂载页面。sig 为握手请求中的设备信号，可以为 nil。
func (h *ViewportHub) Serve(w http.ResponseWriter, r *http.Request, page selector.Page, user *auth.User, sig *device.Signals) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.String("page", page.ID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &ViewportSession{
		ID:      uuid.NewString(),
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		authn:   auth.NewSessionAuthenticator(user),
		watcher: device.NewWatcher(h.Device.Breakpoints(), h.Device.Debounce()),
		ctx:     ctx,
		cancel:  cancel,
	}
	if user != nil {
		s.UserID = user.ID
	}
	if sig != nil {
		s.watcher.Update(*sig)
		s.watcher.Flush()
	}

	s.host = selector.NewHost(page, h.Device.Policy(), s.authn)
	s.host.OnChange(func(region selector.Region) {
		if region.Status == selector.StatusMounted {
			monitoring.VariantMounts.WithLabelValues(region.Page, string(region.Variant)).Inc()
		}
		s.emit(MsgRegion, region)
	})

	go s.writePump()

	env := &ViewEnv{
		Authn:    s.authn,
		Emit:     s.emit,
		Progress: h.Progress,
		Formulas: h.Formulas,
		Images:   h.Images,
	}
	s.host.Start(WithViewEnv(ctx, env), s.watcher.Current())
	s.unwatch = s.watcher.Subscribe(s.host.UpdateProfile)

	h.register(s)
	go s.readPump()
}
