package middleware

import (
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/device"
	"color_academy_backend/internal/model"
	"color_academy_backend/internal/service"
	"color_academy_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: testSecret, CookieName: "ca_session", ExpireTime: time.Hour}}
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, claims.Email)
	})
	r.GET("/", handlers...)
	return r
}

func token(t *testing.T, role model.UserRole) string {
	t.Helper()
	tok, err := util.GenerateJWT(&model.User{BaseModel: model.BaseModel{ID: 1}, Email: "ana@example.com", Role: role}, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareTokenSources(t *testing.T) {
	r := newRouter(AuthMiddleware(testConfig()))
	tok := token(t, model.Learner)

	w := serve(r, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", w.Body.String())

	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "ca_session", Value: tok})
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest("GET", "/?token="+tok, nil)).Code)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestTryAuthMiddleware(t *testing.T) {
	r := newRouter(TryAuthMiddleware(testConfig()))

	w := serve(r, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "anonymous", w.Body.String())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	assert.Equal(t, "anonymous", serve(r, req).Body.String())

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, model.Learner))
	assert.Equal(t, "ana@example.com", serve(r, req).Body.String())
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(testConfig()), RoleMiddleware(model.Instructor))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, model.Learner))
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, model.Admin))
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestDeviceMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewDeviceService(&config.DeviceConfig{MobileMaxWidth: 768, TabletMaxWidth: 1024, TabletVariant: "desktop"})

	var got device.Profile
	r := gin.New()
	r.GET("/", DeviceMiddleware(svc), func(c *gin.Context) {
		got = ProfileFromContext(c)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Viewport-Width", "800")
	serve(r, req)
	assert.Equal(t, device.Tablet, got.Class)

	serve(r, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, device.Default(), got)
}
