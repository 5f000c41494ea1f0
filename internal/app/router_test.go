package app

import (
	"bytes"
	"color_academy_backend/internal/config"
	"color_academy_backend/pkg/database"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Mode: "test"},
		JWT:      config.JWTConfig{Secret: "router-test-secret", CookieName: "ca_session", ExpireTime: time.Hour},
		Storage:  config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Device:   config.DeviceConfig{MobileMaxWidth: 768, TabletMaxWidth: 1024, TabletVariant: "desktop"},
		Progress: config.ProgressConfig{Backend: "database", KeyPrefix: "tutorial-progress"},
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)

	db, err := database.OpenMemory()
	require.NoError(t, err)

	a := &App{Config: cfg, DB: db}
	repos := a.initRepositories(db, nil)
	s := a.initServices(repos, cfg, db)
	a.services = s
	c := a.initControllers(s, db, nil)
	t.Cleanup(s.hub.Stop)

	router := gin.New()
	a.setupMiddlewares(router, cfg)
	a.registerRoutes(router, c, cfg)
	return router
}

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Retryable bool            `json:"retryable"`
}

func call(t *testing.T, r *gin.Engine, method, path, token string, body interface{}, headers ...string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func login(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	code, _ := call(t, r, "POST", "/api/register", "", gin.H{"name": "Ana", "email": email, "password": "colorist-123"})
	require.Equal(t, http.StatusCreated, code)

	code, env := call(t, r, "POST", "/api/login", "", gin.H{"email": email, "password": "colorist-123"})
	require.Equal(t, http.StatusOK, code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestAuthFlow(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "ana@example.com")

	code, _ := call(t, r, "POST", "/api/register", "", gin.H{"name": "Ana", "email": "ANA@example.com", "password": "colorist-123"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = call(t, r, "POST", "/api/login", "", gin.H{"email": "ana@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := call(t, r, "GET", "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "ana@example.com")
	assert.NotContains(t, string(env.Data), "password")

	code, _ = call(t, r, "GET", "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, r, "POST", "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)

	// 未启用第三方认证
	code, _ = call(t, r, "GET", "/auth/login", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPageRouting(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "ana@example.com")

	code, env := call(t, r, "GET", "/api/pages", "", nil)
	require.Equal(t, http.StatusOK, code)
	var pages []struct {
		ID           string `json:"id"`
		RequiresAuth bool   `json:"requiresAuth"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pages))
	assert.Len(t, pages, 6)

	code, _ = call(t, r, "GET", "/api/pages/tutorials", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = call(t, r, "GET", "/api/pages/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	var route struct {
		Variant string `json:"variant"`
		Profile struct {
			Class string `json:"class"`
		} `json:"profile"`
	}

	code, env = call(t, r, "GET", "/api/pages/tutorials", token, nil, "X-Viewport-Width", "500")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &route))
	assert.Equal(t, "mobile", route.Variant)
	assert.Equal(t, "mobile", route.Profile.Class)

	code, env = call(t, r, "GET", "/api/pages/home", "", nil, "X-Viewport-Width", "900")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &route))
	assert.Equal(t, "desktop", route.Variant)
	assert.Equal(t, "tablet", route.Profile.Class)

	// 没有任何信号
	code, env = call(t, r, "GET", "/api/pages/home", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &route))
	assert.Equal(t, "desktop", route.Variant)
}

type courseView struct {
	Percent  int                        `json:"percent"`
	Chapters map[string]json.RawMessage `json:"chapters"`
}

func TestProgressEndpoints(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "ana@example.com")

	code, env := call(t, r, "PUT", "/api/progress/beginner/chapters/levels-101", token, gin.H{"completed": true, "score": 92.5})
	require.Equal(t, http.StatusOK, code)
	var view courseView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 100, view.Percent)

	code, env = call(t, r, "PUT", "/api/progress/beginner/chapters/undertones", token, gin.H{"completed": false})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 50, view.Percent)
	assert.Len(t, view.Chapters, 2)

	code, _ = call(t, r, "PUT", "/api/progress/beginner/chapters/levels-101", token, gin.H{"completed": false})
	assert.Equal(t, http.StatusConflict, code)

	code, env = call(t, r, "POST", "/api/progress/beginner/chapters/levels-101/reset", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 0, view.Percent)

	code, _ = call(t, r, "GET", "/api/progress/advanced", token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, r, "PUT", "/api/progress/current", token, gin.H{"chapterId": "undertones"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"currentChapterId":"undertones"`)

	code, _ = call(t, r, "POST", "/api/progress/expert/reset", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, r, "POST", "/api/progress/reset", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, r, "GET", "/api/progress/beginner", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Empty(t, view.Chapters)

	code, _ = call(t, r, "GET", "/api/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFormulaEndpoints(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "ana@example.com")
	other := login(t, r, "bo@example.com")

	code, _ := call(t, r, "POST", "/api/formulas", token, gin.H{"name": "Cool ash 7", "baseLevel": 6, "targetLevel": 7, "developer": 20, "mixRatio": "1:1.5"})
	require.Equal(t, http.StatusCreated, code)

	code, _ = call(t, r, "POST", "/api/formulas", token, gin.H{"name": "Bad", "baseLevel": 12, "targetLevel": 7, "developer": 20})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, "POST", "/api/solver", token, gin.H{"startLevel": 4, "targetLevel": 8, "undertone": "orange", "result": "lift"})
	require.Equal(t, http.StatusCreated, code)

	var list struct {
		List  []map[string]interface{} `json:"list"`
		Total int                      `json:"total"`
	}
	code, env := call(t, r, "GET", "/api/formulas", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Cool ash 7", list.List[0]["name"])

	code, env = call(t, r, "GET", "/api/formulas", other, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 0, list.Total)

	code, env = call(t, r, "GET", "/api/solver?limit=1", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.List, 1)

	code, env = call(t, r, "GET", "/api/images", token, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 0, list.Total)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r, "ana@example.com")

	code, _ := call(t, r, "GET", "/api/admin/viewport", token, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	code, env := call(t, r, "GET", "/api/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"database":"up"`)
}

func TestSwaggerDocDeclaresAuthScheme(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest("GET", "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		SecurityDefinitions map[string]struct {
			Type string `json:"type"`
			Name string `json:"name"`
			In   string `json:"in"`
		} `json:"securityDefinitions"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	scheme, ok := doc.SecurityDefinitions["ApiKeyAuth"]
	require.True(t, ok)
	assert.Equal(t, "apiKey", scheme.Type)
	assert.Equal(t, "Authorization", scheme.Name)
	assert.Equal(t, "header", scheme.In)
	assert.Contains(t, string(doc.Paths["/api/progress"]), "ApiKeyAuth")
}
