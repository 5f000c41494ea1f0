package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"color_academy_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAuthenticator(t *testing.T) {
	a := NewSessionAuthenticator(nil)

	u, err := a.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)

	var events []*User
	unsub := a.OnAuthStateChange(func(u *User) { events = append(events, u) })
	assert.Equal(t, 1, a.ListenerCount())

	a.SignIn(&User{ID: 5, Email: "a@b.c"})
	u, err = a.CurrentUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, uint(5), u.ID)

	a.SignOut()
	require.Len(t, events, 2)
	assert.Equal(t, uint(5), events[0].ID)
	assert.Nil(t, events[1])

	unsub()
	unsub()
	assert.Equal(t, 0, a.ListenerCount())

	a.SignIn(&User{ID: 6})
	assert.Len(t, events, 2)
}

func TestSessionAuthenticatorCancelledContext(t *testing.T) {
	a := NewSessionAuthenticator(&User{ID: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.CurrentUser(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func newOAuthServer(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Identity{Subject: "sub-1", Email: email, Name: "Ana"})
	})
	return httptest.NewServer(mux)
}

func oauthConfig(base string) *config.OAuthConfig {
	return &config.OAuthConfig{
		Enabled:      true,
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      base + "/authorize",
		TokenURL:     base + "/token",
		UserInfoURL:  base + "/userinfo",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scopes:       []string{"openid", "email"},
	}
}

func TestOAuthProviderDisabled(t *testing.T) {
	p := NewOAuthProvider(&config.OAuthConfig{})
	assert.Nil(t, p)
	_, err := p.Complete(context.Background(), "s", "s", "c")
	assert.ErrorIs(t, err, ErrOAuthDisabled)
}

func TestOAuthProviderComplete(t *testing.T) {
	srv := newOAuthServer(t, "ana@example.com")
	defer srv.Close()

	p := NewOAuthProvider(oauthConfig(srv.URL))
	require.NotNil(t, p)

	state := NewState()
	u, err := url.Parse(p.AuthCodeURL(state))
	require.NoError(t, err)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))

	id, err := p.Complete(context.Background(), state, state, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", id.Email)
	assert.Equal(t, "sub-1", id.Subject)
}

func TestOAuthProviderRejectsBadInput(t *testing.T) {
	srv := newOAuthServer(t, "")
	defer srv.Close()
	p := NewOAuthProvider(oauthConfig(srv.URL))

	_, err := p.Complete(context.Background(), "expected", "other", "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = p.Complete(context.Background(), "", "", "good-code")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = p.Complete(context.Background(), "s", "s", "")
	assert.Error(t, err)

	_, err = p.Complete(context.Background(), "s", "s", "bad-code")
	assert.Error(t, err)

	// userinfo 缺少邮箱
	_, err = p.Complete(context.Background(), "s", "s", "good-code")
	assert.Error(t, err)
}
