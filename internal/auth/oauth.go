package auth

import (
	"color_academy_backend/internal/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	ErrOAuthDisabled = errors.New("oauth provider is not configured")
	ErrInvalidState  = errors.New("invalid oauth state")
)

// Identity 外部认证服务返回的用户信息
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// OAuthProvider 授权码模式的回调处理
type OAuthProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewOAuthProvider(cfg *config.OAuthConfig) *OAuthProvider {
	if !cfg.Enabled {
		return nil
	}
	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

// NewState 用于 CSRF 校验的随机 state
func NewState() string {
	return uuid.NewString()
}

func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Complete 校验 state、用授权码换取 token 并获取用户信息
func (p *OAuthProvider) Complete(ctx context.Context, expectedState, state, code string) (*Identity, error) {
	if p == nil {
		return nil, ErrOAuthDisabled
	}
	if expectedState == "" || state != expectedState {
		return nil, ErrInvalidState
	}
	if code == "" {
		return nil, errors.New("authorization code is missing")
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	return p.fetchIdentity(ctx, token)
}

func (p *OAuthProvider) fetchIdentity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed: status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if id.Email == "" {
		return nil, errors.New("userinfo has no email")
	}
	return &id, nil
}
