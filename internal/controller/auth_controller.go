package controller

import (
	"color_academy_backend/internal/auth"
	"color_academy_backend/internal/model"
	"color_academy_backend/internal/service"
	"color_academy_backend/internal/util"
	"color_academy_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const oauthStateCookie = "ca_oauth_state"

type AuthController struct {
	AuthService *service.AuthService
	OAuth       *auth.OAuthProvider
	Hub         *service.ViewportHub
	Progress    *service.ProgressService
	IsRelease   bool // 是否为生产环境
}

func NewAuthController(authService *service.AuthService, oauth *auth.OAuthProvider, hub *service.ViewportHub, progress *service.ProgressService, isRelease bool) *AuthController {
	return &AuthController{
		AuthService: authService,
		OAuth:       oauth,
		Hub:         hub,
		Progress:    progress,
		IsRelease:   isRelease,
	}
}

// RegisterRequest defines model for registration
// swagger:model RegisterRequest
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=learner instructor"`
}

// Register godoc
// @Summary 注册新用户
// @Description 使用邮箱与密码注册本地账号
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body RegisterRequest true "用户注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.UserRole(req.Role),
	}

	if err := c.AuthService.Register(user); err != nil {
		if errors.Is(err, util.ErrEmailRegistered) {
			util.Conflict(ctx, "该邮箱已被注册")
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, gin.H{"id": user.ID})
}

// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login godoc
// @Summary 用户登录
// @Description 验证用户身份，返回 JWT 并写入会话 cookie
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "用户登录凭据"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, user, err := c.AuthService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, util.ErrExternalAccountOnly) {
			util.Error(ctx, http.StatusUnauthorized, "该账号仅支持第三方登录")
			return
		}
		util.Unauthorized(ctx)
		return
	}

	c.setSession(ctx, token)
	util.Success(ctx, gin.H{"token": token, "user": user})
}

func (c *AuthController) setSession(ctx *gin.Context, token string) {
	cfg := c.AuthService.Cfg.JWT
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(cfg.CookieName, token, int(cfg.ExpireTime.Seconds()), "/", "", c.IsRelease, true)
}

// OAuthLogin godoc
// @Summary 第三方登录
// @Description 跳转到认证服务的授权页面
// @Tags 认证
// @Success 302 {string} string "跳转"
// @Failure 404 {object} util.Response "未启用第三方登录"
// @Router /auth/login [get]
func (c *AuthController) OAuthLogin(ctx *gin.Context) {
	if c.OAuth == nil {
		util.NotFound(ctx)
		return
	}

	state := auth.NewState()
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(oauthStateCookie, state, 600, "/auth", "", c.IsRelease, true)
	ctx.Redirect(http.StatusFound, c.OAuth.AuthCodeURL(state))
}

// OAuthCallback godoc
// @Summary 第三方登录回调
// @Description 校验 state，用授权码换取用户信息并建立会话
// @Tags 认证
// @Param   code query string true "授权码"
// @Param   state query string true "state"
// @Success 200 {object} util.Response{data=object} "成功"
// @Success 302 {string} string "跳转到前端"
// @Failure 400 {object} util.Response "state 不匹配"
// @Failure 502 {object} util.Response "认证服务不可用"
// @Router /auth/callback [get]
func (c *AuthController) OAuthCallback(ctx *gin.Context) {
	if c.OAuth == nil {
		util.NotFound(ctx)
		return
	}

	expected, _ := ctx.Cookie(oauthStateCookie)
	ctx.SetCookie(oauthStateCookie, "", -1, "/auth", "", c.IsRelease, true)

	identity, err := c.OAuth.Complete(ctx.Request.Context(), expected, ctx.Query("state"), ctx.Query("code"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidState) {
			util.BadRequest(ctx, err.Error())
			return
		}
		util.Unavailable(ctx, err)
		return
	}

	token, user, err := c.AuthService.LoginWithIdentity(identity)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	c.setSession(ctx, token)
	if success := c.AuthService.Cfg.OAuth.SuccessURL; success != "" {
		ctx.Redirect(http.StatusFound, success)
		return
	}
	util.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout godoc
// @Summary 退出登录
// @Description 清除会话 cookie，该用户所有实时连接上的受保护页面随即卸载
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response "成功"
// @Router /api/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	if claims := util.GetUserFromContext(ctx); claims != nil {
		if c.Hub != nil {
			c.Hub.SignOutUser(claims.UserID)
		}
		if c.Progress != nil {
			c.Progress.Evict(claims.UserID)
		}
		logger.Log.Info("User logged out", zap.Uint("userId", claims.UserID))
	}

	ctx.SetCookie(c.AuthService.Cfg.JWT.CookieName, "", -1, "/", "", c.IsRelease, true)
	util.Success(ctx, nil)
}

// GetProfile godoc
// @Summary 获取当前用户资料
// @Description 获取当前已认证用户的个人资料
// @Tags 认证
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.User} "Success"
// @Failure 401 {object} util.Response "Unauthorized"
// @Router /api/profile [get]
func (c *AuthController) GetProfile(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	util.Success(ctx, user)
}
