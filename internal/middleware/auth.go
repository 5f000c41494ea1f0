package middleware

import (
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/model"
	"color_academy_backend/internal/util"
	"color_academy_backend/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// tokenFromRequest 依次读取 Authorization 头、会话 cookie 与 token 查询参数。
// WebSocket 握手无法携带自定义头，只能走后两种。
func tokenFromRequest(c *gin.Context, cookieName string) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if token := strings.TrimPrefix(authHeader, "Bearer "); token != "" {
			return token
		}
	}
	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			return token
		}
	}
	return c.Query("token")
}

func parseClaims(c *gin.Context, cfg *config.Config) (*util.Claims, bool) {
	tokenString := tokenFromRequest(c, cfg.JWT.CookieName)
	if tokenString == "" {
		return nil, false
	}

	claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
	if err != nil {
		logger.Log.Debug("JWT parse failed", zap.String("path", c.FullPath()), zap.Error(err))
		return nil, false
	}
	return claims, true
}

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseClaims(c, cfg)
		if !ok {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set(util.ContextUserKey, claims)
		c.Next()
	}
}

// TryAuthMiddleware 公开接口使用：有合法令牌时设置用户，否则按匿名继续
func TryAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseClaims(c, cfg); ok {
			c.Set(util.ContextUserKey, claims)
		}
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			// 管理员直接放行
			if user.Role == model.Admin || user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
