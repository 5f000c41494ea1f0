package middleware

import (
	"color_academy_backend/internal/device"
	"color_academy_backend/internal/service"
	"color_academy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// DeviceMiddleware 解析请求中的设备信号，结果放入上下文
func DeviceMiddleware(svc *service.DeviceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(util.ContextProfileKey, svc.ProfileFromRequest(c.Request))
		c.Next()
	}
}

// ProfileFromContext 中间件未执行时返回默认 Profile
func ProfileFromContext(c *gin.Context) device.Profile {
	if v, ok := c.Get(util.ContextProfileKey); ok {
		if p, ok := v.(device.Profile); ok {
			return p
		}
	}
	return device.Default()
}
