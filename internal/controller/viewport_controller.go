package controller

import (
	"color_academy_backend/internal/device"
	"color_academy_backend/internal/selector"
	"color_academy_backend/internal/service"
	"color_academy_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type ViewportController struct {
	Hub *service.ViewportHub
}

func NewViewportController(hub *service.ViewportHub) *ViewportController {
	return &ViewportController{Hub: hub}
}

// HandleWS godoc
// @Summary 实时页面连接
// @Description 建立 WebSocket 连接。客户端在 resize / orientationchange 时发送 VIEWPORT，
// @Description 服务端推送 REGION 状态与已挂载变体的数据（VIEW / PROGRESS / RECORDS）。
// @Tags 页面
// @Param   page query string true "页面标识"
// @Param   token query string false "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Failure 404 {object} util.Response "页面不存在"
// @Router /api/ws/viewport [get]
func (c *ViewportController) HandleWS(ctx *gin.Context) {
	page, err := c.Hub.Pages.Lookup(ctx.Query("page"))
	if err != nil {
		if errors.Is(err, selector.ErrPageNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	// 未登录也允许连接，受保护页面由 Host 返回 redirect 状态
	user := util.GetUserFromContext(ctx).AuthUser()
	c.Hub.Serve(ctx.Writer, ctx.Request, page, user, device.SignalsFromRequest(ctx.Request))
}

// ViewportStats godoc
// @Summary 实时连接状态
// @Description 当前连接数与生效中的断点、平板策略
// @Tags 管理
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/admin/viewport [get]
func (c *ViewportController) ViewportStats(ctx *gin.Context) {
	util.Success(ctx, gin.H{
		"sessions":    c.Hub.Count(),
		"breakpoints": c.Hub.Device.Breakpoints(),
		"policy":      c.Hub.Device.Policy(),
	})
}
