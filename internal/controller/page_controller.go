package controller

import (
	"color_academy_backend/internal/device"
	"color_academy_backend/internal/middleware"
	"color_academy_backend/internal/selector"
	"color_academy_backend/internal/service"
	"color_academy_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type PageController struct {
	Pages  *selector.Registry
	Device *service.DeviceService
}

func NewPageController(pages *selector.Registry, dev *service.DeviceService) *PageController {
	return &PageController{Pages: pages, Device: dev}
}

// PageInfo 页面注册信息
type PageInfo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// PageRoute 设备路由结果
type PageRoute struct {
	Page    string           `json:"page"`
	Variant selector.Variant `json:"variant"`
	Profile device.Profile   `json:"profile"`
	Live    string           `json:"live"`
}

// ListPages godoc
// @Summary 页面列表
// @Description 返回所有注册页面及是否需要登录
// @Tags 页面
// @Produce  json
// @Success 200 {object} util.Response{data=[]PageInfo} "成功"
// @Router /api/pages [get]
func (c *PageController) ListPages(ctx *gin.Context) {
	pages := c.Pages.Pages()
	out := make([]PageInfo, 0, len(pages))
	for _, p := range pages {
		out = append(out, PageInfo{ID: p.ID, Title: p.Title, RequiresAuth: p.RequiresAuth})
	}
	util.Success(ctx, out)
}

// ResolvePage godoc
// @Summary 设备路由
// @Description 根据视口、触摸与客户端提示选择页面变体。需要登录的页面在未登录时返回 401。
// @Tags 页面
// @Produce  json
// @Param   page path string true "页面标识"
// @Param   X-Viewport-Width header int false "视口宽度"
// @Param   X-Viewport-Height header int false "视口高度"
// @Success 200 {object} util.Response{data=PageRoute} "成功"
// @Failure 401 {object} util.Response "需要登录"
// @Failure 404 {object} util.Response "页面不存在"
// @Router /api/pages/{page} [get]
func (c *PageController) ResolvePage(ctx *gin.Context) {
	page, err := c.Pages.Lookup(ctx.Param("page"))
	if err != nil {
		if errors.Is(err, selector.ErrPageNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	if page.RequiresAuth && util.GetUserFromContext(ctx) == nil {
		ctx.Header("Location", "/auth/login")
		util.Error(ctx, http.StatusUnauthorized, "Login required")
		return
	}

	profile := middleware.ProfileFromContext(ctx)
	util.Success(ctx, PageRoute{
		Page:    page.ID,
		Variant: c.Device.Select(profile),
		Profile: profile,
		Live:    "/api/ws/viewport?page=" + page.ID,
	})
}
