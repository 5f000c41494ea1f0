package app

import (
	"color_academy_backend/docs"
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/middleware"
	"color_academy_backend/internal/model"

	"color_academy_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 页面路由与实时连接，登录可选
	a.registerPageRoutes(router, c, cfg)

	// 3. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerLearnerRoutes(authGroup, c)
	}

	// 4. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.POST("/logout", middleware.TryAuthMiddleware(cfg), c.auth.Logout)
	}

	// 第三方认证
	oauth := router.Group("/auth")
	{
		oauth.GET("/login", c.auth.OAuthLogin)
		oauth.GET("/callback", c.auth.OAuthCallback)
	}
}

func (a *App) registerPageRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	pages := router.Group("/api")
	pages.Use(middleware.TryAuthMiddleware(cfg))
	{
		pages.GET("/pages", c.page.ListPages)
		pages.GET("/pages/:page", middleware.DeviceMiddleware(c.page.Device), c.page.ResolvePage)
		pages.GET("/ws/viewport", c.viewport.HandleWS)
	}
}

func (a *App) registerLearnerRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	// 教程进度
	progress := rg.Group("/progress")
	{
		progress.GET("", c.progress.GetProgress)
		progress.PUT("/current", c.progress.SetCurrentChapter)
		progress.POST("/reset", c.progress.ResetAll)
		progress.GET("/:course", c.progress.GetCourse)
		progress.POST("/:course/reset", c.progress.ResetCourse)
		progress.PUT("/:course/chapters/:chapterId", c.progress.SetChapterProgress)
		progress.POST("/:course/chapters/:chapterId/reset", c.progress.ResetChapter)
	}

	// 调色实验室与求解器
	rg.GET("/formulas", c.formula.ListFormulas)
	rg.POST("/formulas", c.formula.SaveFormula)
	rg.GET("/solver", c.formula.ListSolverEntries)
	rg.POST("/solver", c.formula.SaveSolverEntry)

	// 练习图片
	rg.GET("/images", c.image.ListImages)
	rg.POST("/images/upload", c.image.UploadImage)
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin, model.Instructor))
	{
		admin.GET("/viewport", c.viewport.ViewportStats)
	}
}
