package app

import (
	"color_academy_backend/internal/auth"
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/controller"
	"color_academy_backend/internal/gateway"
	"color_academy_backend/internal/progress"
	"color_academy_backend/internal/repository"
	"color_academy_backend/internal/selector"
	"color_academy_backend/internal/service"
	"color_academy_backend/pkg/configwatcher"
	"color_academy_backend/pkg/database"
	"color_academy_backend/pkg/logger"
	"color_academy_backend/pkg/monitoring"
	"color_academy_backend/pkg/security"
	"color_academy_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configDir = "configs"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user     *repository.UserRepository
	progress *repository.ProgressRepository
	cache    *repository.ProgressCache
}

type services struct {
	auth     *service.AuthService
	oauth    *auth.OAuthProvider
	storage  *service.StorageService
	device   *service.DeviceService
	progress *service.ProgressService
	formula  *service.FormulaService
	image    *service.ImageService
	pages    *selector.Registry
	hub      *service.ViewportHub
}

type controllers struct {
	auth     *controller.AuthController
	page     *controller.PageController
	progress *controller.ProgressController
	formula  *controller.FormulaController
	image    *controller.ImageController
	viewport *controller.ViewportController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	repos := &repositories{
		user:     repository.NewUserRepository(db),
		progress: repository.NewProgressRepository(db),
	}
	if rdb != nil {
		repos.cache = repository.NewProgressCache(rdb)
	}
	return repos
}

// progressStorage 按配置选择进度的持久化后端
func progressStorage(cfg *config.ProgressConfig, repos *repositories) progress.Storage {
	switch cfg.Backend {
	case "redis":
		return repos.cache
	case "database":
		return repos.progress
	default:
		return progress.NewMemoryStorage()
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	s := &services{}

	gw, err := gateway.NewGormGateway(db)
	if err != nil {
		logger.Log.Fatal("Failed to initialize data gateway", zap.Error(err))
	}

	s.storage = service.NewStorageService(&cfg.Storage)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.oauth = auth.NewOAuthProvider(&cfg.OAuth)
	s.device = service.NewDeviceService(&cfg.Device)
	s.progress = service.NewProgressService(progressStorage(&cfg.Progress, repos), cfg.Progress.KeyPrefix)
	s.formula = service.NewFormulaService(gw)
	s.image = service.NewImageService(s.storage, gw)
	s.pages = service.NewPageRegistry()
	s.hub = service.NewViewportHub(s.pages, s.device, s.progress, s.formula, s.image, cfg.CORS.AllowedOrigins)

	logger.Log.Info("Services initialized",
		zap.String("progressBackend", cfg.Progress.Backend),
		zap.Strings("collections", gw.Collections()),
		zap.Bool("oauth", s.oauth != nil))

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:     controller.NewAuthController(s.auth, s.oauth, s.hub, s.progress, a.Config.Server.Mode == "release"),
		page:     controller.NewPageController(s.pages, s.device),
		progress: controller.NewProgressController(s.progress),
		formula:  controller.NewFormulaController(s.formula),
		image:    controller.NewImageController(s.image),
		viewport: controller.NewViewportController(s.hub),
		health:   controller.NewHealthController(db, rdb, s.hub),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 监听配置文件，断点与平板策略变化时同步到所有实时连接
func (a *App) startBackgroundTasks(s *services) {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.RegisterConfigCallback(func(cfg *config.Config) {
		s.hub.ApplyDeviceConfig(&cfg.Device)
	})

	go func() {
		err := configwatcher.Watch(ctx, configDir, func(cfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(cfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	// 只有进度存放在 Redis 时才需要连接
	if cfg.Progress.Backend == "redis" {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
			log.Fatalf("Failed to initialize redis: %v", err)
		}
		app.Redis = rdb
	}

	repos := app.initRepositories(db, app.Redis)
	services := app.initServices(repos, cfg, db)
	app.services = services
	controllers := app.initControllers(services, db, app.Redis)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.cancel != nil {
		a.cancel()
	}

	// 卸载所有实时连接上的页面
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
