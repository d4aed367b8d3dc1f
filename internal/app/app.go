package app

import (
	"coder_edu_sync/internal/config"
	"coder_edu_sync/internal/controller"
	"coder_edu_sync/internal/repository"
	"coder_edu_sync/internal/service"
	"coder_edu_sync/pkg/database"
	"coder_edu_sync/pkg/logger"
	"coder_edu_sync/pkg/monitoring"
	"coder_edu_sync/pkg/security"
	"coder_edu_sync/pkg/tracing"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App 学习平台同步网关：进度 upsert 接口与离线内容下发
type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	progress *repository.ProgressRepository
	todo     *repository.TodoProgressRepository
}

type services struct {
	storage  *service.StorageService
	content  *service.ContentService
	progress *service.ProgressService
}

type controllers struct {
	progress *controller.ProgressController
	content  *controller.ContentController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 热加载后通知已注册的回调
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		progress: repository.NewProgressRepository(db),
		todo:     repository.NewTodoProgressRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}
	s.storage = service.NewStorageService(cfg)
	s.content = service.NewContentService(s.storage)
	s.progress = service.NewProgressService(repos.progress, repos.todo)
	return s
}

func initControllers(s *services, db controller.Pinger) *controllers {
	return &controllers{
		progress: controller.NewProgressController(s.progress),
		content:  controller.NewContentController(s.content),
		health:   controller.NewHealthController(db),
	}
}

func setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func newRouter(cfg *config.Config, c *controllers) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddlewares(router, cfg)
	registerRoutes(router, c, cfg)
	return router
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg, "gateway")
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, err
	}

	// release 模式下默认不自动迁移，需显式 --migrate
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	repos := app.initRepositories(db)
	svcs := app.initServices(repos, cfg)
	ctrls := initControllers(svcs, sqlDB)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("coder-edu-sync-gateway", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, err
		}
		app.tracer = tp
	}

	app.Router = newRouter(cfg, ctrls)

	// 速率限制与 CORS 在路由构建时固定，热加载只记录变化
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.Log.Info("Gateway config reloaded",
			zap.Int("rate_limit", newCfg.RateLimit.MaxRequests),
			zap.Strings("cors", newCfg.CORS.AllowedOrigins),
		)
	})

	return app, nil
}

// Run 阻塞直到 ctx 取消，然后在 5 秒内优雅关闭
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Gateway listening", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Log.Info("Shutting down gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Info("Gateway exiting")
	return nil
}
