package app

import (
	"coder_edu_sync/internal/config"
	"coder_edu_sync/internal/connectivity"
	"coder_edu_sync/internal/controller"
	"coder_edu_sync/internal/offline"
	"coder_edu_sync/internal/remote"
	"coder_edu_sync/internal/util"
	"coder_edu_sync/pkg/database"
	"coder_edu_sync/pkg/logger"
	"coder_edu_sync/pkg/monitoring"
	"coder_edu_sync/pkg/security"
	"coder_edu_sync/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

type kvStore interface {
	offline.KV
	Close() error
}

// Agent 离线优先的客户端代理：本地状态、待同步队列与同步引擎
type Agent struct {
	Config  *config.Config
	Router  *gin.Engine
	Monitor *connectivity.Monitor
	Prober  *connectivity.Prober
	Session *offline.Session
	Engine  *offline.Engine

	kv     kvStore
	tracer *sdktrace.TracerProvider
}

func openKV(cfg *config.Config) (kvStore, error) {
	switch cfg.Agent.KVDriver {
	case util.KVDriverMemory:
		return database.NewMemoryKV(), nil
	case util.KVDriverRedis:
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		return database.NewRedisKV(rdb, "coder_edu_sync:"+cfg.Agent.UserID+":"), nil
	case util.KVDriverSQLite, "":
		return database.OpenSQLiteKV(cfg.Agent.KVPath)
	default:
		return nil, fmt.Errorf("unknown kv driver %q", cfg.Agent.KVDriver)
	}
}

func NewAgent(cfg *config.Config) (*Agent, error) {
	logger.InitLogger(cfg, "agent")

	// 未显式配置用户时从 token 中读取，本地会话只属于一个用户
	if cfg.Agent.UserID == "" && cfg.Agent.Token != "" {
		userID, err := util.PeekUserID(cfg.Agent.Token)
		if err != nil {
			return nil, fmt.Errorf("read user from agent token: %w", err)
		}
		cfg.Agent.UserID = userID
	}
	if cfg.Agent.UserID == "" {
		return nil, errors.New("agent.user_id or agent.token is required")
	}

	kv, err := openKV(cfg)
	if err != nil {
		return nil, err
	}

	monitoring.Init()

	client := remote.NewClient(cfg.Agent.ServerURL, cfg.Agent.Token, cfg.Agent.RequestTimeout)
	monitor := connectivity.NewMonitor(cfg.Agent.StartOnline)
	queue := offline.NewQueue(cfg.Sync.MaxQueueSize, kv)
	engine := offline.NewEngine(queue, client, monitor, offline.PolicyFromConfig(cfg.Sync))
	session := offline.NewSession(cfg.Agent.UserID, engine, offline.NewContentCache(kv), client, cfg.Sync.AutoSync)

	if n, err := queue.Restore(context.Background()); err != nil {
		logger.Log.Warn("Failed to restore pending queue", zap.Error(err))
	} else if n > 0 {
		logger.Log.Info("Restored pending mutations", zap.Int("count", n))
	}

	agent := &Agent{
		Config:  cfg,
		Monitor: monitor,
		Prober:  connectivity.NewProber(monitor, client, cfg.Agent.ProbeInterval, cfg.Agent.RequestTimeout),
		Session: session,
		Engine:  engine,
		kv:      kv,
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("coder-edu-sync-agent", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			kv.Close()
			return nil, err
		}
		agent.tracer = tp
	}

	agent.Router = newAgentRouter(cfg, controller.NewOfflineController(session, monitor))
	return agent, nil
}

func newAgentRouter(cfg *config.Config, c *controller.OfflineController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}
	router.Use(monitoring.MetricsMiddleware())
	registerAgentRoutes(router, c)
	return router
}

// ApplyConfig 热加载：只有同步策略可以在运行中调整
func (a *Agent) ApplyConfig(cfg *config.Config) {
	policy := offline.PolicyFromConfig(cfg.Sync)
	a.Engine.SetPolicy(policy)
	logger.Log.Info("Sync policy reloaded",
		zap.Int("max_attempts", policy.MaxAttempts),
		zap.Duration("base_backoff", policy.BaseBackoff),
		zap.Duration("max_backoff", policy.MaxBackoff),
		zap.Duration("max_age", policy.MaxAge),
		zap.Float64("dispatch_rate", policy.DispatchRate),
	)
}

// Run 启动连通性探测、同步引擎和本地 API，阻塞直到 ctx 取消
func (a *Agent) Run(ctx context.Context) error {
	defer a.kv.Close()

	a.Engine.Start(ctx)
	// probe_interval 为 0 时连通性完全由宿主通过 PUT /connectivity 推送
	if a.Config.Agent.ProbeInterval > 0 {
		go a.Prober.Run(ctx)
	}

	srv := &http.Server{
		Addr:    a.Config.Agent.Listen,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Agent listening",
			zap.String("addr", a.Config.Agent.Listen),
			zap.String("server", a.Config.Agent.ServerURL),
			zap.String("user_id", a.Config.Agent.UserID),
		)
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

	status := a.Engine.Status()
	logger.Log.Info("Agent exiting", zap.Int("pending", status.QueueDepth))
	return nil
}
