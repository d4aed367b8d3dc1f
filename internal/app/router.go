package app

import (
	"coder_edu_sync/docs"
	"coder_edu_sync/internal/config"
	"coder_edu_sync/internal/controller"
	"coder_edu_sync/internal/middleware"
	"coder_edu_sync/internal/model"
	"coder_edu_sync/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		authGroup.PUT("/progress", c.progress.UpsertProgress)
		authGroup.GET("/progress/:moduleId", c.progress.GetProgress)
		authGroup.PUT("/todo-progress", c.progress.UpsertTodoProgress)
		authGroup.GET("/modules/:moduleId/todo-progress", c.progress.ListModuleTodoProgress)
		authGroup.GET("/modules/:moduleId/offline", c.content.GetOfflineContent)
	}

	// 3. 教师/管理员发布离线内容
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RoleMiddleware(model.Teacher))
	{
		admin.PUT("/modules/:moduleId/offline", c.content.PublishOfflineContent)
	}
}

// registerAgentRoutes 本地代理 API，只监听回环地址，不做认证
func registerAgentRoutes(router *gin.Engine, c *controller.OfflineController) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	progress := router.Group("/progress")
	{
		progress.GET("/:moduleId", c.GetProgress)
		progress.PATCH("/:moduleId", c.UpdateProgress)
		progress.POST("/:moduleId/lessons/:index/complete", c.CompleteLesson)
	}

	todos := router.Group("/todos")
	{
		todos.GET("/:moduleId", c.ListTodos)
		todos.PUT("/:moduleId/:todoId", c.UpdateTodo)
	}

	modules := router.Group("/modules")
	{
		modules.POST("/:moduleId/download", c.DownloadModule)
		modules.GET("/:moduleId/offline", c.GetOfflineModule)
	}

	router.GET("/sync/status", c.SyncStatus)
	router.POST("/sync", c.SyncNow)
	router.PUT("/connectivity", c.SetConnectivity)
}
