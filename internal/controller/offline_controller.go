package controller

import (
	"coder_edu_sync/internal/offline"
	"coder_edu_sync/internal/remote"
	"coder_edu_sync/internal/util"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ConnectivitySetter 宿主环境（桌面壳、操作系统网络事件）推送连通性变化
type ConnectivitySetter interface {
	SetOnlineStatus(online bool)
}

// OfflineController 本地代理 API，把离线优先的会话暴露给界面
type OfflineController struct {
	Session      *offline.Session
	Connectivity ConnectivitySetter
}

func NewOfflineController(session *offline.Session, connectivity ConnectivitySetter) *OfflineController {
	return &OfflineController{Session: session, Connectivity: connectivity}
}

func (c *OfflineController) GetProgress(ctx *gin.Context) {
	progress, ok := c.Session.GetModuleProgress(ctx.Param("moduleId"))
	if !ok {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, progress)
}

// UpdateProgress 本地立即生效，返回 202 表示远端同步仍在排队
func (c *OfflineController) UpdateProgress(ctx *gin.Context) {
	var patch offline.ProgressPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.Session.SaveProgress(ctx.Request.Context(), ctx.Param("moduleId"), patch)
	c.respondLocal(ctx, progress, err)
}

func (c *OfflineController) CompleteLesson(ctx *gin.Context) {
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		util.BadRequest(ctx, "invalid lesson index")
		return
	}

	progress, err := c.Session.CompleteLesson(ctx.Request.Context(), ctx.Param("moduleId"), index)
	c.respondLocal(ctx, progress, err)
}

func (c *OfflineController) ListTodos(ctx *gin.Context) {
	util.Success(ctx, c.Session.GetModuleTodoProgress(ctx.Param("moduleId")))
}

func (c *OfflineController) UpdateTodo(ctx *gin.Context) {
	var req struct {
		Completed *bool `json:"completed" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	todo, err := c.Session.ToggleTodo(ctx.Request.Context(), ctx.Param("moduleId"), ctx.Param("todoId"), *req.Completed)
	c.respondLocal(ctx, todo, err)
}

func (c *OfflineController) DownloadModule(ctx *gin.Context) {
	content, err := c.Session.DownloadModule(ctx.Request.Context(), ctx.Param("moduleId"))
	var statusErr *remote.StatusError
	switch {
	case errors.Is(err, offline.ErrInvalidArgument):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, offline.ErrOffline):
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &statusErr):
		util.Error(ctx, statusErr.StatusCode, statusErr.Error())
	case err != nil:
		util.Error(ctx, http.StatusBadGateway, err.Error())
	default:
		util.Success(ctx, content)
	}
}

func (c *OfflineController) GetOfflineModule(ctx *gin.Context) {
	content, ok := c.Session.GetOfflineModule(ctx.Request.Context(), ctx.Param("moduleId"))
	if !ok {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, content)
}

func (c *OfflineController) SyncStatus(ctx *gin.Context) {
	util.Success(ctx, c.Session.Status())
}

// SyncNow 同步执行一次 drain，认证失败时原样反馈给界面
func (c *OfflineController) SyncNow(ctx *gin.Context) {
	err := c.Session.SyncNow(ctx.Request.Context())
	switch {
	case errors.Is(err, offline.ErrUnauthenticated):
		util.Unauthorized(ctx)
	case errors.Is(err, offline.ErrForbidden):
		util.Forbidden(ctx)
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, c.Session.Status())
	}
}

func (c *OfflineController) SetConnectivity(ctx *gin.Context) {
	var req struct {
		Online *bool `json:"online" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	c.Connectivity.SetOnlineStatus(*req.Online)
	util.Success(ctx, c.Session.Status())
}

// respondLocal 本地写入总是成功；入队失败（队列已满）时仍返回本地结果
func (c *OfflineController) respondLocal(ctx *gin.Context, data interface{}, err error) {
	switch {
	case errors.Is(err, offline.ErrInvalidArgument):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, offline.ErrQueueFull):
		ctx.JSON(http.StatusInsufficientStorage, util.Response{
			Code:    http.StatusInsufficientStorage,
			Message: err.Error(),
			Data:    data,
		})
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Accepted(ctx, data)
	}
}
