package controller

import (
	"coder_edu_sync/internal/model"
	"coder_edu_sync/internal/service"
	"coder_edu_sync/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// UpsertProgress godoc
// @Summary 同步学习进度（幂等 upsert）
// @Description 按 (userId, moduleId) 存在则合并、不存在则创建，重复投递结果一致
// @Tags 进度同步
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body model.ProgressUpsert true "进度字段"
// @Success 200 {object} util.Response{data=model.ModuleProgress}
// @Failure 400 {object} util.Response
// @Failure 401 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/progress [put]
func (c *ProgressController) UpsertProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req model.ProgressUpsert
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.UpsertProgress(ctx.Request.Context(), user.Principal(), req)
	if errors.Is(err, util.ErrPermissionDenied) {
		util.Forbidden(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// GetProgress godoc
// @Summary 获取当前用户在某模块的进度
// @Tags 进度同步
// @Produce json
// @Security ApiKeyAuth
// @Param moduleId path string true "模块ID"
// @Success 200 {object} util.Response{data=model.ModuleProgress}
// @Failure 404 {object} util.Response
// @Router /api/progress/{moduleId} [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressService.GetProgress(ctx.Request.Context(), user.Principal(), ctx.Param("moduleId"))
	if errors.Is(err, util.ErrProgressNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// UpsertTodoProgress godoc
// @Summary 同步清单项完成状态（幂等 upsert）
// @Tags 进度同步
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body model.TodoUpsert true "清单项状态"
// @Success 200 {object} util.Response{data=model.TodoProgress}
// @Router /api/todo-progress [put]
func (c *ProgressController) UpsertTodoProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req model.TodoUpsert
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	todo, err := c.ProgressService.UpsertTodoProgress(ctx.Request.Context(), user.Principal(), req)
	if errors.Is(err, util.ErrPermissionDenied) {
		util.Forbidden(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, todo)
}

// ListModuleTodoProgress godoc
// @Summary 获取当前用户在某模块的清单完成情况
// @Tags 进度同步
// @Produce json
// @Security ApiKeyAuth
// @Param moduleId path string true "模块ID"
// @Success 200 {object} util.Response{data=[]model.TodoProgress}
// @Router /api/modules/{moduleId}/todo-progress [get]
func (c *ProgressController) ListModuleTodoProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	todos, err := c.ProgressService.ListModuleTodoProgress(ctx.Request.Context(), user.Principal(), ctx.Param("moduleId"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if todos == nil {
		todos = []model.TodoProgress{}
	}

	util.Success(ctx, todos)
}
