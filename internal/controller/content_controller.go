package controller

import (
	"coder_edu_sync/internal/service"
	"coder_edu_sync/internal/util"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

// GetOfflineContent godoc
// @Summary 下载模块离线内容包
// @Tags 离线内容
// @Produce json
// @Security ApiKeyAuth
// @Param moduleId path string true "模块ID"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response
// @Router /api/modules/{moduleId}/offline [get]
func (c *ContentController) GetOfflineContent(ctx *gin.Context) {
	content, err := c.ContentService.GetModuleContent(ctx.Request.Context(), ctx.Param("moduleId"))
	switch {
	case errors.Is(err, util.ErrInvalidModuleID):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrModuleContentNotFound):
		util.NotFound(ctx)
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, content)
	}
}

// PublishOfflineContent godoc
// @Summary 发布模块离线内容包（教师/管理员）
// @Tags 离线内容
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param moduleId path string true "模块ID"
// @Success 200 {object} util.Response
// @Router /api/admin/modules/{moduleId}/offline [put]
func (c *ContentController) PublishOfflineContent(ctx *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, 16<<20))
	if err != nil {
		util.BadRequest(ctx, "request body too large")
		return
	}

	err = c.ContentService.PublishModuleContent(ctx.Request.Context(), ctx.Param("moduleId"), body)
	switch {
	case errors.Is(err, util.ErrInvalidModuleID), errors.Is(err, util.ErrInvalidModuleContent):
		util.BadRequest(ctx, err.Error())
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, gin.H{"moduleId": ctx.Param("moduleId")})
	}
}
