package api_router

import (
	"github.com/pantrylabs/pantry-sync-service/internal/app"
	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	pkgapp "github.com/pantrylabs/pantry-sync-service/pkg/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/code"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// EntityHandler 实体只读查询 API 路由处理器
type EntityHandler struct {
	*Handler
}

// NewEntityHandler 创建 EntityHandler 实例
func NewEntityHandler(a *app.App) *EntityHandler {
	return &EntityHandler{
		Handler: NewHandler(a),
	}
}

// Get 获取单个实体当前状态
func (h *EntityHandler) Get(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.EntityGetRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	entityDTO, err := h.App.EntityService.Get(ctx, uid, params)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			response.ToResponse(code.ErrorUnknownEntity)
			return
		}
		h.logError(ctx, "EntityHandler.Get", err)
		response.ToResponse(code.ErrorDBQuery.WithDetails(err.Error()))
		return
	}

	response.ToResponse(code.Success.WithData(entityDTO))
}

// List 分页获取实体列表
func (h *EntityHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.EntityListRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("EntityHandler.List.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	list, count, err := h.App.EntityService.List(ctx, uid, params, pkgapp.GetPage(c), pkgapp.GetPageSize(c))
	if err != nil {
		h.logError(ctx, "EntityHandler.List", err)
		response.ToResponse(code.ErrorDBQuery.WithDetails(err.Error()))
		return
	}

	response.ToResponseList(code.Success, list, int(count))
}

// History 分页获取单实体的变更历史
func (h *EntityHandler) History(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ChangeLogListRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("EntityHandler.History.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	list, count, err := h.App.EntityService.History(ctx, uid, params, pkgapp.GetPage(c), pkgapp.GetPageSize(c))
	if err != nil {
		h.logError(ctx, "EntityHandler.History", err)
		response.ToResponse(code.ErrorDBQuery.WithDetails(err.Error()))
		return
	}

	response.ToResponseList(code.Success, list, int(count))
}
