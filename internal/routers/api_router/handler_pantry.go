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

// PantryHandler 储藏室管理 API 路由处理器
type PantryHandler struct {
	*Handler
}

// NewPantryHandler 创建 PantryHandler 实例
func NewPantryHandler(a *app.App) *PantryHandler {
	return &PantryHandler{
		Handler: NewHandler(a),
	}
}

// Create 创建储藏室，可指定冲突策略
func (h *PantryHandler) Create(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.PantryCreateRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("PantryHandler.Create.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	pantryDTO, err := h.App.PantryService.Create(ctx, uid, params)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPolicy) {
			response.ToResponse(code.ErrorInvalidPolicy.WithDetails(err.Error()))
			return
		}
		h.logError(ctx, "PantryHandler.Create", err)
		response.ToResponse(code.ErrorDBQuery.WithDetails(err.Error()))
		return
	}

	response.ToResponse(code.Success.WithData(pantryDTO))
}

// List 列出当前账号下的储藏室
func (h *PantryHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	list, err := h.App.PantryService.List(ctx, uid)
	if err != nil {
		h.logError(ctx, "PantryHandler.List", err)
		response.ToResponse(code.ErrorDBQuery.WithDetails(err.Error()))
		return
	}

	response.ToResponse(code.Success.WithData(list))
}

// Stats 储藏室统计：实体数、墓碑数、日志位点
func (h *PantryHandler) Stats(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := struct {
		Pantry string `json:"pantry" form:"pantry" binding:"required"`
	}{}

	valid, errs := pkgapp.BindAndValid(c, &params)
	if !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	pantry, err := h.App.PantryService.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		h.logError(ctx, "PantryHandler.Stats", err)
		response.ToResponse(code.ErrorPantryNotFound.WithDetails(err.Error()))
		return
	}

	stats, err := h.App.PantryService.Stats(ctx, pantry.ID)
	if err != nil {
		h.logError(ctx, "PantryHandler.Stats", err)
		response.ToResponse(code.ErrorDBQuery.WithDetails(err.Error()))
		return
	}

	h.App.PantryService.RefreshStatsAsync(pantry.ID)

	response.ToResponse(code.Success.WithData(stats))
}
