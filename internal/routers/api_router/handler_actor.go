package api_router

import (
	"github.com/pantrylabs/pantry-sync-service/internal/app"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	"github.com/pantrylabs/pantry-sync-service/internal/service"
	pkgapp "github.com/pantrylabs/pantry-sync-service/pkg/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/code"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ActorHandler 操作者 API 路由处理器
// 使用 App Container 注入依赖
type ActorHandler struct {
	*Handler
}

// NewActorHandler 创建 ActorHandler 实例
func NewActorHandler(a *app.App) *ActorHandler {
	return &ActorHandler{
		Handler: NewHandler(a),
	}
}

// Register 操作者注册
func (h *ActorHandler) Register(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ActorRegisterRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("ActorHandler.Register.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()

	actorDTO, err := h.App.ActorService.Register(ctx, params)
	if err != nil {
		h.logError(ctx, "ActorHandler.Register", err)
		switch {
		case errors.Is(err, service.ErrRegisterDisabled):
			response.ToResponse(code.ErrorRegisterDisabled)
		case errors.Is(err, service.ErrEmailExists):
			response.ToResponse(code.ErrorActorRegisterFailed.WithDetails(err.Error()))
		default:
			response.ToResponse(code.ErrorActorRegisterFailed.WithDetails(err.Error()))
		}
		return
	}

	response.ToResponse(code.Success.WithData(actorDTO))
}

// Login 操作者登录，成功返回认证 Token
func (h *ActorHandler) Login(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ActorLoginRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("ActorHandler.Login.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()

	actorDTO, err := h.App.ActorService.Login(ctx, params, pkgapp.GetRequestIP(c))
	if err != nil {
		h.logError(ctx, "ActorHandler.Login", err)
		response.ToResponse(code.ErrorActorLoginFailed.WithDetails(err.Error()))
		return
	}

	response.ToResponse(code.Success.WithData(actorDTO))
}

// Info 获取当前操作者信息
func (h *ActorHandler) Info(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	uid := pkgapp.GetUID(c)
	if uid == 0 {
		response.ToResponse(code.ErrorNotAuthToken)
		return
	}

	ctx := c.Request.Context()

	actorDTO, err := h.App.ActorService.Get(ctx, uid)
	if err != nil {
		h.logError(ctx, "ActorHandler.Info", err)
		response.ToResponse(code.ErrorServerInternal.WithDetails(err.Error()))
		return
	}

	response.ToResponse(code.Success.WithData(actorDTO))
}
