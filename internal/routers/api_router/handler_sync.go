package api_router

import (
	"context"

	"github.com/pantrylabs/pantry-sync-service/internal/app"
	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	pkgapp "github.com/pantrylabs/pantry-sync-service/pkg/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/code"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SyncHandler 同步 API 路由处理器
// 推送接受后通过 WebSocket 广播给同库房的在线客户端
type SyncHandler struct {
	*Handler
}

// NewSyncHandler 创建 SyncHandler 实例
func NewSyncHandler(a *app.App, wss *pkgapp.WebsocketServer) *SyncHandler {
	return &SyncHandler{
		Handler: NewHandlerWithWSS(a, wss),
	}
}

// Push 提交一批本地记录，返回逐条裁决结果
func (h *SyncHandler) Push(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.SyncPushRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("SyncHandler.Push.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	resp, err := h.App.SyncService.Push(ctx, uid, params)
	if err != nil {
		h.logError(ctx, "SyncHandler.Push", err)
		response.ToResponse(code.ErrorPushFailed.WithDetails(err.Error()))
		return
	}

	h.broadcastApplied(ctx, uid, params.Pantry, resp.Outcomes)

	response.ToResponse(code.Success.WithData(resp))
}

// broadcastApplied 将本批次落库的记录推送给同库房的在线连接
func (h *SyncHandler) broadcastApplied(ctx context.Context, uid int64, pantryName string, outcomes []*dto.OutcomeDTO) {
	if h.WSS == nil {
		return
	}

	var applied []*dto.ChangeRecordDTO
	for _, o := range outcomes {
		if o.Kind == string(domain.OutcomeAccepted) || o.Kind == string(domain.OutcomeOverwritten) {
			applied = append(applied, o.Record)
		}
	}
	if len(applied) == 0 {
		return
	}

	pantry, err := h.App.PantryService.GetOrCreate(ctx, uid, pantryName)
	if err != nil {
		return
	}
	h.WSS.BroadcastToPantry(pantry.ID, code.Success.Clone().WithData(applied), "SyncApply")
}

// Pull 拉取游标之后的权威记录
func (h *SyncHandler) Pull(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.SyncPullRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		h.App.Logger().Error("SyncHandler.Pull.BindAndValid errs", zap.Error(errs))
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	resp, err := h.App.SyncService.Pull(ctx, uid, params)
	if err != nil {
		h.logError(ctx, "SyncHandler.Pull", err)
		response.ToResponse(code.ErrorPullFailed.WithDetails(err.Error()))
		return
	}

	response.ToResponse(code.Success.WithData(resp))
}

// Log 只读查看库房日志尾部，不移动客户端游标
func (h *SyncHandler) Log(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.LogListRequest{}

	valid, errs := pkgapp.BindAndValid(c, params)
	if !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()).WithData(errs.MapsToString()))
		return
	}

	ctx := c.Request.Context()
	uid := pkgapp.GetUID(c)

	resp, err := h.App.SyncService.Log(ctx, uid, params)
	if err != nil {
		h.logError(ctx, "SyncHandler.Log", err)
		response.ToResponse(code.ErrorDBQuery.WithDetails(err.Error()))
		return
	}

	response.ToResponse(code.Success.WithData(resp))
}
