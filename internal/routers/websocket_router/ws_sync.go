package websocket_router

import (
	"github.com/pantrylabs/pantry-sync-service/internal/app"
	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	pkgapp "github.com/pantrylabs/pantry-sync-service/pkg/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/code"
	"github.com/pantrylabs/pantry-sync-service/pkg/convert"

	"go.uber.org/zap"
)

// SyncWSHandler WebSocket 同步处理器
// 使用 App Container 注入依赖
type SyncWSHandler struct {
	*WSHandler
}

// NewSyncWSHandler 创建 SyncWSHandler 实例
func NewSyncWSHandler(a *app.App, wss *pkgapp.WebsocketServer) *SyncWSHandler {
	return &SyncWSHandler{
		WSHandler: NewWSHandler(a, wss),
	}
}

// SyncPush 处理客户端推送的变更批次
// 逐条裁决后把落库记录以 SyncApply 动作广播给同库房的其他连接
func (h *SyncWSHandler) SyncPush(c *pkgapp.WebsocketClient, msg *pkgapp.WebSocketMessage) {
	params := &dto.SyncPushRequest{}

	valid, errs := c.BindAndValid(msg.Data, params)
	if !valid {
		h.respondErrorWithData(c, code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()), errs, errs.MapsToString(), "websocket_router.sync.SyncPush.BindAndValid")
		return
	}

	ctx := c.Context()
	uid := c.Actor.UID

	// 订阅库房广播组，内部使用 SF 合并并发创建
	pantry, err := h.App.PantryService.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		h.respondError(c, code.ErrorPantryNotFound, err, "websocket_router.sync.SyncPush.GetOrCreate")
		return
	}
	h.WSS.JoinPantry(c, pantry.ID)

	resp, err := h.App.SyncService.Push(ctx, uid, params)
	if err != nil {
		h.respondError(c, code.ErrorPushFailed, err, "websocket_router.sync.SyncPush")
		return
	}

	h.logInfo(c, "websocket_router.sync.SyncPush",
		zap.Int64("uid", uid),
		zap.String("pantry", params.Pantry),
		zap.Int("records", len(params.Records)))

	c.ToResponse(code.Success.Clone().WithData(resp), "SyncPush")

	var applied []*dto.ChangeRecordDTO
	for _, o := range resp.Outcomes {
		if o.Kind == string(domain.OutcomeAccepted) || o.Kind == string(domain.OutcomeOverwritten) {
			applied = append(applied, o.Record)
		}
	}
	if len(applied) > 0 {
		c.BroadcastResponse(code.Success.Clone().WithData(applied), true, "SyncApply")
		h.App.PantryService.RefreshStatsAsync(pantry.ID)
	}
}

// SyncPull 处理客户端按游标拉取权威记录
func (h *SyncWSHandler) SyncPull(c *pkgapp.WebsocketClient, msg *pkgapp.WebSocketMessage) {
	params := &dto.SyncPullRequest{}

	valid, errs := c.BindAndValid(msg.Data, params)
	if !valid {
		h.respondErrorWithData(c, code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()), errs, errs.MapsToString(), "websocket_router.sync.SyncPull.BindAndValid")
		return
	}

	ctx := c.Context()
	uid := c.Actor.UID

	pantry, err := h.App.PantryService.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		h.respondError(c, code.ErrorPantryNotFound, err, "websocket_router.sync.SyncPull.GetOrCreate")
		return
	}
	h.WSS.JoinPantry(c, pantry.ID)

	resp, err := h.App.SyncService.Pull(ctx, uid, params)
	if err != nil {
		h.respondError(c, code.ErrorPullFailed, err, "websocket_router.sync.SyncPull")
		return
	}

	h.logInfo(c, "websocket_router.sync.SyncPull",
		zap.Int64("uid", uid),
		zap.String("pantry", params.Pantry),
		zap.Int64("cursor", resp.Cursor),
		zap.Int("records", len(resp.Records)))

	c.ToResponse(code.Success.Clone().WithData(resp), "SyncPull")
}

// SyncEnd 客户端声明本轮追平已结束
// 回发当前日志末尾位置，客户端据此确认没有漏拉的尾部
func (h *SyncWSHandler) SyncEnd(c *pkgapp.WebsocketClient, msg *pkgapp.WebSocketMessage) {
	params := &struct {
		Pantry string `json:"pantry" binding:"required"`
	}{}

	valid, errs := c.BindAndValid(msg.Data, params)
	if !valid {
		h.respondErrorWithData(c, code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()), errs, errs.MapsToString(), "websocket_router.sync.SyncEnd.BindAndValid")
		return
	}

	ctx := c.Context()
	uid := c.Actor.UID

	pantry, err := h.App.PantryService.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		h.respondError(c, code.ErrorPantryNotFound, err, "websocket_router.sync.SyncEnd.GetOrCreate")
		return
	}
	h.WSS.JoinPantry(c, pantry.ID)

	stats, err := h.App.PantryService.Stats(ctx, pantry.ID)
	if err != nil {
		h.respondError(c, code.ErrorDBQuery, err, "websocket_router.sync.SyncEnd")
		return
	}

	h.logInfo(c, "websocket_router.sync.SyncEnd",
		zap.Int64("uid", uid),
		zap.String("pantry", params.Pantry),
		zap.Int64("position", stats.LogPosition))

	h.App.PantryService.RefreshStatsAsync(pantry.ID)

	c.ToResponse(code.Success.Clone().WithData(map[string]int64{"position": stats.LogPosition}), "SyncEnd")
}

// ActorInfo 鉴权时的操作者有效性验证回调
func (h *SyncWSHandler) ActorInfo(c *pkgapp.WebsocketClient, uid int64) (*pkgapp.ActorSelectEntity, error) {
	// 使用 WebSocket 连接的长生命周期 context
	ctx := c.Context()
	actor, err := h.App.ActorService.Get(ctx, uid)

	var actorEntity *pkgapp.ActorSelectEntity
	if actor != nil {
		actorEntity = convert.StructAssign(actor, &pkgapp.ActorSelectEntity{}).(*pkgapp.ActorSelectEntity)
	}

	return actorEntity, err
}

// PantryStats 处理客户端请求库房统计
func (h *SyncWSHandler) PantryStats(c *pkgapp.WebsocketClient, msg *pkgapp.WebSocketMessage) {
	params := &struct {
		Pantry string `json:"pantry" binding:"required"`
	}{}

	valid, errs := c.BindAndValid(msg.Data, params)
	if !valid {
		h.respondErrorWithData(c, code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()), errs, errs.MapsToString(), "websocket_router.sync.PantryStats.BindAndValid")
		return
	}

	ctx := c.Context()
	uid := c.Actor.UID

	pantry, err := h.App.PantryService.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		h.respondError(c, code.ErrorPantryNotFound, err, "websocket_router.sync.PantryStats.GetOrCreate")
		return
	}

	stats, err := h.App.PantryService.Stats(ctx, pantry.ID)
	if err != nil {
		h.respondError(c, code.ErrorDBQuery, err, "websocket_router.sync.PantryStats")
		return
	}

	c.ToResponse(code.Success.Clone().WithData(stats), "PantryStats")
}
