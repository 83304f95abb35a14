// Package routers 组装 HTTP 与 WebSocket 路由
package routers

import (
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/app"
	"github.com/pantrylabs/pantry-sync-service/internal/middleware"
	"github.com/pantrylabs/pantry-sync-service/internal/routers/api_router"
	"github.com/pantrylabs/pantry-sync-service/internal/routers/websocket_router"
	pkgapp "github.com/pantrylabs/pantry-sync-service/pkg/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/limiter"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"github.com/lxzan/gws"
)

var methodLimiters = limiter.NewMethodLimiter().AddBuckets(
	limiter.BucketRule{
		Key:          "/api/actor",
		FillInterval: time.Second,
		Capacity:     10,
		Quantum:      10,
	},
)

func NewRouter(appContainer *app.App, uni *ut.UniversalTranslator) *gin.Engine {

	cfg := appContainer.Config()

	var wss = pkgapp.NewWebsocketServer(pkgapp.WebsocketServerConfig{
		GWSOption: gws.ServerOption{
			CheckUtf8Enabled:    true,
			ParallelEnabled:     true,
			Recovery:            gws.Recovery,
			PermessageDeflate:   gws.PermessageDeflate{Enabled: true},
			ParallelGolimit:     8,
			ReadMaxPayloadSize:  1024 * 1024 * 16,
			WriteMaxPayloadSize: 1024 * 1024 * 16,
		},
		AuthTokenKey: cfg.Security.AuthTokenKey,
	})

	// 创建 WebSocket Handlers（注入 App Container）
	syncWSHandler := websocket_router.NewSyncWSHandler(appContainer, wss)

	// 推送变更批次
	wss.Use("SyncPush", syncWSHandler.SyncPush)
	// 按游标拉取权威记录
	wss.Use("SyncPull", syncWSHandler.SyncPull)
	// 追平结束确认
	wss.Use("SyncEnd", syncWSHandler.SyncEnd)
	// 库房统计
	wss.Use("PantryStats", syncWSHandler.PantryStats)

	wss.ActorDataSelectUse(syncWSHandler.ActorInfo)

	r := gin.New()

	api := r.Group("/api")
	{
		api.Use(middleware.AppInfo(appContainer.Version().Version))
		api.Use(gin.Logger())
		api.Use(middleware.TraceMiddleware(cfg.Tracer.Header))
		api.Use(middleware.RateLimiter(methodLimiters))
		api.Use(middleware.ContextTimeout(time.Duration(cfg.App.DefaultContextTimeout) * time.Second))
		api.Use(middleware.Cors())
		api.Use(middleware.LangWithTranslator(uni))
		api.Use(middleware.AccessLog())
		api.Use(middleware.RecoveryWithLogger(appContainer.Logger()))

		// 创建 Handlers（注入 App Container）
		actorHandler := api_router.NewActorHandler(appContainer)
		syncHandler := api_router.NewSyncHandler(appContainer, wss)
		entityHandler := api_router.NewEntityHandler(appContainer)
		pantryHandler := api_router.NewPantryHandler(appContainer)
		versionHandler := api_router.NewVersionHandler(appContainer)

		api.POST("/actor/register", actorHandler.Register)
		api.POST("/actor/login", actorHandler.Login)
		api.GET("/sync/ws", wss.Run())

		// 服务端版本号接口（无需认证）
		api.GET("/version", versionHandler.ServerVersion)

		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).GET("/actor/info", actorHandler.Info)

		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).POST("/sync/push", syncHandler.Push)
		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).GET("/sync/pull", syncHandler.Pull)

		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).GET("/log", syncHandler.Log)

		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).GET("/entity", entityHandler.Get)
		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).GET("/entities", entityHandler.List)
		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).GET("/entity/history", entityHandler.History)

		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).GET("/pantry", pantryHandler.List)
		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).POST("/pantry", pantryHandler.Create)
		api.Use(middleware.ActorAuthTokenWithConfig(cfg.Security.AuthTokenKey)).GET("/pantry/stats", pantryHandler.Stats)
	}

	r.Use(middleware.Cors())
	r.NoRoute(middleware.NoFound())

	return r
}
