package api_router

import (
	"github.com/pantrylabs/pantry-sync-service/internal/app"
	pkgapp "github.com/pantrylabs/pantry-sync-service/pkg/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// VersionHandler 版本信息 API 路由处理器
type VersionHandler struct {
	*Handler
}

// NewVersionHandler 创建 VersionHandler 实例
func NewVersionHandler(a *app.App) *VersionHandler {
	return &VersionHandler{
		Handler: NewHandler(a),
	}
}

// ServerVersion 获取服务端版本信息与客户端版本检查结果
func (h *VersionHandler) ServerVersion(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	info := h.App.Version()
	check := h.App.CheckVersion(c.Query("clientVersion"))

	response.ToResponse(code.Success.WithData(map[string]interface{}{
		"version":        info.Version,
		"gitTag":         info.GitTag,
		"buildTime":      info.BuildTime,
		"versionIsNew":   check.VersionIsNew,
		"versionNewName": check.VersionNewName,
		"versionNewLink": check.VersionNewLink,
		"clientMinimum":  check.ClientMinimum,
	}))
}
