package middleware

import (
	"github.com/pantrylabs/pantry-sync-service/pkg/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/code"

	"github.com/gin-gonic/gin"
)

// NoFound 404 处理
func NoFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := app.NewResponse(c)
		response.ToResponse(code.ErrorNotFoundAPI)
		c.Abort()
	}
}
