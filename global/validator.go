package global

import (
	"github.com/pantrylabs/pantry-sync-service/pkg/validator"
)

// Validator 全局验证器，WebSocket 消息绑定时复用
var Validator *validator.CustomValidator
