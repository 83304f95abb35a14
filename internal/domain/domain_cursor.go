package domain

import "time"

// Cursor 客户端在权威日志中的已确认位置
// 仅在成功拉取后前移，从不回退
type Cursor struct {
	ID         int64
	ClientID   string
	PantryID   int64
	Position   int64
	LastSeenAt int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
