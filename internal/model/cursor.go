package model

import (
	"github.com/pantrylabs/pantry-sync-service/pkg/timex"
)

// Cursor 客户端同步游标表
type Cursor struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ClientID   string     `gorm:"column:client_id;type:varchar(64);uniqueIndex:idx_cursor_client,priority:1;not null" json:"clientId"`
	PantryID   int64      `gorm:"column:pantry_id;uniqueIndex:idx_cursor_client,priority:2;not null" json:"pantryId"`
	Position   int64      `gorm:"column:position;default:0" json:"position"`
	LastSeenAt int64      `gorm:"column:last_seen_at" json:"lastSeenAt"`
	CreatedAt  timex.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  timex.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Cursor) TableName() string {
	return "cursor"
}
