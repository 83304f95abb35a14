package model

import (
	"github.com/pantrylabs/pantry-sync-service/pkg/timex"
)

// ChangeRecord 变更日志表
// 自增主键即日志位置，只追加，不改写
type ChangeRecord struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PantryID     int64      `gorm:"column:pantry_id;index:idx_change_pantry;not null" json:"pantryId"`
	EntityID     string     `gorm:"column:entity_id;type:varchar(64);index:idx_change_entity;not null" json:"entityId"`
	BaseVersion  int64      `gorm:"column:base_version;not null" json:"baseVersion"`
	NewVersion   int64      `gorm:"column:new_version;not null" json:"newVersion"`
	ActorID      string     `gorm:"column:actor_id;type:varchar(64);not null" json:"actorId"`
	Timestamp    int64      `gorm:"column:timestamp;not null" json:"timestamp"`
	Operation    string     `gorm:"column:operation;type:varchar(16);not null" json:"operation"`
	PayloadDelta string     `gorm:"column:payload_delta;type:text" json:"payloadDelta"`
	Status       string     `gorm:"column:status;type:varchar(16);default:accepted" json:"status"`
	CreatedAt    timex.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (ChangeRecord) TableName() string {
	return "change_record"
}
