package model

import (
	"github.com/pantrylabs/pantry-sync-service/pkg/timex"
)

// Entity 实体当前状态表
// (entity_id, pantry_id) 唯一，墓碑保留
type Entity struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	EntityID      string     `gorm:"column:entity_id;type:varchar(64);uniqueIndex:idx_entity_pantry,priority:1;not null" json:"entityId"`
	PantryID      int64      `gorm:"column:pantry_id;uniqueIndex:idx_entity_pantry,priority:2;index;not null" json:"pantryId"`
	Version       int64      `gorm:"column:version;not null" json:"version"`
	Payload       string     `gorm:"column:payload;type:text" json:"payload"`
	IsDeleted     int64      `gorm:"column:is_deleted;default:0" json:"isDeleted"`
	LastActorID   string     `gorm:"column:last_actor_id;type:varchar(64)" json:"lastActorId"`
	LastTimestamp int64      `gorm:"column:last_timestamp" json:"lastTimestamp"`
	CreatedAt     timex.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     timex.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Entity) TableName() string {
	return "entity"
}
