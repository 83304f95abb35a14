package model

import (
	"github.com/pantrylabs/pantry-sync-service/pkg/timex"
)

// Pantry 库房表
type Pantry struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UID         int64      `gorm:"column:uid;index;not null" json:"uid"`
	Name        string     `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Policy      string     `gorm:"column:policy;type:varchar(32)" json:"policy"`
	EntityCount int64      `gorm:"column:entity_count;default:0" json:"entityCount"`
	ChangeCount int64      `gorm:"column:change_count;default:0" json:"changeCount"`
	CreatedAt   timex.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   timex.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Pantry) TableName() string {
	return "pantry"
}
