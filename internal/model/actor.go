package model

import (
	"github.com/pantrylabs/pantry-sync-service/pkg/timex"
)

// Actor 操作者账号表
type Actor struct {
	UID       int64      `gorm:"column:uid;primaryKey;autoIncrement" json:"uid"`
	Email     string     `gorm:"column:email;type:varchar(128);uniqueIndex;not null" json:"email"`
	Nickname  string     `gorm:"column:nickname;type:varchar(64)" json:"nickname"`
	Password  string     `gorm:"column:password;type:varchar(128);not null" json:"-"`
	Avatar    string     `gorm:"column:avatar;type:varchar(255)" json:"avatar"`
	CreatedAt timex.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt timex.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Actor) TableName() string {
	return "actor"
}
