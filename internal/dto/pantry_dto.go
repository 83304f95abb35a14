package dto

import "github.com/pantrylabs/pantry-sync-service/pkg/timex"

// PantryDTO 库房数据传输对象
type PantryDTO struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Policy      string     `json:"policy"`
	EntityCount int64      `json:"entityCount"`
	ChangeCount int64      `json:"changeCount"`
	CreatedAt   timex.Time `json:"createdAt"`
	UpdatedAt   timex.Time `json:"updatedAt"`
}

// PantryCreateRequest 创建库房请求参数
type PantryCreateRequest struct {
	Name   string `json:"name" form:"name" binding:"required,max=128"`
	Policy string `json:"policy" form:"policy" binding:"omitempty,conflict_policy"`
}

// PantryStatsDTO 库房统计信息
type PantryStatsDTO struct {
	ID             int64 `json:"id"`
	EntityCount    int64 `json:"entityCount"`
	TombstoneCount int64 `json:"tombstoneCount"`
	ChangeCount    int64 `json:"changeCount"`
	LogPosition    int64 `json:"logPosition"`
}
