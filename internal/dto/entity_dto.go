package dto

// EntityDTO 实体数据传输对象
type EntityDTO struct {
	ID            string `json:"id"`
	Version       int64  `json:"version"`
	Payload       string `json:"payload"`
	IsDeleted     bool   `json:"isDeleted"`
	LastActorID   string `json:"lastActorId"`
	LastTimestamp int64  `json:"lastTimestamp"`
}

// EntityGetRequest 获取单个实体的请求参数
type EntityGetRequest struct {
	Pantry   string `json:"pantry" form:"pantry" binding:"required"`
	EntityID string `json:"entityId" form:"entityId" binding:"required"`
}

// EntityListRequest 实体列表请求参数
type EntityListRequest struct {
	Pantry         string `json:"pantry" form:"pantry" binding:"required"`
	IncludeDeleted bool   `json:"includeDeleted" form:"includeDeleted"`
}

// ChangeLogListRequest 实体变更历史请求参数
type ChangeLogListRequest struct {
	Pantry   string `json:"pantry" form:"pantry" binding:"required"`
	EntityID string `json:"entityId" form:"entityId" binding:"required"`
}
