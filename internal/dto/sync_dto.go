// Package dto 定义数据传输对象（请求参数和响应结构体）
package dto

// ChangeRecordDTO 变更记录数据传输对象
type ChangeRecordDTO struct {
	Position     int64  `json:"position"`
	EntityID     string `json:"entityId" form:"entityId"`
	BaseVersion  int64  `json:"baseVersion" form:"baseVersion"`
	NewVersion   int64  `json:"newVersion" form:"newVersion"`
	ActorID      string `json:"actorId" form:"actorId"`
	Timestamp    int64  `json:"timestamp" form:"timestamp"`
	Operation    string `json:"operation" form:"operation"`
	PayloadDelta string `json:"payloadDelta" form:"payloadDelta"`
	Status       string `json:"status"`
}

// PushRecordRequest 单条推送记录的请求参数
// BaseVersion 为作者编辑时认定的当前版本，create 为 0
type PushRecordRequest struct {
	EntityID     string `json:"entityId" form:"entityId" binding:"required"`
	BaseVersion  int64  `json:"baseVersion" form:"baseVersion" binding:"gte=0"`
	Operation    string `json:"operation" form:"operation" binding:"required,operation"`
	PayloadDelta string `json:"payloadDelta" form:"payloadDelta"`
	Timestamp    int64  `json:"timestamp" form:"timestamp"`
}

// SyncPushRequest 推送批次请求参数
type SyncPushRequest struct {
	Pantry   string              `json:"pantry" form:"pantry" binding:"required"`
	ClientID string              `json:"clientId" form:"clientId" binding:"required"`
	Records  []PushRecordRequest `json:"records" form:"records" binding:"required,dive"`
}

// OutcomeDTO 单条推送记录的裁决结果
type OutcomeDTO struct {
	Kind   string           `json:"kind"`
	Reason string           `json:"reason,omitempty"`
	Record *ChangeRecordDTO `json:"record,omitempty"`
	Entity *EntityDTO       `json:"entity,omitempty"`
}

// SyncPushResponse 推送批次响应
type SyncPushResponse struct {
	Outcomes []*OutcomeDTO `json:"outcomes"`
}

// SyncPullRequest 拉取请求参数
// Cursor 为客户端已确认的日志位置，0 表示从头拉取
type SyncPullRequest struct {
	Pantry   string `json:"pantry" form:"pantry" binding:"required"`
	ClientID string `json:"clientId" form:"clientId" binding:"required"`
	Cursor   int64  `json:"cursor" form:"cursor" binding:"gte=0"`
	Limit    int    `json:"limit" form:"limit" binding:"gte=0"`
}

// LogListRequest 只读日志请求参数
type LogListRequest struct {
	Pantry   string `json:"pantry" form:"pantry" binding:"required"`
	Position int64  `json:"position" form:"position" binding:"gte=0"`
	Limit    int    `json:"limit" form:"limit" binding:"gte=0"`
}

// LogListResponse 只读日志响应
type LogListResponse struct {
	Position int64              `json:"position"`
	Records  []*ChangeRecordDTO `json:"records"`
	HasMore  bool               `json:"hasMore"`
}

// SyncPullResponse 拉取响应
// Cursor 为新的已确认位置，HasMore 表示还有未拉完的尾部
type SyncPullResponse struct {
	Cursor  int64              `json:"cursor"`
	Records []*ChangeRecordDTO `json:"records"`
	HasMore bool               `json:"hasMore"`
}
