// Package domain 定义领域模型和接口
package domain

import "time"

// Operation 定义变更操作类型
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// IsValid 判断操作类型是否合法
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Entity 共享实体的当前物化值
// Version 随每次被接受的变更严格递增，从 1 开始
// 删除的实体保留 ID 与最终版本作为墓碑，不会被物理清除
type Entity struct {
	ID            string
	PantryID      int64
	Version       int64
	Payload       string
	IsDeleted     bool
	LastActorID   string
	LastTimestamp int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsTombstone 判断实体是否为墓碑
func (e *Entity) IsTombstone() bool {
	return e.IsDeleted
}

// CountStatsResult 统计结果
type CountStatsResult struct {
	EntityCount    int64
	TombstoneCount int64
}
