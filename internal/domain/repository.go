package domain

import "context"

// EntityRepository 实体仓储接口
type EntityRepository interface {
	// Get 根据 ID 获取实体，墓碑也会返回
	Get(ctx context.Context, entityID string, pantryID int64) (*Entity, error)

	// Save 写入或更新实体
	Save(ctx context.Context, entity *Entity) (*Entity, error)

	// List 分页获取实体列表
	List(ctx context.Context, pantryID int64, includeDeleted bool, page, pageSize int) ([]*Entity, error)

	// ListCount 获取实体数量
	ListCount(ctx context.Context, pantryID int64, includeDeleted bool) (int64, error)

	// All 获取库房下全部存活实体
	All(ctx context.Context, pantryID int64) ([]*Entity, error)

	// CountStats 获取存活与墓碑数量
	CountStats(ctx context.Context, pantryID int64) (*CountStatsResult, error)
}

// ChangeLogRepository 变更日志仓储接口
// 日志只追加，自增 ID 即拉取游标
type ChangeLogRepository interface {
	// Append 追加一条日志，返回带位置的记录
	Append(ctx context.Context, record *ChangeRecord) (*ChangeRecord, error)

	// Since 获取位置严格大于 position 的已接受记录，按位置升序
	Since(ctx context.Context, pantryID, position int64, limit int) ([]*ChangeRecord, error)

	// GetByEntityVersion 按 (entity_id, new_version) 查已接受记录，用于幂等判定
	GetByEntityVersion(ctx context.Context, pantryID int64, entityID string, newVersion int64) (*ChangeRecord, error)

	// ListByEntitySinceVersion 获取单实体 new_version 大于 version 的已接受记录
	// 冲突合并时用于计算并发区间触达过的字段
	ListByEntitySinceVersion(ctx context.Context, pantryID int64, entityID string, version int64) ([]*ChangeRecord, error)

	// LatestPosition 获取当前日志末尾位置
	LatestPosition(ctx context.Context, pantryID int64) (int64, error)

	// ListByEntity 分页获取单实体的历史，审计用
	ListByEntity(ctx context.Context, pantryID int64, entityID string, page, pageSize int) ([]*ChangeRecord, int64, error)

	// Count 获取库房日志条数
	Count(ctx context.Context, pantryID int64) (int64, error)
}

// CursorRepository 同步游标仓储接口
type CursorRepository interface {
	// Get 获取客户端游标
	Get(ctx context.Context, clientID string, pantryID int64) (*Cursor, error)

	// Save 写入或前移游标
	Save(ctx context.Context, cursor *Cursor) (*Cursor, error)

	// DeleteIdleBefore 删除 LastSeenAt 早于 timestamp 的游标，返回删除数量
	DeleteIdleBefore(ctx context.Context, timestamp int64) (int64, error)
}

// PantryRepository 库房仓储接口
type PantryRepository interface {
	// GetByID 根据 ID 获取库房
	GetByID(ctx context.Context, id int64) (*Pantry, error)

	// GetByName 根据名称获取库房
	GetByName(ctx context.Context, name string, uid int64) (*Pantry, error)

	// Create 创建库房
	Create(ctx context.Context, pantry *Pantry) (*Pantry, error)

	// List 获取操作者的库房列表
	List(ctx context.Context, uid int64) ([]*Pantry, error)

	// UpdateStats 更新库房统计
	UpdateStats(ctx context.Context, entityCount, changeCount, id int64) error

	// ListAll 获取全部库房，后台任务用
	ListAll(ctx context.Context) ([]*Pantry, error)
}

// ActorRepository 操作者仓储接口
type ActorRepository interface {
	// GetByUID 根据 UID 获取操作者
	GetByUID(ctx context.Context, uid int64) (*Actor, error)

	// GetByEmail 根据邮箱获取操作者
	GetByEmail(ctx context.Context, email string) (*Actor, error)

	// Create 创建操作者
	Create(ctx context.Context, actor *Actor) (*Actor, error)

	// UpdatePassword 更新密码
	UpdatePassword(ctx context.Context, password string, uid int64) error
}
