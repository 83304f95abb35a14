// Package service 实现业务逻辑层
package service

// ServiceConfig 服务层配置
type ServiceConfig struct {
	Actor ActorServiceConfig
	Sync  SyncServiceConfig
}

// ActorServiceConfig 操作者服务配置
type ActorServiceConfig struct {
	RegisterIsEnable bool // 注册是否启用
}

// SyncServiceConfig 同步服务配置
type SyncServiceConfig struct {
	// Policy 冲突策略名：reject-stale / last-writer-wins / field-merge
	Policy string
	// MaxBatchSize 单次拉取的最大记录数
	MaxBatchSize int
	// CursorRetentionTime 闲置游标保留时间（支持格式：30d、24h，0 或空表示不清理）
	CursorRetentionTime string
}
