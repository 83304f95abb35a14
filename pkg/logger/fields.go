package logger

// 统一的日志字段命名常量
// 用于确保整个项目中日志字段命名的一致性，便于日志查询和分析
const (
	// FieldTraceID 追踪 ID 字段
	FieldTraceID = "traceId"

	// FieldActor 操作者 ID 字段
	FieldActor = "actor"

	// FieldAction 操作类型字段
	FieldAction = "action"

	// FieldPantry 库房 ID 字段
	FieldPantry = "pantry"

	// FieldEntity 实体 ID 字段
	FieldEntity = "entity"

	// FieldVersion 实体版本字段
	FieldVersion = "version"

	// FieldOutcome 写入裁决结果字段
	FieldOutcome = "outcome"

	// FieldPolicy 冲突策略字段
	FieldPolicy = "policy"

	// FieldCursor 日志游标位置字段
	FieldCursor = "cursor"

	// FieldBatch 批量条数字段
	FieldBatch = "batch"

	// FieldDuration 耗时字段
	FieldDuration = "duration"

	// FieldSessionID 会话 ID 字段
	FieldSessionID = "sessionId"

	// FieldMethod 方法名称字段
	FieldMethod = "method"

	// FieldError 错误信息字段
	FieldError = "error"
)
