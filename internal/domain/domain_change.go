package domain

import "time"

// RecordStatus 日志条目的接受状态
type RecordStatus string

const (
	RecordStatusAccepted RecordStatus = "accepted"
	RecordStatusRejected RecordStatus = "rejected"
)

// ChangeRecord 不可变的变更日志条目
// 被接受的条目满足 NewVersion = BaseVersion + 1（策略强制覆盖时以
// 当前权威版本 +1 重写）；追加后只会被标记 rejected，不会被改写或重排
type ChangeRecord struct {
	// ID 为日志自增位置，同时充当拉取游标
	ID           int64
	PantryID     int64
	EntityID     string
	BaseVersion  int64
	NewVersion   int64
	ActorID      string
	Timestamp    int64
	Operation    Operation
	PayloadDelta string
	Status       RecordStatus
	CreatedAt    time.Time
}

// IsDelete 判断是否为删除操作
func (r *ChangeRecord) IsDelete() bool {
	return r.Operation == OperationDelete
}

// Wins 同版本竞争时的确定性裁决
// 先比时间戳，时间戳相同按 ActorID 字典序，保证任意副本
// 以任意顺序重放两条冲突记录都得到同一结果
func (r *ChangeRecord) Wins(other *ChangeRecord) bool {
	if r.Timestamp != other.Timestamp {
		return r.Timestamp > other.Timestamp
	}
	return r.ActorID > other.ActorID
}

// Classification 版本裁决结果
type Classification int

const (
	// ClassFastForward 基版本与当前版本一致，直接推进
	ClassFastForward Classification = iota
	// ClassConflict 基版本落后于当前版本
	ClassConflict
	// ClassUnknownTarget update/delete 指向权威端从未见过的实体
	ClassUnknownTarget
)

func (c Classification) String() string {
	switch c {
	case ClassFastForward:
		return "fast-forward"
	case ClassConflict:
		return "conflict"
	case ClassUnknownTarget:
		return "unknown-target"
	}
	return "invalid"
}

// OutcomeKind 推送裁决类型
type OutcomeKind string

const (
	// OutcomeAccepted 快进或合并后接受
	OutcomeAccepted OutcomeKind = "accepted"
	// OutcomeOverwritten 策略强制覆盖后接受
	OutcomeOverwritten OutcomeKind = "overwritten"
	// OutcomeRejected 冲突拒绝，客户端需重新拉取后重提
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeDuplicate 重复投递的已接受记录，no-op
	OutcomeDuplicate OutcomeKind = "duplicate"
	// OutcomeUnknownEntity update/delete 指向未知实体
	OutcomeUnknownEntity OutcomeKind = "unknown-entity"
	// OutcomeFutureVersion 协议违例，基版本超前于权威版本
	OutcomeFutureVersion OutcomeKind = "future-version"
	// OutcomeError 落库失败等不可恢复错误
	OutcomeError OutcomeKind = "error"
)

// Outcome 每条推送记录的裁决结果
type Outcome struct {
	Kind OutcomeKind
	// Record 被接受（可能被合并重写）后的权威记录，拒绝时为 nil
	Record *ChangeRecord
	// Entity 裁决后的权威实体状态
	Entity *Entity
	// Reason 拒绝或出错原因
	Reason string
}

// IsApplied 判断该裁决是否推进了权威状态
func (o *Outcome) IsApplied() bool {
	return o.Kind == OutcomeAccepted || o.Kind == OutcomeOverwritten
}
