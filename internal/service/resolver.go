package service

import (
	"strings"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// 冲突策略名
const (
	PolicyRejectStale    = "reject-stale"
	PolicyLastWriterWins = "last-writer-wins"
	PolicyFieldMerge     = "field-merge"
)

// json 使用与标准库兼容的配置，map 键有序输出
// 保证不同副本合并同一载荷时字节级一致
var json = sonic.ConfigStd

// ConflictPolicy 冲突裁决策略
// Resolve 仅在版本裁决为 Conflict 时调用，结果必须满足交换律：
// 两条冲突记录以任意顺序到达，最终实体状态一致
type ConflictPolicy interface {
	Name() string

	// Resolve 裁决一条基版本落后的入站记录
	// current 为权威实体当前状态，touched 为 base 版本之后日志条目触达过的字段集
	Resolve(incoming *domain.ChangeRecord, current *domain.Entity, touched map[string]bool) *domain.Outcome
}

// NewConflictPolicy 按名称创建策略实例
func NewConflictPolicy(name string) (ConflictPolicy, error) {
	switch strings.ToLower(name) {
	case "", PolicyRejectStale:
		return rejectStalePolicy{}, nil
	case PolicyLastWriterWins:
		return lastWriterWinsPolicy{}, nil
	case PolicyFieldMerge:
		return fieldMergePolicy{}, nil
	}
	return nil, errors.Wrap(domain.ErrInvalidPolicy, name)
}

// rewrite 以当前权威版本为基重写记录
func rewrite(incoming *domain.ChangeRecord, current *domain.Entity) *domain.ChangeRecord {
	merged := *incoming
	merged.BaseVersion = current.Version
	merged.NewVersion = current.Version + 1
	merged.Status = domain.RecordStatusAccepted
	return &merged
}

// incomingWins 与当前权威状态做最后写入者裁决
// 先比时间戳，相同按 ActorID 字典序
func incomingWins(incoming *domain.ChangeRecord, current *domain.Entity) bool {
	if incoming.Timestamp != current.LastTimestamp {
		return incoming.Timestamp > current.LastTimestamp
	}
	return incoming.ActorID > current.LastActorID
}

// redeliveredDelete 入站删除与当前墓碑同源（同 actor 同时间戳），
// 属传输层重复投递，不得再次重写版本
func redeliveredDelete(incoming *domain.ChangeRecord, current *domain.Entity) bool {
	return current.IsDeleted &&
		current.LastActorID == incoming.ActorID &&
		current.LastTimestamp == incoming.Timestamp
}

// ------------------------------------> reject-stale

// rejectStalePolicy 经典 OCC：任何冲突一律拒绝，客户端重新拉取后重提
type rejectStalePolicy struct{}

func (rejectStalePolicy) Name() string { return PolicyRejectStale }

func (rejectStalePolicy) Resolve(incoming *domain.ChangeRecord, current *domain.Entity, _ map[string]bool) *domain.Outcome {
	return &domain.Outcome{
		Kind:   domain.OutcomeRejected,
		Entity: current,
		Reason: "stale base version, refetch and resubmit",
	}
}

// ------------------------------------> last-writer-wins

// lastWriterWinsPolicy 冲突时用入站载荷覆盖当前值
// 删除始终压过更新；对墓碑的更新被拒绝，数据丢失必须是显式选择
type lastWriterWinsPolicy struct{}

func (lastWriterWinsPolicy) Name() string { return PolicyLastWriterWins }

func (lastWriterWinsPolicy) Resolve(incoming *domain.ChangeRecord, current *domain.Entity, _ map[string]bool) *domain.Outcome {
	if current.IsDeleted && !incoming.IsDelete() {
		return &domain.Outcome{
			Kind:   domain.OutcomeRejected,
			Entity: current,
			Reason: "entity tombstoned, delete wins",
		}
	}

	if incoming.IsDelete() {
		if redeliveredDelete(incoming, current) {
			return &domain.Outcome{Kind: domain.OutcomeDuplicate, Entity: current}
		}
		merged := rewrite(incoming, current)
		return &domain.Outcome{
			Kind:   domain.OutcomeOverwritten,
			Record: merged,
			Entity: applyToEntity(merged, current),
		}
	}

	if !incomingWins(incoming, current) {
		return &domain.Outcome{
			Kind:   domain.OutcomeRejected,
			Entity: current,
			Reason: "lost last-writer tie-break",
		}
	}

	merged := rewrite(incoming, current)
	return &domain.Outcome{
		Kind:   domain.OutcomeOverwritten,
		Record: merged,
		Entity: applyToEntity(merged, current),
	}
}

// ------------------------------------> field-merge

// fieldMergePolicy 不相交字段双方合并，重叠字段按 reject-stale 处理
// 入站 delta 的全部字段都与并发修改重叠时整条拒绝
type fieldMergePolicy struct{}

func (fieldMergePolicy) Name() string { return PolicyFieldMerge }

func (fieldMergePolicy) Resolve(incoming *domain.ChangeRecord, current *domain.Entity, touched map[string]bool) *domain.Outcome {
	if current.IsDeleted && !incoming.IsDelete() {
		return &domain.Outcome{
			Kind:   domain.OutcomeRejected,
			Entity: current,
			Reason: "entity tombstoned, delete wins",
		}
	}

	if incoming.IsDelete() {
		if redeliveredDelete(incoming, current) {
			return &domain.Outcome{Kind: domain.OutcomeDuplicate, Entity: current}
		}
		merged := rewrite(incoming, current)
		return &domain.Outcome{
			Kind:   domain.OutcomeOverwritten,
			Record: merged,
			Entity: applyToEntity(merged, current),
		}
	}

	var delta map[string]interface{}
	if err := json.Unmarshal([]byte(incoming.PayloadDelta), &delta); err != nil || len(delta) == 0 {
		// 非对象载荷无法按字段切分，退回整条拒绝
		return &domain.Outcome{
			Kind:   domain.OutcomeRejected,
			Entity: current,
			Reason: "payload delta is not a mergeable object",
		}
	}

	disjoint := make(map[string]interface{}, len(delta))
	var overlapped []string
	for k, v := range delta {
		if touched[k] {
			overlapped = append(overlapped, k)
			continue
		}
		disjoint[k] = v
	}

	if len(disjoint) == 0 {
		return &domain.Outcome{
			Kind:   domain.OutcomeRejected,
			Entity: current,
			Reason: "all fields overlap concurrent edits: " + strings.Join(overlapped, ","),
		}
	}

	disjointJSON, err := json.Marshal(disjoint)
	if err != nil {
		return &domain.Outcome{
			Kind:   domain.OutcomeError,
			Entity: current,
			Reason: err.Error(),
		}
	}

	merged := rewrite(incoming, current)
	merged.PayloadDelta = string(disjointJSON)

	kind := domain.OutcomeAccepted
	if len(overlapped) > 0 {
		// 部分字段被丢弃，以 overwritten 标记提醒客户端
		kind = domain.OutcomeOverwritten
	}

	return &domain.Outcome{
		Kind:   kind,
		Record: merged,
		Entity: applyToEntity(merged, current),
	}
}

// ------------------------------------> 应用

// applyToEntity 将已接受的记录应用到实体，产生新状态
// current 为 nil 仅在 create 时合法
func applyToEntity(record *domain.ChangeRecord, current *domain.Entity) *domain.Entity {
	next := &domain.Entity{
		ID:            record.EntityID,
		PantryID:      record.PantryID,
		Version:       record.NewVersion,
		LastActorID:   record.ActorID,
		LastTimestamp: record.Timestamp,
	}

	switch record.Operation {
	case domain.OperationCreate:
		next.Payload = record.PayloadDelta
	case domain.OperationDelete:
		if current != nil {
			next.Payload = current.Payload
		}
		next.IsDeleted = true
	default:
		next.Payload = mergePayload(currentPayload(current), record.PayloadDelta)
	}
	return next
}

func currentPayload(current *domain.Entity) string {
	if current == nil {
		return ""
	}
	return current.Payload
}

// mergePayload 将 delta 的字段并入 base
// 任一侧不是 JSON 对象时退化为整体替换
func mergePayload(base, delta string) string {
	var baseMap, deltaMap map[string]interface{}
	if err := json.Unmarshal([]byte(base), &baseMap); err != nil || baseMap == nil {
		return delta
	}
	if err := json.Unmarshal([]byte(delta), &deltaMap); err != nil || deltaMap == nil {
		return delta
	}

	for k, v := range deltaMap {
		baseMap[k] = v
	}
	out, err := json.Marshal(baseMap)
	if err != nil {
		return delta
	}
	return string(out)
}
