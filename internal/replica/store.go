// Package replica 实现客户端副本：本地乐观视图、传输层与同步协调器
// 本地编辑永远即时生效，网络同步在后台追平权威日志
package replica

import (
	"sort"
	"sync"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// json 使用标准配置，保证 map 序列化键序稳定
var json = sonic.ConfigStd

// EntityView 本地视图中的实体
// Dirty 表示存在尚未被权威端确认的本地编辑
type EntityView struct {
	ID        string
	Version   int64
	Payload   string
	IsDeleted bool
	Dirty     bool
}

// Store 本地乐观存储
// 编辑先落本地视图并入待推送队列，权威记录回放时收敛
type Store struct {
	mu       sync.RWMutex
	entities map[string]*EntityView
	pending  []dto.PushRecordRequest
	cursor   int64
}

// NewStore 创建空的本地存储
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*EntityView),
	}
}

// SubmitEdit 记录一次本地编辑并乐观应用到本地视图
// BaseVersion 取编辑时刻的本地版本，create 为 0
func (s *Store) SubmitEdit(entityID string, op domain.Operation, payloadDelta string) (*dto.PushRecordRequest, error) {
	if !op.IsValid() {
		return nil, domain.ErrInvalidOperation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.entities[entityID]

	var base int64
	switch op {
	case domain.OperationCreate:
		// 墓碑之上的 base 0 create 必然与权威端的版本裁决冲突，同样拦下
		if current != nil {
			if current.IsDeleted {
				return nil, errors.Errorf("entity %s is deleted locally", entityID)
			}
			return nil, errors.Errorf("entity %s already exists locally", entityID)
		}
		base = 0
	default:
		if current == nil {
			return nil, errors.Wrapf(domain.ErrUnknownEntity, "entity %s", entityID)
		}
		if current.IsDeleted {
			return nil, errors.Errorf("entity %s is deleted locally", entityID)
		}
		base = current.Version
	}

	rec := dto.PushRecordRequest{
		EntityID:     entityID,
		BaseVersion:  base,
		Operation:    string(op),
		PayloadDelta: payloadDelta,
		Timestamp:    time.Now().UnixMilli(),
	}

	s.applyLocked(entityID, op, payloadDelta, base+1, true)
	s.pending = append(s.pending, rec)

	return &rec, nil
}

// Get 获取本地视图中的实体快照
func (s *Store) Get(entityID string) (EntityView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.entities[entityID]
	if e == nil {
		return EntityView{}, false
	}
	return *e, true
}

// CurrentView 本地全量视图快照，按 ID 排序，墓碑不含在内
func (s *Store) CurrentView() []EntityView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EntityView, 0, len(s.entities))
	for _, e := range s.entities {
		if e.IsDeleted {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pending 待推送记录快照
func (s *Store) Pending() []dto.PushRecordRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dto.PushRecordRequest, len(s.pending))
	copy(out, s.pending)
	return out
}

// PendingCount 待推送记录数
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// AckPending 丢弃已被权威端裁决的前 n 条待推送记录
func (s *Store) AckPending(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.pending) {
		n = len(s.pending)
	}
	s.pending = s.pending[n:]
}

// Cursor 已确认的日志位置
func (s *Store) Cursor() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// AdvanceCursor 前移已确认的日志位置，只进不退
func (s *Store) AdvanceCursor(position int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position > s.cursor {
		s.cursor = position
	}
}

// ApplyRemote 回放一条权威记录到本地视图
// 权威端已裁决，版本与值无条件覆盖本地状态，游标前移
func (s *Store) ApplyRemote(rec *dto.ChangeRecordDTO) {
	if rec == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 日志按位置升序回放，乱序或重放的旧记录跳过
	if rec.Position != 0 && rec.Position <= s.cursor {
		return
	}

	// 视图可能已经由推送裁决直接对齐到更高的权威版本，低版本记录不回退
	if current := s.entities[rec.EntityID]; current == nil || rec.NewVersion > current.Version {
		s.applyLocked(rec.EntityID, domain.Operation(rec.Operation), rec.PayloadDelta, rec.NewVersion, false)
	}

	if rec.Position > s.cursor {
		s.cursor = rec.Position
	}
}

// ApplyAuthority 用权威实体状态修复本地视图
// 本地编辑被拒绝后以权威端为准，Dirty 标记清除
func (s *Store) ApplyAuthority(e *dto.EntityDTO) {
	if e == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[e.ID] = &EntityView{
		ID:        e.ID,
		Version:   e.Version,
		Payload:   e.Payload,
		IsDeleted: e.IsDeleted,
	}
}

// applyLocked 将一次变更应用到本地视图，调用方负责持锁
func (s *Store) applyLocked(entityID string, op domain.Operation, payloadDelta string, version int64, dirty bool) {
	current := s.entities[entityID]

	switch op {
	case domain.OperationDelete:
		payload := ""
		if current != nil {
			payload = current.Payload
		}
		s.entities[entityID] = &EntityView{
			ID:        entityID,
			Version:   version,
			Payload:   payload,
			IsDeleted: true,
			Dirty:     dirty,
		}

	case domain.OperationCreate:
		s.entities[entityID] = &EntityView{
			ID:      entityID,
			Version: version,
			Payload: payloadDelta,
			Dirty:   dirty,
		}

	default: // update
		payload := payloadDelta
		if current != nil && !current.IsDeleted {
			payload = mergePayload(current.Payload, payloadDelta)
		}
		s.entities[entityID] = &EntityView{
			ID:      entityID,
			Version: version,
			Payload: payload,
			Dirty:   dirty,
		}
	}
}

// mergePayload 将 delta 的字段并入 base，两者非对象时 delta 整体覆盖
func mergePayload(base, delta string) string {
	var baseMap, deltaMap map[string]interface{}
	if err := json.Unmarshal([]byte(base), &baseMap); err != nil {
		return delta
	}
	if err := json.Unmarshal([]byte(delta), &deltaMap); err != nil {
		return delta
	}
	for k, v := range deltaMap {
		baseMap[k] = v
	}
	merged, err := json.Marshal(baseMap)
	if err != nil {
		return delta
	}
	return string(merged)
}
