package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	"github.com/pantrylabs/pantry-sync-service/pkg/logger"
	"github.com/pantrylabs/pantry-sync-service/pkg/metric"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxBatchSize 单次拉取默认上限
const DefaultMaxBatchSize = 500

// SyncService 定义同步协调服务接口
// Push 按序裁决本地产生的记录，Pull 返回游标之后的权威日志尾部
type SyncService interface {
	// Push 提交一批本地记录，逐条返回裁决结果
	// 单条失败不中止整批，调用方按结果选择性重试
	Push(ctx context.Context, uid int64, params *dto.SyncPushRequest) (*dto.SyncPushResponse, error)

	// Pull 拉取游标之后的权威记录并前移游标
	Pull(ctx context.Context, uid int64, params *dto.SyncPullRequest) (*dto.SyncPullResponse, error)

	// Log 只读查看日志尾部，不移动任何客户端游标
	Log(ctx context.Context, uid int64, params *dto.LogListRequest) (*dto.LogListResponse, error)

	// Policy 当前生效的冲突策略名
	Policy() string
}

// WriteSerializer 同一实体写操作的串行化边界
type WriteSerializer interface {
	ExecuteWrite(ctx context.Context, key string, fn func() error) error
}

type syncService struct {
	entityRepo domain.EntityRepository
	changeRepo domain.ChangeLogRepository
	cursorRepo domain.CursorRepository
	pantrySvc  PantryService
	policy     ConflictPolicy
	serializer WriteSerializer
	logger     *zap.Logger
	config     *SyncServiceConfig
}

// NewSyncService 创建 SyncService 实例
func NewSyncService(
	entityRepo domain.EntityRepository,
	changeRepo domain.ChangeLogRepository,
	cursorRepo domain.CursorRepository,
	pantrySvc PantryService,
	policy ConflictPolicy,
	serializer WriteSerializer,
	lg *zap.Logger,
	cfg *SyncServiceConfig,
) SyncService {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &syncService{
		entityRepo: entityRepo,
		changeRepo: changeRepo,
		cursorRepo: cursorRepo,
		pantrySvc:  pantrySvc,
		policy:     policy,
		serializer: serializer,
		logger:     lg,
		config:     cfg,
	}
}

func (s *syncService) Policy() string {
	return s.policy.Name()
}

// writeKey 每实体临界区的队列键
func writeKey(pantryID int64, entityID string) string {
	return fmt.Sprintf("pantry:%d:entity:%s", pantryID, entityID)
}

// Push 提交一批本地记录，逐条返回裁决结果
// 同批次靠后的记录能看到靠前记录的效果
func (s *syncService) Push(ctx context.Context, uid int64, params *dto.SyncPushRequest) (*dto.SyncPushResponse, error) {
	pantry, err := s.pantrySvc.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		return nil, err
	}

	policy := s.policy
	if pantry.Policy != "" {
		if p, err := NewConflictPolicy(pantry.Policy); err == nil {
			policy = p
		}
	}

	resp := &dto.SyncPushResponse{
		Outcomes: make([]*dto.OutcomeDTO, 0, len(params.Records)),
	}

	for i := range params.Records {
		rec := s.toDomainRecord(pantry.ID, params.ClientID, &params.Records[i])
		outcome := s.pushOne(ctx, pantry.ID, policy, rec)

		metric.PushOutcomeTotal.WithLabelValues(string(outcome.Kind), policy.Name()).Inc()

		if outcome.Kind == domain.OutcomeFutureVersion {
			s.logger.Warn("push protocol violation",
				zap.String(logger.FieldEntity, rec.EntityID),
				zap.Int64(logger.FieldPantry, pantry.ID),
				zap.Int64(logger.FieldVersion, rec.BaseVersion),
				zap.String(logger.FieldActor, rec.ActorID))
		}

		resp.Outcomes = append(resp.Outcomes, s.toOutcomeDTO(outcome))
	}

	s.pantrySvc.RefreshStatsAsync(pantry.ID)

	return resp, nil
}

// toDomainRecord 组装待裁决的领域记录
// ActorID 取客户端标识，时间戳缺省取服务端时钟
func (s *syncService) toDomainRecord(pantryID int64, clientID string, in *dto.PushRecordRequest) *domain.ChangeRecord {
	ts := in.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return &domain.ChangeRecord{
		PantryID:     pantryID,
		EntityID:     in.EntityID,
		BaseVersion:  in.BaseVersion,
		NewVersion:   in.BaseVersion + 1,
		ActorID:      clientID,
		Timestamp:    ts,
		Operation:    domain.Operation(in.Operation),
		PayloadDelta: in.PayloadDelta,
		Status:       domain.RecordStatusAccepted,
	}
}

// pushOne 裁决单条记录
// 裁决 + 实体写 + 日志追加在同一实体的写队列内执行，
// 防止两次并发推送各自看到同一个过期版本后都以快进通过
func (s *syncService) pushOne(ctx context.Context, pantryID int64, policy ConflictPolicy, rec *domain.ChangeRecord) *domain.Outcome {
	if !rec.Operation.IsValid() {
		return &domain.Outcome{Kind: domain.OutcomeError, Reason: domain.ErrInvalidOperation.Error()}
	}

	var outcome *domain.Outcome
	err := s.serializer.ExecuteWrite(ctx, writeKey(pantryID, rec.EntityID), func() error {
		outcome = s.adjudicate(ctx, pantryID, policy, rec)
		return nil
	})
	if err != nil {
		return &domain.Outcome{Kind: domain.OutcomeError, Reason: err.Error()}
	}
	return outcome
}

// adjudicate 在临界区内完成裁决与落库
func (s *syncService) adjudicate(ctx context.Context, pantryID int64, policy ConflictPolicy, rec *domain.ChangeRecord) *domain.Outcome {
	// 重复投递判定：同 (entity, new_version) 的已接受记录再次到达是 no-op
	if prev, err := s.changeRepo.GetByEntityVersion(ctx, pantryID, rec.EntityID, rec.NewVersion); err == nil {
		if prev.ActorID == rec.ActorID && prev.Operation == rec.Operation {
			entity, _ := s.entityRepo.Get(ctx, rec.EntityID, pantryID)
			return &domain.Outcome{Kind: domain.OutcomeDuplicate, Record: prev, Entity: entity}
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return &domain.Outcome{Kind: domain.OutcomeError, Reason: err.Error()}
	}

	current, err := s.entityRepo.Get(ctx, rec.EntityID, pantryID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return &domain.Outcome{Kind: domain.OutcomeError, Reason: err.Error()}
		}
		current = nil
	}

	class, err := Classify(rec, current)
	if err != nil {
		// FutureVersion：协议违例，该条中止，不落库
		return &domain.Outcome{Kind: domain.OutcomeFutureVersion, Entity: current, Reason: err.Error()}
	}

	switch class {
	case domain.ClassUnknownTarget:
		return &domain.Outcome{
			Kind:   domain.OutcomeUnknownEntity,
			Reason: fmt.Sprintf("entity %s has never been seen", rec.EntityID),
		}

	case domain.ClassFastForward:
		return s.commit(ctx, domain.OutcomeAccepted, rec, applyToEntity(rec, current))

	default: // ClassConflict
		touched, err := s.touchedFieldsSince(ctx, pantryID, rec.EntityID, rec.BaseVersion)
		if err != nil {
			return &domain.Outcome{Kind: domain.OutcomeError, Reason: err.Error()}
		}

		outcome := policy.Resolve(rec, current, touched)
		if !outcome.IsApplied() {
			if outcome.Kind == domain.OutcomeRejected {
				// 拒绝的记录仍然落日志供审计，不参与拉取
				rejected := *rec
				rejected.Status = domain.RecordStatusRejected
				if _, err := s.changeRepo.Append(ctx, &rejected); err != nil {
					return &domain.Outcome{Kind: domain.OutcomeError, Reason: err.Error()}
				}
			}
			return outcome
		}
		return s.commit(ctx, outcome.Kind, outcome.Record, outcome.Entity)
	}
}

// commit 追加日志并推进实体状态
// 日志先行，实体写失败视为落库失败整体上抛
func (s *syncService) commit(ctx context.Context, kind domain.OutcomeKind, rec *domain.ChangeRecord, next *domain.Entity) *domain.Outcome {
	appended, err := s.changeRepo.Append(ctx, rec)
	if err != nil {
		return &domain.Outcome{Kind: domain.OutcomeError, Reason: err.Error()}
	}

	saved, err := s.entityRepo.Save(ctx, next)
	if err != nil {
		return &domain.Outcome{Kind: domain.OutcomeError, Reason: err.Error()}
	}

	return &domain.Outcome{Kind: kind, Record: appended, Entity: saved}
}

// touchedFieldsSince 计算 base 版本之后并发记录触达过的字段集
func (s *syncService) touchedFieldsSince(ctx context.Context, pantryID int64, entityID string, baseVersion int64) (map[string]bool, error) {
	records, err := s.changeRepo.ListByEntitySinceVersion(ctx, pantryID, entityID, baseVersion)
	if err != nil {
		return nil, err
	}

	touched := make(map[string]bool)
	for _, r := range records {
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(r.PayloadDelta), &fields); err != nil {
			continue
		}
		for k := range fields {
			touched[k] = true
		}
	}
	return touched, nil
}

// Pull 拉取游标之后的权威记录并前移游标
// 相同游标重复拉取返回相同序列，空结果表示已追平
func (s *syncService) Pull(ctx context.Context, uid int64, params *dto.SyncPullRequest) (*dto.SyncPullResponse, error) {
	pantry, err := s.pantrySvc.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 || limit > s.maxBatchSize() {
		limit = s.maxBatchSize()
	}

	records, err := s.changeRepo.Since(ctx, pantry.ID, params.Cursor, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := false
	if len(records) > limit {
		hasMore = true
		records = records[:limit]
	}

	cursor := params.Cursor
	if len(records) > 0 {
		cursor = records[len(records)-1].ID
	}

	// 游标仅在成功读取后前移，拉取失败不产生状态变化
	if _, err := s.cursorRepo.Save(ctx, &domain.Cursor{
		ClientID:   params.ClientID,
		PantryID:   pantry.ID,
		Position:   cursor,
		LastSeenAt: time.Now().UnixMilli(),
	}); err != nil {
		return nil, err
	}

	metric.PullBatchTotal.Inc()
	metric.PullRecordTotal.Add(float64(len(records)))

	out := make([]*dto.ChangeRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, s.toRecordDTO(r))
	}

	return &dto.SyncPullResponse{
		Cursor:  cursor,
		Records: out,
		HasMore: hasMore,
	}, nil
}

// Log 只读查看日志尾部，审计与调试用
func (s *syncService) Log(ctx context.Context, uid int64, params *dto.LogListRequest) (*dto.LogListResponse, error) {
	pantry, err := s.pantrySvc.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 || limit > s.maxBatchSize() {
		limit = s.maxBatchSize()
	}

	records, err := s.changeRepo.Since(ctx, pantry.ID, params.Position, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := false
	if len(records) > limit {
		hasMore = true
		records = records[:limit]
	}

	position := params.Position
	if len(records) > 0 {
		position = records[len(records)-1].ID
	}

	out := make([]*dto.ChangeRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, s.toRecordDTO(r))
	}

	return &dto.LogListResponse{
		Position: position,
		Records:  out,
		HasMore:  hasMore,
	}, nil
}

func (s *syncService) maxBatchSize() int {
	if s.config != nil && s.config.MaxBatchSize > 0 {
		return s.config.MaxBatchSize
	}
	return DefaultMaxBatchSize
}

// ------------------------------------> DTO 转换

func (s *syncService) toRecordDTO(r *domain.ChangeRecord) *dto.ChangeRecordDTO {
	if r == nil {
		return nil
	}
	return &dto.ChangeRecordDTO{
		Position:     r.ID,
		EntityID:     r.EntityID,
		BaseVersion:  r.BaseVersion,
		NewVersion:   r.NewVersion,
		ActorID:      r.ActorID,
		Timestamp:    r.Timestamp,
		Operation:    string(r.Operation),
		PayloadDelta: r.PayloadDelta,
		Status:       string(r.Status),
	}
}

func (s *syncService) toOutcomeDTO(o *domain.Outcome) *dto.OutcomeDTO {
	out := &dto.OutcomeDTO{
		Kind:   string(o.Kind),
		Reason: o.Reason,
		Record: s.toRecordDTO(o.Record),
	}
	if o.Entity != nil {
		out.Entity = toEntityDTO(o.Entity)
	}
	return out
}
