package service

import (
	"context"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
)

// EntityService 实体只读查询服务
// 当前视图由权威日志推导，不参与裁决
type EntityService interface {
	// Get 获取单个实体的当前状态，墓碑也会返回
	Get(ctx context.Context, uid int64, params *dto.EntityGetRequest) (*dto.EntityDTO, error)

	// List 分页获取实体列表
	List(ctx context.Context, uid int64, params *dto.EntityListRequest, page, pageSize int) ([]*dto.EntityDTO, int64, error)

	// History 分页获取单实体的变更历史，审计用
	History(ctx context.Context, uid int64, params *dto.ChangeLogListRequest, page, pageSize int) ([]*dto.ChangeRecordDTO, int64, error)
}

type entityService struct {
	entityRepo domain.EntityRepository
	changeRepo domain.ChangeLogRepository
	pantrySvc  PantryService
}

// NewEntityService 创建 EntityService 实例
func NewEntityService(entityRepo domain.EntityRepository, changeRepo domain.ChangeLogRepository, pantrySvc PantryService) EntityService {
	return &entityService{
		entityRepo: entityRepo,
		changeRepo: changeRepo,
		pantrySvc:  pantrySvc,
	}
}

func (s *entityService) Get(ctx context.Context, uid int64, params *dto.EntityGetRequest) (*dto.EntityDTO, error) {
	pantry, err := s.pantrySvc.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		return nil, err
	}
	entity, err := s.entityRepo.Get(ctx, params.EntityID, pantry.ID)
	if err != nil {
		return nil, err
	}
	return toEntityDTO(entity), nil
}

func (s *entityService) List(ctx context.Context, uid int64, params *dto.EntityListRequest, page, pageSize int) ([]*dto.EntityDTO, int64, error) {
	pantry, err := s.pantrySvc.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		return nil, 0, err
	}
	entities, err := s.entityRepo.List(ctx, pantry.ID, params.IncludeDeleted, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.entityRepo.ListCount(ctx, pantry.ID, params.IncludeDeleted)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*dto.EntityDTO, 0, len(entities))
	for _, e := range entities {
		out = append(out, toEntityDTO(e))
	}
	return out, count, nil
}

func (s *entityService) History(ctx context.Context, uid int64, params *dto.ChangeLogListRequest, page, pageSize int) ([]*dto.ChangeRecordDTO, int64, error) {
	pantry, err := s.pantrySvc.GetOrCreate(ctx, uid, params.Pantry)
	if err != nil {
		return nil, 0, err
	}
	records, count, err := s.changeRepo.ListByEntity(ctx, pantry.ID, params.EntityID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*dto.ChangeRecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, &dto.ChangeRecordDTO{
			Position:     r.ID,
			EntityID:     r.EntityID,
			BaseVersion:  r.BaseVersion,
			NewVersion:   r.NewVersion,
			ActorID:      r.ActorID,
			Timestamp:    r.Timestamp,
			Operation:    string(r.Operation),
			PayloadDelta: r.PayloadDelta,
			Status:       string(r.Status),
		})
	}
	return out, count, nil
}

func toEntityDTO(e *domain.Entity) *dto.EntityDTO {
	return &dto.EntityDTO{
		ID:            e.ID,
		Version:       e.Version,
		Payload:       e.Payload,
		IsDeleted:     e.IsDeleted,
		LastActorID:   e.LastActorID,
		LastTimestamp: e.LastTimestamp,
	}
}
