package service

import (
	"context"
	"fmt"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	"github.com/pantrylabs/pantry-sync-service/pkg/timex"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PantryService 储藏室（同步域）管理服务
// 每个储藏室持有独立的实体集、权威日志与冲突策略
type PantryService interface {
	// GetOrCreate 按名称取储藏室，不存在时创建，并发创建只落一条
	GetOrCreate(ctx context.Context, uid int64, name string) (*domain.Pantry, error)

	// Get 按 ID 取储藏室
	Get(ctx context.Context, pantryID int64) (*domain.Pantry, error)

	// Create 显式创建储藏室并指定冲突策略
	Create(ctx context.Context, uid int64, params *dto.PantryCreateRequest) (*dto.PantryDTO, error)

	// List 列出某账号下的全部储藏室
	List(ctx context.Context, uid int64) ([]*dto.PantryDTO, error)

	// Stats 储藏室的实体与日志统计
	Stats(ctx context.Context, pantryID int64) (*dto.PantryStatsDTO, error)

	// PolicyFor 储藏室生效的冲突策略，未配置时退回服务默认
	PolicyFor(ctx context.Context, pantryID int64) (ConflictPolicy, error)

	// RefreshStatsAsync 异步刷新统计字段，失败只记日志
	RefreshStatsAsync(pantryID int64)
}

// TaskSubmitter 后台任务提交边界
type TaskSubmitter interface {
	SubmitTask(task func()) error
}

type pantryService struct {
	pantryRepo domain.PantryRepository
	entityRepo domain.EntityRepository
	changeRepo domain.ChangeLogRepository
	submitter  TaskSubmitter
	logger     *zap.Logger
	config     *SyncServiceConfig
	sf         singleflight.Group
}

// NewPantryService 创建 PantryService 实例
func NewPantryService(
	pantryRepo domain.PantryRepository,
	entityRepo domain.EntityRepository,
	changeRepo domain.ChangeLogRepository,
	submitter TaskSubmitter,
	lg *zap.Logger,
	cfg *SyncServiceConfig,
) PantryService {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &pantryService{
		pantryRepo: pantryRepo,
		entityRepo: entityRepo,
		changeRepo: changeRepo,
		submitter:  submitter,
		logger:     lg,
		config:     cfg,
	}
}

func (s *pantryService) GetOrCreate(ctx context.Context, uid int64, name string) (*domain.Pantry, error) {
	if p, err := s.pantryRepo.GetByName(ctx, name, uid); err == nil {
		return p, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// singleflight 合并同名并发创建
	key := fmt.Sprintf("pantry:%d:%s", uid, name)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if p, err := s.pantryRepo.GetByName(ctx, name, uid); err == nil {
			return p, nil
		}
		return s.pantryRepo.Create(ctx, &domain.Pantry{
			UID:    uid,
			Name:   name,
			Policy: s.defaultPolicy(),
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Pantry), nil
}

func (s *pantryService) Get(ctx context.Context, pantryID int64) (*domain.Pantry, error) {
	return s.pantryRepo.GetByID(ctx, pantryID)
}

func (s *pantryService) Create(ctx context.Context, uid int64, params *dto.PantryCreateRequest) (*dto.PantryDTO, error) {
	if _, err := s.pantryRepo.GetByName(ctx, params.Name, uid); err == nil {
		return nil, errors.Errorf("pantry %s already exists", params.Name)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	policy := params.Policy
	if policy == "" {
		policy = s.defaultPolicy()
	}
	if _, err := NewConflictPolicy(policy); err != nil {
		return nil, err
	}

	p, err := s.pantryRepo.Create(ctx, &domain.Pantry{
		UID:    uid,
		Name:   params.Name,
		Policy: policy,
	})
	if err != nil {
		return nil, err
	}
	return toPantryDTO(p), nil
}

func (s *pantryService) List(ctx context.Context, uid int64) ([]*dto.PantryDTO, error) {
	pantries, err := s.pantryRepo.List(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.PantryDTO, 0, len(pantries))
	for _, p := range pantries {
		out = append(out, toPantryDTO(p))
	}
	return out, nil
}

func (s *pantryService) Stats(ctx context.Context, pantryID int64) (*dto.PantryStatsDTO, error) {
	stats, err := s.entityRepo.CountStats(ctx, pantryID)
	if err != nil {
		return nil, err
	}
	changeCount, err := s.changeRepo.Count(ctx, pantryID)
	if err != nil {
		return nil, err
	}
	position, err := s.changeRepo.LatestPosition(ctx, pantryID)
	if err != nil {
		return nil, err
	}
	return &dto.PantryStatsDTO{
		ID:             pantryID,
		EntityCount:    stats.EntityCount,
		TombstoneCount: stats.TombstoneCount,
		ChangeCount:    changeCount,
		LogPosition:    position,
	}, nil
}

func (s *pantryService) PolicyFor(ctx context.Context, pantryID int64) (ConflictPolicy, error) {
	p, err := s.pantryRepo.GetByID(ctx, pantryID)
	if err != nil {
		return nil, err
	}
	name := p.Policy
	if name == "" {
		name = s.defaultPolicy()
	}
	return NewConflictPolicy(name)
}

func (s *pantryService) RefreshStatsAsync(pantryID int64) {
	if s.submitter == nil {
		return
	}
	err := s.submitter.SubmitTask(func() {
		ctx := context.Background()
		stats, err := s.entityRepo.CountStats(ctx, pantryID)
		if err != nil {
			s.logger.Warn("refresh pantry stats", zap.Int64("pantryId", pantryID), zap.Error(err))
			return
		}
		changeCount, err := s.changeRepo.Count(ctx, pantryID)
		if err != nil {
			s.logger.Warn("refresh pantry stats", zap.Int64("pantryId", pantryID), zap.Error(err))
			return
		}
		if err := s.pantryRepo.UpdateStats(ctx, stats.EntityCount, changeCount, pantryID); err != nil {
			s.logger.Warn("refresh pantry stats", zap.Int64("pantryId", pantryID), zap.Error(err))
		}
	})
	if err != nil {
		s.logger.Warn("submit stats refresh", zap.Int64("pantryId", pantryID), zap.Error(err))
	}
}

func (s *pantryService) defaultPolicy() string {
	if s.config != nil && s.config.Policy != "" {
		return s.config.Policy
	}
	return PolicyRejectStale
}

func toPantryDTO(p *domain.Pantry) *dto.PantryDTO {
	return &dto.PantryDTO{
		ID:          p.ID,
		Name:        p.Name,
		Policy:      p.Policy,
		EntityCount: p.EntityCount,
		ChangeCount: p.ChangeCount,
		CreatedAt:   timex.Time(p.CreatedAt),
		UpdatedAt:   timex.Time(p.UpdatedAt),
	}
}
