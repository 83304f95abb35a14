package dao

import (
	"context"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/model"
	"github.com/pantrylabs/pantry-sync-service/pkg/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/convert"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entityRepository 实现 domain.EntityRepository 接口
type entityRepository struct {
	dao *Dao
}

// NewEntityRepository 创建 EntityRepository 实例
func NewEntityRepository(dao *Dao) domain.EntityRepository {
	return &entityRepository{dao: dao}
}

func (r *entityRepository) toDomain(m *model.Entity) *domain.Entity {
	if m == nil {
		return nil
	}
	return &domain.Entity{
		ID:            m.EntityID,
		PantryID:      m.PantryID,
		Version:       m.Version,
		Payload:       m.Payload,
		IsDeleted:     m.IsDeleted != 0,
		LastActorID:   m.LastActorID,
		LastTimestamp: m.LastTimestamp,
		CreatedAt:     time.Time(m.CreatedAt),
		UpdatedAt:     time.Time(m.UpdatedAt),
	}
}

func (r *entityRepository) toModel(e *domain.Entity) *model.Entity {
	if e == nil {
		return nil
	}
	return &model.Entity{
		EntityID:      e.ID,
		PantryID:      e.PantryID,
		Version:       e.Version,
		Payload:       e.Payload,
		IsDeleted:     convert.Bool2Int(e.IsDeleted),
		LastActorID:   e.LastActorID,
		LastTimestamp: e.LastTimestamp,
	}
}

// Get 根据 ID 获取实体，墓碑也会返回
func (r *entityRepository) Get(ctx context.Context, entityID string, pantryID int64) (*domain.Entity, error) {
	var m model.Entity
	err := r.dao.Db.WithContext(ctx).
		Where("entity_id = ? AND pantry_id = ?", entityID, pantryID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// Save 写入或更新实体，按 (entity_id, pantry_id) 冲突时整行更新
func (r *entityRepository) Save(ctx context.Context, entity *domain.Entity) (*domain.Entity, error) {
	m := r.toModel(entity)
	err := r.dao.Db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "entity_id"}, {Name: "pantry_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"version", "payload", "is_deleted", "last_actor_id", "last_timestamp", "updated_at",
			}),
		}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// List 分页获取实体列表
func (r *entityRepository) List(ctx context.Context, pantryID int64, includeDeleted bool, page, pageSize int) ([]*domain.Entity, error) {
	var ms []*model.Entity
	q := r.dao.Db.WithContext(ctx).Where("pantry_id = ?", pantryID)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", 0)
	}
	err := q.Order("updated_at DESC").
		Offset(app.GetPageOffset(page, pageSize)).
		Limit(pageSize).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Entity, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// ListCount 获取实体数量
func (r *entityRepository) ListCount(ctx context.Context, pantryID int64, includeDeleted bool) (int64, error) {
	var count int64
	q := r.dao.Db.WithContext(ctx).Model(&model.Entity{}).Where("pantry_id = ?", pantryID)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", 0)
	}
	err := q.Count(&count).Error
	return count, err
}

// All 获取库房下全部存活实体
func (r *entityRepository) All(ctx context.Context, pantryID int64) ([]*domain.Entity, error) {
	var ms []*model.Entity
	err := r.dao.Db.WithContext(ctx).
		Where("pantry_id = ? AND is_deleted = ?", pantryID, 0).
		Order("entity_id").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Entity, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// CountStats 获取存活与墓碑数量
func (r *entityRepository) CountStats(ctx context.Context, pantryID int64) (*domain.CountStatsResult, error) {
	var alive, tombstone int64
	db := r.dao.Db.WithContext(ctx).Model(&model.Entity{})
	if err := db.Where("pantry_id = ? AND is_deleted = ?", pantryID, 0).Count(&alive).Error; err != nil {
		return nil, err
	}
	db = r.dao.Db.WithContext(ctx).Model(&model.Entity{})
	if err := db.Where("pantry_id = ? AND is_deleted = ?", pantryID, 1).Count(&tombstone).Error; err != nil {
		return nil, err
	}
	return &domain.CountStatsResult{EntityCount: alive, TombstoneCount: tombstone}, nil
}
