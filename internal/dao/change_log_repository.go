package dao

import (
	"context"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/model"
	"github.com/pantrylabs/pantry-sync-service/pkg/app"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// changeLogRepository 实现 domain.ChangeLogRepository 接口
type changeLogRepository struct {
	dao *Dao
}

// NewChangeLogRepository 创建 ChangeLogRepository 实例
func NewChangeLogRepository(dao *Dao) domain.ChangeLogRepository {
	return &changeLogRepository{dao: dao}
}

func (r *changeLogRepository) toDomain(m *model.ChangeRecord) *domain.ChangeRecord {
	if m == nil {
		return nil
	}
	return &domain.ChangeRecord{
		ID:           m.ID,
		PantryID:     m.PantryID,
		EntityID:     m.EntityID,
		BaseVersion:  m.BaseVersion,
		NewVersion:   m.NewVersion,
		ActorID:      m.ActorID,
		Timestamp:    m.Timestamp,
		Operation:    domain.Operation(m.Operation),
		PayloadDelta: m.PayloadDelta,
		Status:       domain.RecordStatus(m.Status),
		CreatedAt:    time.Time(m.CreatedAt),
	}
}

func (r *changeLogRepository) toModel(record *domain.ChangeRecord) *model.ChangeRecord {
	if record == nil {
		return nil
	}
	return &model.ChangeRecord{
		ID:           record.ID,
		PantryID:     record.PantryID,
		EntityID:     record.EntityID,
		BaseVersion:  record.BaseVersion,
		NewVersion:   record.NewVersion,
		ActorID:      record.ActorID,
		Timestamp:    record.Timestamp,
		Operation:    string(record.Operation),
		PayloadDelta: record.PayloadDelta,
		Status:       string(record.Status),
	}
}

// Append 追加一条日志，返回带位置的记录
func (r *changeLogRepository) Append(ctx context.Context, record *domain.ChangeRecord) (*domain.ChangeRecord, error) {
	m := r.toModel(record)
	m.ID = 0
	if err := r.dao.Db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// Since 获取位置严格大于 position 的已接受记录，按位置升序
func (r *changeLogRepository) Since(ctx context.Context, pantryID, position int64, limit int) ([]*domain.ChangeRecord, error) {
	var ms []*model.ChangeRecord
	q := r.dao.Db.WithContext(ctx).
		Where("pantry_id = ? AND id > ? AND status = ?", pantryID, position, string(domain.RecordStatusAccepted)).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.ChangeRecord, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// GetByEntityVersion 按 (entity_id, new_version) 查已接受记录，用于幂等判定
func (r *changeLogRepository) GetByEntityVersion(ctx context.Context, pantryID int64, entityID string, newVersion int64) (*domain.ChangeRecord, error) {
	var m model.ChangeRecord
	err := r.dao.Db.WithContext(ctx).
		Where("pantry_id = ? AND entity_id = ? AND new_version = ? AND status = ?",
			pantryID, entityID, newVersion, string(domain.RecordStatusAccepted)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// ListByEntitySinceVersion 获取单实体 new_version 大于 version 的已接受记录
func (r *changeLogRepository) ListByEntitySinceVersion(ctx context.Context, pantryID int64, entityID string, version int64) ([]*domain.ChangeRecord, error) {
	var ms []*model.ChangeRecord
	err := r.dao.Db.WithContext(ctx).
		Where("pantry_id = ? AND entity_id = ? AND new_version > ? AND status = ?",
			pantryID, entityID, version, string(domain.RecordStatusAccepted)).
		Order("new_version ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ChangeRecord, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// LatestPosition 获取当前日志末尾位置
func (r *changeLogRepository) LatestPosition(ctx context.Context, pantryID int64) (int64, error) {
	var m model.ChangeRecord
	err := r.dao.Db.WithContext(ctx).
		Where("pantry_id = ?", pantryID).
		Order("id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return m.ID, nil
}

// ListByEntity 分页获取单实体的历史，审计用
func (r *changeLogRepository) ListByEntity(ctx context.Context, pantryID int64, entityID string, page, pageSize int) ([]*domain.ChangeRecord, int64, error) {
	var count int64
	q := r.dao.Db.WithContext(ctx).Model(&model.ChangeRecord{}).
		Where("pantry_id = ? AND entity_id = ?", pantryID, entityID)
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var ms []*model.ChangeRecord
	err := r.dao.Db.WithContext(ctx).
		Where("pantry_id = ? AND entity_id = ?", pantryID, entityID).
		Order("id DESC").
		Offset(app.GetPageOffset(page, pageSize)).
		Limit(pageSize).
		Find(&ms).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]*domain.ChangeRecord, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, count, nil
}

// Count 获取库房日志条数
func (r *changeLogRepository) Count(ctx context.Context, pantryID int64) (int64, error) {
	var count int64
	err := r.dao.Db.WithContext(ctx).Model(&model.ChangeRecord{}).
		Where("pantry_id = ?", pantryID).
		Count(&count).Error
	return count, err
}
