package dao

import (
	"context"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// pantryRepository 实现 domain.PantryRepository 接口
type pantryRepository struct {
	dao *Dao
}

// NewPantryRepository 创建 PantryRepository 实例
func NewPantryRepository(dao *Dao) domain.PantryRepository {
	return &pantryRepository{dao: dao}
}

func (r *pantryRepository) toDomain(m *model.Pantry) *domain.Pantry {
	if m == nil {
		return nil
	}
	return &domain.Pantry{
		ID:          m.ID,
		UID:         m.UID,
		Name:        m.Name,
		Policy:      m.Policy,
		EntityCount: m.EntityCount,
		ChangeCount: m.ChangeCount,
		CreatedAt:   time.Time(m.CreatedAt),
		UpdatedAt:   time.Time(m.UpdatedAt),
	}
}

// GetByID 根据 ID 获取库房
func (r *pantryRepository) GetByID(ctx context.Context, id int64) (*domain.Pantry, error) {
	var m model.Pantry
	err := r.dao.Db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// GetByName 根据名称获取库房
func (r *pantryRepository) GetByName(ctx context.Context, name string, uid int64) (*domain.Pantry, error) {
	var m model.Pantry
	err := r.dao.Db.WithContext(ctx).
		Where("name = ? AND uid = ?", name, uid).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// Create 创建库房
func (r *pantryRepository) Create(ctx context.Context, pantry *domain.Pantry) (*domain.Pantry, error) {
	m := &model.Pantry{
		UID:    pantry.UID,
		Name:   pantry.Name,
		Policy: pantry.Policy,
	}
	if err := r.dao.Db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// List 获取操作者的库房列表
func (r *pantryRepository) List(ctx context.Context, uid int64) ([]*domain.Pantry, error) {
	var ms []*model.Pantry
	err := r.dao.Db.WithContext(ctx).
		Where("uid = ?", uid).
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Pantry, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// UpdateStats 更新库房统计
func (r *pantryRepository) UpdateStats(ctx context.Context, entityCount, changeCount, id int64) error {
	return r.dao.Db.WithContext(ctx).Model(&model.Pantry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"entity_count": entityCount,
			"change_count": changeCount,
		}).Error
}

// ListAll 获取全部库房，后台任务用
func (r *pantryRepository) ListAll(ctx context.Context) ([]*domain.Pantry, error) {
	var ms []*model.Pantry
	if err := r.dao.Db.WithContext(ctx).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Pantry, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}
