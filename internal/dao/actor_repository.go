package dao

import (
	"context"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// actorRepository 实现 domain.ActorRepository 接口
type actorRepository struct {
	dao *Dao
}

// NewActorRepository 创建 ActorRepository 实例
func NewActorRepository(dao *Dao) domain.ActorRepository {
	return &actorRepository{dao: dao}
}

func (r *actorRepository) toDomain(m *model.Actor) *domain.Actor {
	if m == nil {
		return nil
	}
	return &domain.Actor{
		UID:       m.UID,
		Email:     m.Email,
		Nickname:  m.Nickname,
		Password:  m.Password,
		Avatar:    m.Avatar,
		CreatedAt: time.Time(m.CreatedAt),
		UpdatedAt: time.Time(m.UpdatedAt),
	}
}

// GetByUID 根据 UID 获取操作者
func (r *actorRepository) GetByUID(ctx context.Context, uid int64) (*domain.Actor, error) {
	var m model.Actor
	err := r.dao.Db.WithContext(ctx).Where("uid = ?", uid).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// GetByEmail 根据邮箱获取操作者
func (r *actorRepository) GetByEmail(ctx context.Context, email string) (*domain.Actor, error) {
	var m model.Actor
	err := r.dao.Db.WithContext(ctx).Where("email = ?", email).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// Create 创建操作者
func (r *actorRepository) Create(ctx context.Context, actor *domain.Actor) (*domain.Actor, error) {
	m := &model.Actor{
		Email:    actor.Email,
		Nickname: actor.Nickname,
		Password: actor.Password,
		Avatar:   actor.Avatar,
	}
	if err := r.dao.Db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// UpdatePassword 更新密码
func (r *actorRepository) UpdatePassword(ctx context.Context, password string, uid int64) error {
	return r.dao.Db.WithContext(ctx).Model(&model.Actor{}).
		Where("uid = ?", uid).
		Update("password", password).Error
}
