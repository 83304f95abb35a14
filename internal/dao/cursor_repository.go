package dao

import (
	"context"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// cursorRepository 实现 domain.CursorRepository 接口
type cursorRepository struct {
	dao *Dao
}

// NewCursorRepository 创建 CursorRepository 实例
func NewCursorRepository(dao *Dao) domain.CursorRepository {
	return &cursorRepository{dao: dao}
}

func (r *cursorRepository) toDomain(m *model.Cursor) *domain.Cursor {
	if m == nil {
		return nil
	}
	return &domain.Cursor{
		ID:         m.ID,
		ClientID:   m.ClientID,
		PantryID:   m.PantryID,
		Position:   m.Position,
		LastSeenAt: m.LastSeenAt,
		CreatedAt:  time.Time(m.CreatedAt),
		UpdatedAt:  time.Time(m.UpdatedAt),
	}
}

// Get 获取客户端游标
func (r *cursorRepository) Get(ctx context.Context, clientID string, pantryID int64) (*domain.Cursor, error) {
	var m model.Cursor
	err := r.dao.Db.WithContext(ctx).
		Where("client_id = ? AND pantry_id = ?", clientID, pantryID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&m), nil
}

// Save 写入或前移游标
func (r *cursorRepository) Save(ctx context.Context, cursor *domain.Cursor) (*domain.Cursor, error) {
	m := &model.Cursor{
		ClientID:   cursor.ClientID,
		PantryID:   cursor.PantryID,
		Position:   cursor.Position,
		LastSeenAt: cursor.LastSeenAt,
	}
	err := r.dao.Db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "pantry_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "last_seen_at", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// DeleteIdleBefore 删除 LastSeenAt 早于 timestamp 的游标
func (r *cursorRepository) DeleteIdleBefore(ctx context.Context, timestamp int64) (int64, error) {
	res := r.dao.Db.WithContext(ctx).
		Where("last_seen_at < ?", timestamp).
		Delete(&model.Cursor{})
	return res.RowsAffected, res.Error
}
