package service

import (
	"github.com/pantrylabs/pantry-sync-service/internal/domain"

	"github.com/pkg/errors"
)

// Classify 裁决一条入站记录相对权威实体状态的关系
// current 为 nil 表示权威端从未见过该实体
// 基版本超前于当前版本视为协议违例，返回 domain.ErrFutureVersion
func Classify(record *domain.ChangeRecord, current *domain.Entity) (domain.Classification, error) {
	if current == nil {
		if record.Operation == domain.OperationCreate {
			return domain.ClassFastForward, nil
		}
		return domain.ClassUnknownTarget, nil
	}

	switch {
	case record.BaseVersion == current.Version:
		return domain.ClassFastForward, nil
	case record.BaseVersion < current.Version:
		return domain.ClassConflict, nil
	default:
		return 0, errors.Wrapf(domain.ErrFutureVersion,
			"entity %s: base %d > current %d", record.EntityID, record.BaseVersion, current.Version)
	}
}
