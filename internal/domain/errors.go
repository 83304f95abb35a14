package domain

import "github.com/pkg/errors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrUnknownEntity update/delete 指向权威端从未见过的实体
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrFutureVersion 基版本超前于权威版本，协议违例
	ErrFutureVersion = errors.New("future base version")
	// ErrConflictRejected 冲突被策略拒绝，客户端需重新同步后重提
	ErrConflictRejected = errors.New("conflict rejected")
	// ErrInvalidOperation 非法的操作类型
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidPolicy 未知的冲突策略名
	ErrInvalidPolicy = errors.New("invalid conflict policy")
)
