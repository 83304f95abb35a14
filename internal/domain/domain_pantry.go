package domain

import "time"

// Pantry 共享库房，多客户端同步的隔离单元
type Pantry struct {
	ID          int64
	UID         int64
	Name        string
	Policy      string
	EntityCount int64
	ChangeCount int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Actor 操作者账号
type Actor struct {
	UID       int64
	Email     string
	Nickname  string
	Password  string
	Token     string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
