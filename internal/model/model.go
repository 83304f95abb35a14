// Package model 定义数据库模型
package model

import (
	"gorm.io/gorm"
)

// AutoMigrate 按模型名执行建表迁移
func AutoMigrate(db *gorm.DB, key string) error {
	switch key {

	case "Entity":
		return db.AutoMigrate(Entity{})

	case "ChangeRecord":
		return db.AutoMigrate(ChangeRecord{})

	case "Cursor":
		return db.AutoMigrate(Cursor{})

	case "Pantry":
		return db.AutoMigrate(Pantry{})

	case "Actor":
		return db.AutoMigrate(Actor{})
	}
	return nil
}

// AutoMigrateAll 执行全部建表迁移
func AutoMigrateAll(db *gorm.DB) error {
	for _, key := range []string{"Entity", "ChangeRecord", "Cursor", "Pantry", "Actor"} {
		if err := AutoMigrate(db, key); err != nil {
			return err
		}
	}
	return nil
}
