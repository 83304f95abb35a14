// Package dao 实现数据访问层
package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/model"
	"github.com/pantrylabs/pantry-sync-service/pkg/fileurl"
	"github.com/pantrylabs/pantry-sync-service/pkg/writequeue"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type            string `yaml:"type" default:"sqlite"`
	Path            string `yaml:"path" default:"storage/database/pantry-sync.db"`
	UserName        string `yaml:"username"`
	Password        string `yaml:"password"`
	Host            string `yaml:"host"`
	Name            string `yaml:"name"`
	TablePrefix     string `yaml:"table-prefix"`
	AutoMigrate     bool   `yaml:"auto-migrate" default:"true"`
	Charset         string `yaml:"charset" default:"utf8mb4"`
	ParseTime       bool   `yaml:"parse-time" default:"true"`
	MaxIdleConns    int    `yaml:"max-idle-conns" default:"10"`
	MaxOpenConns    int    `yaml:"max-open-conns" default:"30"`
	ConnMaxLifetime int    `yaml:"conn-max-lifetime" default:"3600"`
	RunMode         string `yaml:"-"`
}

// Dao 数据访问对象，持有连接与串行写队列
type Dao struct {
	Db     *gorm.DB
	ctx    context.Context
	config *DatabaseConfig
	logger *zap.Logger
	wq     *writequeue.Manager
}

// Option 配置选项函数类型
type Option func(*Dao)

// WithConfig 注入数据库配置
func WithConfig(c *DatabaseConfig) Option {
	return func(d *Dao) {
		d.config = c
	}
}

// WithLogger 注入日志器
func WithLogger(lg *zap.Logger) Option {
	return func(d *Dao) {
		d.logger = lg
	}
}

// WithWriteQueueManager 注入写队列管理器
func WithWriteQueueManager(wq *writequeue.Manager) Option {
	return func(d *Dao) {
		d.wq = wq
	}
}

// New 创建 DAO 实例
func New(db *gorm.DB, ctx context.Context, opts ...Option) *Dao {
	d := &Dao{
		Db:     db,
		ctx:    ctx,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DB 获取数据库连接
func (d *Dao) DB() *gorm.DB {
	return d.Db
}

// ExecuteWrite 通过写队列串行执行写操作
// key 为串行化边界，同 key 的写按 FIFO 执行
func (d *Dao) ExecuteWrite(ctx context.Context, key string, fn func() error) error {
	if d.wq == nil {
		return fn()
	}
	return d.wq.Execute(ctx, key, fn)
}

func dialector(c *DatabaseConfig) (gorm.Dialector, error) {
	switch c.Type {
	case "sqlite":
		if err := fileurl.CreatePath(c.Path, 0754); err != nil {
			return nil, err
		}
		return sqlite.Open(c.Path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=%s&parseTime=%t&loc=Local",
			c.UserName, c.Password, c.Host, c.Name, c.Charset, c.ParseTime)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.UserName, c.Password, c.Name)
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", c.Type)
}

// NewDBEngine 创建数据库连接
func NewDBEngine(c *DatabaseConfig) (*gorm.DB, error) {
	dial, err := dialector(c)
	if err != nil {
		return nil, err
	}

	logMode := logger.Silent
	if c.RunMode == "debug" {
		logMode = logger.Info
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   c.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetime) * time.Second)

	if c.AutoMigrate {
		if err := model.AutoMigrateAll(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}
