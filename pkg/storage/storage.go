// Package storage 提供备份快照的落盘目标
// 支持本地目录与 AWS S3
package storage

import (
	"time"

	"github.com/pantrylabs/pantry-sync-service/pkg/storage/aws_s3"
	"github.com/pantrylabs/pantry-sync-service/pkg/storage/local_fs"

	"github.com/pkg/errors"
)

type Type = string

const S3 Type = "s3"
const LOCAL Type = "localfs"

var StorageTypeMap = map[Type]bool{
	S3:    true,
	LOCAL: true,
}

// Config 统一的存储配置
type Config struct {
	Type Type `yaml:"type" default:"localfs"`

	IsEnabled  bool   `yaml:"is-enable"`
	CustomPath string `yaml:"custom-path"`

	// S3
	Region          string `yaml:"region"`
	BucketName      string `yaml:"bucket-name"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`

	// Local FS
	SavePath string `yaml:"save-path" default:"storage/backups"`
}

// Storager 备份目标接口
type Storager interface {
	SendContent(pathKey string, content []byte, modTime time.Time) (string, error)
	Delete(pathKey string) error
}

// NewClient 按配置创建存储客户端
func NewClient(config *Config) (Storager, error) {
	if config == nil {
		return nil, errors.New("storage: nil config")
	}

	switch config.Type {
	case LOCAL:
		return local_fs.NewClient(&local_fs.Config{
			IsEnabled:  config.IsEnabled,
			SavePath:   config.SavePath,
			CustomPath: config.CustomPath,
		})
	case S3:
		return aws_s3.NewClient(&aws_s3.Config{
			IsEnabled:       config.IsEnabled,
			Region:          config.Region,
			BucketName:      config.BucketName,
			AccessKeyID:     config.AccessKeyID,
			AccessKeySecret: config.AccessKeySecret,
			CustomPath:      config.CustomPath,
		})
	}
	return nil, errors.Errorf("storage: unsupported type %q", config.Type)
}
