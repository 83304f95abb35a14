package local_fs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pantrylabs/pantry-sync-service/pkg/fileurl"

	"github.com/pkg/errors"
)

type Config struct {
	IsEnabled  bool   `yaml:"is-enable" default:"true"`
	SavePath   string `yaml:"save-path" default:"storage/backups"`
	CustomPath string `yaml:"custom-path"`
}

// LocalFS 本地目录备份目标
type LocalFS struct {
	Config *Config
}

func NewClient(conf *Config) (*LocalFS, error) {
	if conf.SavePath == "" {
		conf.SavePath = "storage/backups"
	}
	return &LocalFS{Config: conf}, nil
}

// SendContent 写入内容到本地文件，返回落盘路径
func (l *LocalFS) SendContent(pathKey string, content []byte, modTime time.Time) (string, error) {
	dst := filepath.Join(l.Config.SavePath, l.Config.CustomPath, pathKey)

	if err := fileurl.CreatePath(dst, os.ModePerm); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}
	if err := os.WriteFile(dst, content, 0644); err != nil {
		return "", errors.Wrap(err, "local_fs")
	}
	if !modTime.IsZero() {
		_ = os.Chtimes(dst, modTime, modTime)
	}
	return dst, nil
}

// Delete 删除本地文件
func (l *LocalFS) Delete(pathKey string) error {
	dst := filepath.Join(l.Config.SavePath, l.Config.CustomPath, pathKey)
	if !fileurl.IsExist(dst) {
		return nil
	}
	return errors.Wrap(os.Remove(dst), "local_fs")
}
