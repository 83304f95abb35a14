package task

import (
	"context"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/app"
	"github.com/pantrylabs/pantry-sync-service/pkg/util"

	"go.uber.org/zap"
)

// CursorCleanupTask 清理长期离线客户端的同步游标
// 游标只是断点续传的便利，删掉后客户端从头拉取即可恢复
type CursorCleanupTask struct {
	app       *app.App
	retention time.Duration
}

// Name 返回任务名称
func (t *CursorCleanupTask) Name() string {
	return "CursorCleanup"
}

// LoopInterval 返回执行间隔
func (t *CursorCleanupTask) LoopInterval() time.Duration {
	return 10 * time.Minute
}

// IsStartupRun 是否立即执行一次
func (t *CursorCleanupTask) IsStartupRun() bool {
	return true
}

// Run 执行清理
func (t *CursorCleanupTask) Run(ctx context.Context) error {
	before := time.Now().Add(-t.retention).UnixMilli()

	deleted, err := t.app.CursorRepo.DeleteIdleBefore(ctx, before)
	if err != nil {
		return err
	}

	if deleted > 0 {
		t.app.Logger().Info("task log",
			zap.String("task", t.Name()),
			zap.Int64("deleted", deleted))
	}
	return nil
}

// NewCursorCleanupTask 创建游标清理任务，未配置保留期则停用
func NewCursorCleanupTask(appContainer *app.App) (Task, error) {
	retentionStr := appContainer.Config().Sync.CursorRetentionTime
	if retentionStr == "" {
		return nil, nil
	}
	duration, err := util.ParseDuration(retentionStr)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, nil
	}

	return &CursorCleanupTask{app: appContainer, retention: duration}, nil
}

// init 自动注册游标清理任务
func init() {
	RegisterWithApp(func(appContainer *app.App) (Task, error) {
		return NewCursorCleanupTask(appContainer)
	})
}
