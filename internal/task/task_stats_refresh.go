package task

import (
	"context"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/app"
)

// StatsRefreshTask 定期对齐库房的统计字段
// 正常路径由推送后的异步刷新维护，这里兜底修复遗漏
type StatsRefreshTask struct {
	app *app.App
}

// Name 返回任务名称
func (t *StatsRefreshTask) Name() string {
	return "PantryStatsRefresh"
}

// LoopInterval 返回执行间隔
func (t *StatsRefreshTask) LoopInterval() time.Duration {
	return 30 * time.Minute
}

// IsStartupRun 是否立即执行一次
func (t *StatsRefreshTask) IsStartupRun() bool {
	return false
}

// Run 刷新全部库房统计
func (t *StatsRefreshTask) Run(ctx context.Context) error {
	pantries, err := t.app.PantryRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range pantries {
		t.app.PantryService.RefreshStatsAsync(p.ID)
	}
	return nil
}

// init 自动注册统计刷新任务
func init() {
	RegisterWithApp(func(appContainer *app.App) (Task, error) {
		return &StatsRefreshTask{app: appContainer}, nil
	})
}
