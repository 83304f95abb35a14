package global

import (
	"github.com/pantrylabs/pantry-sync-service/pkg/fileurl"
)

var (
	// 程序执行目录
	ROOT string
	Name string = "Pantry Sync Service"
)

func init() {
	ROOT = fileurl.GetExePath() + "/"
}
