package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/pantrylabs/pantry-sync-service/internal/dao"
	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	"github.com/pantrylabs/pantry-sync-service/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testUID = int64(42)

func newTestSyncService(t *testing.T, policy string) SyncService {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrateAll(db))

	d := dao.New(db, context.Background())
	entityRepo := dao.NewEntityRepository(d)
	changeRepo := dao.NewChangeLogRepository(d)
	cursorRepo := dao.NewCursorRepository(d)
	pantryRepo := dao.NewPantryRepository(d)

	cfg := &SyncServiceConfig{Policy: policy, MaxBatchSize: 100}
	pantrySvc := NewPantryService(pantryRepo, entityRepo, changeRepo, nil, zap.NewNop(), cfg)

	p, err := NewConflictPolicy(policy)
	require.NoError(t, err)

	return NewSyncService(entityRepo, changeRepo, cursorRepo, pantrySvc, p, d, zap.NewNop(), cfg)
}

func pushReq(clientID string, records ...dto.PushRecordRequest) *dto.SyncPushRequest {
	return &dto.SyncPushRequest{
		Pantry:   "kitchen",
		ClientID: clientID,
		Records:  records,
	}
}

func pullReq(clientID string, cursor int64, limit int) *dto.SyncPullRequest {
	return &dto.SyncPullRequest{
		Pantry:   "kitchen",
		ClientID: clientID,
		Cursor:   cursor,
		Limit:    limit,
	}
}

func TestSyncService_PushPullCycle(t *testing.T) {
	svc := newTestSyncService(t, PolicyRejectStale)
	ctx := context.Background()

	resp, err := svc.Push(ctx, testUID, pushReq("client-a",
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":1}`, Timestamp: 100},
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 1, Operation: "update", PayloadDelta: `{"qty":2}`, Timestamp: 200},
	))
	require.NoError(t, err)
	require.Len(t, resp.Outcomes, 2)
	assert.Equal(t, string(domain.OutcomeAccepted), resp.Outcomes[0].Kind)
	assert.Equal(t, string(domain.OutcomeAccepted), resp.Outcomes[1].Kind)
	assert.Equal(t, int64(2), resp.Outcomes[1].Entity.Version)

	pull, err := svc.Pull(ctx, testUID, pullReq("client-b", 0, 0))
	require.NoError(t, err)
	require.Len(t, pull.Records, 2)
	assert.False(t, pull.HasMore)
	assert.Equal(t, int64(1), pull.Records[0].NewVersion)
	assert.Equal(t, int64(2), pull.Records[1].NewVersion)
	assert.Greater(t, pull.Cursor, int64(0))

	// 已追平后再拉为空，游标不回退
	again, err := svc.Pull(ctx, testUID, pullReq("client-b", pull.Cursor, 0))
	require.NoError(t, err)
	assert.Empty(t, again.Records)
	assert.Equal(t, pull.Cursor, again.Cursor)
}

func TestSyncService_DuplicateRedeliveryIsNoop(t *testing.T) {
	svc := newTestSyncService(t, PolicyRejectStale)
	ctx := context.Background()

	rec := dto.PushRecordRequest{EntityID: "milk", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":1}`, Timestamp: 100}

	first, err := svc.Push(ctx, testUID, pushReq("client-a", rec))
	require.NoError(t, err)
	require.Equal(t, string(domain.OutcomeAccepted), first.Outcomes[0].Kind)

	// 同一条记录重投，裁决为 duplicate 且不追加日志
	second, err := svc.Push(ctx, testUID, pushReq("client-a", rec))
	require.NoError(t, err)
	assert.Equal(t, string(domain.OutcomeDuplicate), second.Outcomes[0].Kind)

	pull, err := svc.Pull(ctx, testUID, pullReq("client-b", 0, 0))
	require.NoError(t, err)
	assert.Len(t, pull.Records, 1)
}

func TestSyncService_DeleteRedeliveryIsNoopUnderLastWriterWins(t *testing.T) {
	svc := newTestSyncService(t, PolicyLastWriterWins)
	ctx := context.Background()

	_, err := svc.Push(ctx, testUID, pushReq("client-a",
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":1}`, Timestamp: 100},
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 1, Operation: "update", PayloadDelta: `{"qty":2}`, Timestamp: 200},
	))
	require.NoError(t, err)

	// 旧基版本的删除在冲突裁决下重写为 v3 墓碑
	del := dto.PushRecordRequest{EntityID: "milk", BaseVersion: 1, Operation: "delete", Timestamp: 300}
	first, err := svc.Push(ctx, testUID, pushReq("client-c", del))
	require.NoError(t, err)
	require.Equal(t, string(domain.OutcomeOverwritten), first.Outcomes[0].Kind)
	require.Equal(t, int64(3), first.Outcomes[0].Entity.Version)

	// 响应丢失后原样重投：不再生成新墓碑，版本与日志保持不变
	second, err := svc.Push(ctx, testUID, pushReq("client-c", del))
	require.NoError(t, err)
	assert.Equal(t, string(domain.OutcomeDuplicate), second.Outcomes[0].Kind)
	assert.Equal(t, int64(3), second.Outcomes[0].Entity.Version)
	assert.True(t, second.Outcomes[0].Entity.IsDeleted)

	pull, err := svc.Pull(ctx, testUID, pullReq("client-d", 0, 0))
	require.NoError(t, err)
	assert.Len(t, pull.Records, 3)
}

func TestSyncService_DeleteRedeliveryIsNoopUnderFieldMerge(t *testing.T) {
	svc := newTestSyncService(t, PolicyFieldMerge)
	ctx := context.Background()

	_, err := svc.Push(ctx, testUID, pushReq("client-a",
		dto.PushRecordRequest{EntityID: "eggs", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":12}`, Timestamp: 100},
		dto.PushRecordRequest{EntityID: "eggs", BaseVersion: 1, Operation: "update", PayloadDelta: `{"qty":6}`, Timestamp: 200},
	))
	require.NoError(t, err)

	del := dto.PushRecordRequest{EntityID: "eggs", BaseVersion: 1, Operation: "delete", Timestamp: 300}
	first, err := svc.Push(ctx, testUID, pushReq("client-c", del))
	require.NoError(t, err)
	require.Equal(t, string(domain.OutcomeOverwritten), first.Outcomes[0].Kind)

	second, err := svc.Push(ctx, testUID, pushReq("client-c", del))
	require.NoError(t, err)
	assert.Equal(t, string(domain.OutcomeDuplicate), second.Outcomes[0].Kind)
	assert.Equal(t, first.Outcomes[0].Entity.Version, second.Outcomes[0].Entity.Version)
}

func TestSyncService_ConflictRejectedNotPulled(t *testing.T) {
	svc := newTestSyncService(t, PolicyRejectStale)
	ctx := context.Background()

	_, err := svc.Push(ctx, testUID, pushReq("client-a",
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":1}`, Timestamp: 100},
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 1, Operation: "update", PayloadDelta: `{"qty":2}`, Timestamp: 200},
	))
	require.NoError(t, err)

	resp, err := svc.Push(ctx, testUID, pushReq("client-b",
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 1, Operation: "update", PayloadDelta: `{"qty":9}`, Timestamp: 300},
	))
	require.NoError(t, err)
	assert.Equal(t, string(domain.OutcomeRejected), resp.Outcomes[0].Kind)
	assert.Equal(t, int64(2), resp.Outcomes[0].Entity.Version)

	// 被拒记录不出现在权威日志尾部
	pull, err := svc.Pull(ctx, testUID, pullReq("client-c", 0, 0))
	require.NoError(t, err)
	require.Len(t, pull.Records, 2)
	for _, r := range pull.Records {
		assert.Equal(t, string(domain.RecordStatusAccepted), r.Status)
	}
}

func TestSyncService_UpdateOnUnseenEntity(t *testing.T) {
	svc := newTestSyncService(t, PolicyRejectStale)

	resp, err := svc.Push(context.Background(), testUID, pushReq("client-a",
		dto.PushRecordRequest{EntityID: "ghost", BaseVersion: 3, Operation: "update", PayloadDelta: `{"qty":1}`, Timestamp: 100},
	))
	require.NoError(t, err)
	assert.Equal(t, string(domain.OutcomeUnknownEntity), resp.Outcomes[0].Kind)
}

func TestSyncService_FutureVersionDoesNotAbortBatch(t *testing.T) {
	svc := newTestSyncService(t, PolicyRejectStale)
	ctx := context.Background()

	resp, err := svc.Push(ctx, testUID, pushReq("client-a",
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":1}`, Timestamp: 100},
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 7, Operation: "update", PayloadDelta: `{"qty":2}`, Timestamp: 200},
		dto.PushRecordRequest{EntityID: "eggs", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":12}`, Timestamp: 300},
	))
	require.NoError(t, err)
	require.Len(t, resp.Outcomes, 3)
	assert.Equal(t, string(domain.OutcomeAccepted), resp.Outcomes[0].Kind)
	assert.Equal(t, string(domain.OutcomeFutureVersion), resp.Outcomes[1].Kind)
	assert.Equal(t, string(domain.OutcomeAccepted), resp.Outcomes[2].Kind)
}

func TestSyncService_LastWriterWinsAppendsMergedRecord(t *testing.T) {
	svc := newTestSyncService(t, PolicyLastWriterWins)
	ctx := context.Background()

	_, err := svc.Push(ctx, testUID, pushReq("client-a",
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":1}`, Timestamp: 100},
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 1, Operation: "update", PayloadDelta: `{"qty":2}`, Timestamp: 200},
	))
	require.NoError(t, err)

	resp, err := svc.Push(ctx, testUID, pushReq("client-b",
		dto.PushRecordRequest{EntityID: "milk", BaseVersion: 1, Operation: "update", PayloadDelta: `{"qty":9}`, Timestamp: 300},
	))
	require.NoError(t, err)
	require.Equal(t, string(domain.OutcomeOverwritten), resp.Outcomes[0].Kind)
	// 合并记录以权威当前版本为基重写
	assert.Equal(t, int64(2), resp.Outcomes[0].Record.BaseVersion)
	assert.Equal(t, int64(3), resp.Outcomes[0].Record.NewVersion)
	assert.Equal(t, int64(3), resp.Outcomes[0].Entity.Version)

	pull, err := svc.Pull(ctx, testUID, pullReq("client-c", 0, 0))
	require.NoError(t, err)
	require.Len(t, pull.Records, 3)
	assert.Equal(t, int64(3), pull.Records[2].NewVersion)
}

func TestSyncService_PullPagination(t *testing.T) {
	svc := newTestSyncService(t, PolicyRejectStale)
	ctx := context.Background()

	var records []dto.PushRecordRequest
	for i := 0; i < 5; i++ {
		records = append(records, dto.PushRecordRequest{
			EntityID:     fmt.Sprintf("item-%d", i),
			BaseVersion:  0,
			Operation:    "create",
			PayloadDelta: fmt.Sprintf(`{"qty":%d}`, i),
			Timestamp:    int64(100 + i),
		})
	}
	_, err := svc.Push(ctx, testUID, pushReq("client-a", records...))
	require.NoError(t, err)

	var got []string
	cursor := int64(0)
	for {
		pull, err := svc.Pull(ctx, testUID, pullReq("client-b", cursor, 2))
		require.NoError(t, err)
		require.LessOrEqual(t, len(pull.Records), 2)
		for _, r := range pull.Records {
			got = append(got, r.EntityID)
		}
		cursor = pull.Cursor
		if !pull.HasMore {
			break
		}
	}

	assert.Equal(t, []string{"item-0", "item-1", "item-2", "item-3", "item-4"}, got)
}

func TestSyncService_PantriesAreIsolated(t *testing.T) {
	svc := newTestSyncService(t, PolicyRejectStale)
	ctx := context.Background()

	_, err := svc.Push(ctx, testUID, &dto.SyncPushRequest{
		Pantry:   "kitchen",
		ClientID: "client-a",
		Records: []dto.PushRecordRequest{
			{EntityID: "milk", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":1}`, Timestamp: 100},
		},
	})
	require.NoError(t, err)

	_, err = svc.Push(ctx, testUID, &dto.SyncPushRequest{
		Pantry:   "garage",
		ClientID: "client-a",
		Records: []dto.PushRecordRequest{
			{EntityID: "beer", BaseVersion: 0, Operation: "create", PayloadDelta: `{"qty":6}`, Timestamp: 100},
		},
	})
	require.NoError(t, err)

	pull, err := svc.Pull(ctx, testUID, &dto.SyncPullRequest{Pantry: "garage", ClientID: "client-b"})
	require.NoError(t, err)
	require.Len(t, pull.Records, 1)
	assert.Equal(t, "beer", pull.Records[0].EntityID)
}
