package replica

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/dao"
	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	"github.com/pantrylabs/pantry-sync-service/internal/model"
	"github.com/pantrylabs/pantry-sync-service/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testUID = int64(7)

func newTestAuthority(t *testing.T, policy string) service.SyncService {
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

	cfg := &service.SyncServiceConfig{Policy: policy, MaxBatchSize: 100}
	pantrySvc := service.NewPantryService(pantryRepo, entityRepo, changeRepo, nil, zap.NewNop(), cfg)

	p, err := service.NewConflictPolicy(policy)
	require.NoError(t, err)

	return service.NewSyncService(entityRepo, changeRepo, cursorRepo, pantrySvc, p, d, zap.NewNop(), cfg)
}

func newTestCoordinator(svc service.SyncService, clientID string) *Coordinator {
	return NewCoordinator(
		NewStore(),
		NewLoopbackTransport(svc, testUID),
		CoordinatorConfig{Pantry: "kitchen", ClientID: clientID, BatchSize: 10},
		zap.NewNop(),
	)
}

func TestStore_SubmitEditAppliesLocally(t *testing.T) {
	s := NewStore()

	rec, err := s.SubmitEdit("milk", domain.OperationCreate, `{"qty":1}`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.BaseVersion)

	view, ok := s.Get("milk")
	require.True(t, ok)
	assert.Equal(t, int64(1), view.Version)
	assert.True(t, view.Dirty)
	assert.JSONEq(t, `{"qty":1}`, view.Payload)

	_, err = s.SubmitEdit("milk", domain.OperationUpdate, `{"qty":3}`)
	require.NoError(t, err)

	view, _ = s.Get("milk")
	assert.Equal(t, int64(2), view.Version)
	assert.JSONEq(t, `{"qty":3}`, view.Payload)
	assert.Len(t, s.Pending(), 2)
}

func TestStore_UpdateUnknownEntityFails(t *testing.T) {
	s := NewStore()

	_, err := s.SubmitEdit("ghost", domain.OperationUpdate, `{"qty":1}`)
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)

	_, err = s.SubmitEdit("ghost", domain.OperationDelete, "")
	assert.ErrorIs(t, err, domain.ErrUnknownEntity)
}

func TestStore_CreateOverLocalTombstoneFails(t *testing.T) {
	s := NewStore()

	_, err := s.SubmitEdit("milk", domain.OperationCreate, `{"qty":1}`)
	require.NoError(t, err)
	_, err = s.SubmitEdit("milk", domain.OperationDelete, "")
	require.NoError(t, err)

	// 墓碑实体不接受任何后续编辑，create 也不例外
	_, err = s.SubmitEdit("milk", domain.OperationCreate, `{"qty":2}`)
	assert.Error(t, err)
	assert.Equal(t, 2, s.PendingCount())
}

func TestStore_UpdateMergesFields(t *testing.T) {
	s := NewStore()

	_, err := s.SubmitEdit("milk", domain.OperationCreate, `{"name":"milk","qty":1}`)
	require.NoError(t, err)
	_, err = s.SubmitEdit("milk", domain.OperationUpdate, `{"qty":2}`)
	require.NoError(t, err)

	view, _ := s.Get("milk")
	assert.JSONEq(t, `{"name":"milk","qty":2}`, view.Payload)
}

func TestStore_ApplyRemoteSkipsReplayedPositions(t *testing.T) {
	s := NewStore()

	s.ApplyRemote(&dto.ChangeRecordDTO{Position: 1, EntityID: "milk", NewVersion: 1, Operation: "create", PayloadDelta: `{"qty":1}`})
	s.ApplyRemote(&dto.ChangeRecordDTO{Position: 2, EntityID: "milk", NewVersion: 2, Operation: "update", PayloadDelta: `{"qty":5}`})

	// 重放旧位置的记录不得回退视图
	s.ApplyRemote(&dto.ChangeRecordDTO{Position: 1, EntityID: "milk", NewVersion: 1, Operation: "create", PayloadDelta: `{"qty":1}`})

	view, _ := s.Get("milk")
	assert.Equal(t, int64(2), view.Version)
	assert.JSONEq(t, `{"qty":5}`, view.Payload)
	assert.Equal(t, int64(2), s.Cursor())
}

func TestCoordinator_SyncRoundTrip(t *testing.T) {
	svc := newTestAuthority(t, service.PolicyRejectStale)
	a := newTestCoordinator(svc, "client-a")
	b := newTestCoordinator(svc, "client-b")
	ctx := context.Background()

	_, err := a.SubmitEdit("milk", domain.OperationCreate, `{"qty":1}`)
	require.NoError(t, err)
	_, err = a.SubmitEdit("eggs", domain.OperationCreate, `{"qty":12}`)
	require.NoError(t, err)

	require.NoError(t, a.SyncNow(ctx))
	assert.Equal(t, StateSynced, a.State())
	assert.Equal(t, 0, a.store.PendingCount())

	require.NoError(t, b.SyncNow(ctx))
	view := b.CurrentView()
	require.Len(t, view, 2)
	assert.Equal(t, "eggs", view[0].ID)
	assert.Equal(t, "milk", view[1].ID)
	assert.JSONEq(t, `{"qty":1}`, view[1].Payload)
	assert.False(t, view[1].Dirty)
}

func TestCoordinator_RejectedEditRepairsView(t *testing.T) {
	svc := newTestAuthority(t, service.PolicyRejectStale)
	a := newTestCoordinator(svc, "client-a")
	b := newTestCoordinator(svc, "client-b")
	ctx := context.Background()

	_, err := a.SubmitEdit("milk", domain.OperationCreate, `{"qty":1}`)
	require.NoError(t, err)
	require.NoError(t, a.SyncNow(ctx))
	require.NoError(t, b.SyncNow(ctx))

	// 双方基于 v1 并发编辑，先到者胜
	_, err = a.SubmitEdit("milk", domain.OperationUpdate, `{"qty":2}`)
	require.NoError(t, err)
	_, err = b.SubmitEdit("milk", domain.OperationUpdate, `{"qty":9}`)
	require.NoError(t, err)

	require.NoError(t, a.SyncNow(ctx))
	require.NoError(t, b.SyncNow(ctx))

	rejected := b.Rejected()
	require.Len(t, rejected, 1)
	assert.Equal(t, "milk", rejected[0].EntityID)

	// 落败方的视图被权威状态修复
	viewB, _ := b.store.Get("milk")
	assert.Equal(t, int64(2), viewB.Version)
	assert.JSONEq(t, `{"qty":2}`, viewB.Payload)
	assert.False(t, viewB.Dirty)
}

func TestCoordinator_ConvergenceUnderLastWriterWins(t *testing.T) {
	svc := newTestAuthority(t, service.PolicyLastWriterWins)
	a := newTestCoordinator(svc, "client-a")
	b := newTestCoordinator(svc, "client-b")
	ctx := context.Background()

	_, err := a.SubmitEdit("milk", domain.OperationCreate, `{"qty":1}`)
	require.NoError(t, err)
	require.NoError(t, a.SyncNow(ctx))
	require.NoError(t, b.SyncNow(ctx))

	_, err = a.SubmitEdit("milk", domain.OperationUpdate, `{"qty":2}`)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = b.SubmitEdit("milk", domain.OperationUpdate, `{"qty":9}`)
	require.NoError(t, err)

	require.NoError(t, a.SyncNow(ctx))
	require.NoError(t, b.SyncNow(ctx))
	require.NoError(t, a.SyncNow(ctx))

	viewA, _ := a.store.Get("milk")
	viewB, _ := b.store.Get("milk")
	assert.Equal(t, viewB.Payload, viewA.Payload)
	assert.JSONEq(t, `{"qty":9}`, viewA.Payload)
}

// failAfterTransport 在放行 allow 次调用后开始失败
type failAfterTransport struct {
	inner Transport
	allow int
	calls int
}

func (f *failAfterTransport) Push(ctx context.Context, params *dto.SyncPushRequest) (*dto.SyncPushResponse, error) {
	f.calls++
	if f.calls > f.allow {
		return nil, errors.New("transport down")
	}
	return f.inner.Push(ctx, params)
}

func (f *failAfterTransport) Pull(ctx context.Context, params *dto.SyncPullRequest) (*dto.SyncPullResponse, error) {
	f.calls++
	if f.calls > f.allow {
		return nil, errors.New("transport down")
	}
	return f.inner.Pull(ctx, params)
}

func TestCoordinator_InterruptedPushKeepsPrefix(t *testing.T) {
	svc := newTestAuthority(t, service.PolicyRejectStale)
	transport := &failAfterTransport{inner: NewLoopbackTransport(svc, testUID), allow: 1}
	c := NewCoordinator(
		NewStore(),
		transport,
		CoordinatorConfig{Pantry: "kitchen", ClientID: "client-a", BatchSize: 2},
		zap.NewNop(),
	)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.SubmitEdit(fmt.Sprintf("item-%d", i), domain.OperationCreate, `{"qty":1}`)
		require.NoError(t, err)
	}

	// 第一个分片（2 条）成功后传输失败
	err := c.SyncNow(ctx)
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 3, c.store.PendingCount())

	// 前缀已被权威端接受
	pull, err := svc.Pull(ctx, testUID, &dto.SyncPullRequest{Pantry: "kitchen", ClientID: "reader", Limit: 10})
	require.NoError(t, err)
	require.Len(t, pull.Records, 2)
	assert.Equal(t, "item-0", pull.Records[0].EntityID)
	assert.Equal(t, "item-1", pull.Records[1].EntityID)

	// 传输恢复后续传剩余记录，重复投递被幂等吸收
	transport.allow = 1 << 30
	require.NoError(t, c.SyncNow(ctx))
	assert.Equal(t, 0, c.store.PendingCount())
	assert.Equal(t, StateSynced, c.State())
}

func TestCoordinator_CancelledContextStopsSync(t *testing.T) {
	svc := newTestAuthority(t, service.PolicyRejectStale)
	c := newTestCoordinator(svc, "client-a")

	_, err := c.SubmitEdit("milk", domain.OperationCreate, `{"qty":1}`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.SyncNow(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, c.store.PendingCount())
}
