package replica

import (
	"context"
	"sync"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State 副本同步状态
type State string

const (
	// StateDisconnected 尚未同步或上次同步失败
	StateDisconnected State = "disconnected"
	// StateSyncing 一轮推送/拉取进行中
	StateSyncing State = "syncing"
	// StateSynced 已追平权威日志
	StateSynced State = "synced"
)

// DefaultPushBatchSize 单次推送分片上限
const DefaultPushBatchSize = 100

// CoordinatorConfig 协调器配置
type CoordinatorConfig struct {
	// Pantry 同步的库房名
	Pantry string
	// ClientID 副本唯一标识，同时作为记录的 ActorID
	ClientID string
	// BatchSize 推送分片与拉取批大小
	BatchSize int
	// SyncInterval 后台轮询间隔
	SyncInterval time.Duration
	// BackoffBase 失败重试的基础等待
	BackoffBase time.Duration
	// BackoffMax 失败重试的等待上限
	BackoffMax time.Duration
}

// Coordinator 客户端同步协调器
// 本地编辑通过 SubmitEdit 即时生效，SyncNow 完成一轮推送加拉取；
// 中途取消时已裁决的记录保持已确认，剩余记录留在待推送队列，
// 即批次只会以严格前缀的方式被应用
type Coordinator struct {
	store     *Store
	transport Transport
	config    CoordinatorConfig
	logger    *zap.Logger

	mu       sync.RWMutex
	state    State
	failures int

	// rejectedMu 保护被权威端拒绝的本地记录，调用方据此提示重做
	rejectedMu sync.Mutex
	rejected   []dto.PushRecordRequest
}

// NewCoordinator 创建协调器
func NewCoordinator(store *Store, transport Transport, cfg CoordinatorConfig, lg *zap.Logger) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultPushBatchSize
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Minute
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Coordinator{
		store:     store,
		transport: transport,
		config:    cfg,
		logger:    lg,
		state:     StateDisconnected,
	}
}

// State 当前同步状态
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SubmitEdit 记录一次本地编辑，永不等待网络
func (c *Coordinator) SubmitEdit(entityID string, op domain.Operation, payloadDelta string) (*dto.PushRecordRequest, error) {
	return c.store.SubmitEdit(entityID, op, payloadDelta)
}

// CurrentView 本地视图快照
func (c *Coordinator) CurrentView() []EntityView {
	return c.store.CurrentView()
}

// Rejected 取走被权威端拒绝的本地记录
func (c *Coordinator) Rejected() []dto.PushRecordRequest {
	c.rejectedMu.Lock()
	defer c.rejectedMu.Unlock()
	out := c.rejected
	c.rejected = nil
	return out
}

// SyncNow 执行一轮同步：先推送待确认记录，再拉取权威尾部
// ctx 取消时中止，已完成的分片保持已确认状态
func (c *Coordinator) SyncNow(ctx context.Context) error {
	c.setState(StateSyncing)

	if err := c.pushPending(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}

	if err := c.pullTail(ctx); err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.setState(StateSynced)
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()
	return nil
}

// pushPending 按分片推送待确认记录
// 每个分片推送成功即从队列确认，分片之间检查取消
func (c *Coordinator) pushPending(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "push interrupted")
		}

		pending := c.store.Pending()
		if len(pending) == 0 {
			return nil
		}

		batch := pending
		if len(batch) > c.config.BatchSize {
			batch = batch[:c.config.BatchSize]
		}

		resp, err := c.transport.Push(ctx, &dto.SyncPushRequest{
			Pantry:   c.config.Pantry,
			ClientID: c.config.ClientID,
			Records:  batch,
		})
		if err != nil {
			return errors.Wrap(err, "push")
		}

		// 权威端对每条都给出了裁决，整个分片确认
		c.store.AckPending(len(batch))
		c.absorbOutcomes(batch, resp.Outcomes)
	}
}

// absorbOutcomes 消化推送裁决
// 被接受的记录以权威版本回写本地视图，被拒绝的记录修复视图并留存供调用方重做
func (c *Coordinator) absorbOutcomes(batch []dto.PushRecordRequest, outcomes []*dto.OutcomeDTO) {
	for i, o := range outcomes {
		if o == nil {
			continue
		}

		switch domain.OutcomeKind(o.Kind) {
		case domain.OutcomeAccepted, domain.OutcomeOverwritten, domain.OutcomeDuplicate:
			if o.Entity != nil {
				c.store.ApplyAuthority(o.Entity)
			}

		case domain.OutcomeRejected:
			entityID := ""
			if i < len(batch) {
				entityID = batch[i].EntityID
				c.rejectedMu.Lock()
				c.rejected = append(c.rejected, batch[i])
				c.rejectedMu.Unlock()
			}
			if o.Entity != nil {
				c.store.ApplyAuthority(o.Entity)
			}
			c.logger.Warn("local record rejected by authority",
				zap.String("entity", entityID),
				zap.String("reason", o.Reason))

		default:
			// unknown-entity / future-version / error：本地视图与权威端脱节，
			// 丢弃该记录，随后的拉取会修复视图
			if o.Entity != nil {
				c.store.ApplyAuthority(o.Entity)
			}
			c.logger.Warn("local record dropped",
				zap.String("kind", o.Kind),
				zap.String("reason", o.Reason))
		}
	}
}

// pullTail 循环拉取直至追平权威日志
func (c *Coordinator) pullTail(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "pull interrupted")
		}

		resp, err := c.transport.Pull(ctx, &dto.SyncPullRequest{
			Pantry:   c.config.Pantry,
			ClientID: c.config.ClientID,
			Cursor:   c.store.Cursor(),
			Limit:    c.config.BatchSize,
		})
		if err != nil {
			return errors.Wrap(err, "pull")
		}

		for _, rec := range resp.Records {
			// 自己产生的记录在推送确认时已经就位，只前移游标
			if rec.ActorID == c.config.ClientID {
				c.store.AdvanceCursor(rec.Position)
				continue
			}
			c.store.ApplyRemote(rec)
		}

		if !resp.HasMore {
			return nil
		}
	}
}

// Run 后台循环：定期同步，失败按指数退避重试
// ctx 取消后返回，适合作为独立 goroutine 运行
func (c *Coordinator) Run(ctx context.Context) {
	for {
		err := c.SyncNow(ctx)

		var wait time.Duration
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			c.mu.Lock()
			c.failures++
			failures := c.failures
			c.mu.Unlock()

			wait = c.config.BackoffBase << uint(failures-1)
			if wait > c.config.BackoffMax || wait <= 0 {
				wait = c.config.BackoffMax
			}
			c.logger.Warn("sync failed, backing off",
				zap.Error(err),
				zap.Duration("wait", wait),
				zap.Int("failures", failures))
		} else {
			wait = c.config.SyncInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
