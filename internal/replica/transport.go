package replica

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	"github.com/pantrylabs/pantry-sync-service/internal/service"

	"github.com/pkg/errors"
)

// Transport 副本与权威端之间的传输边界
// 至少一次投递语义，重复投递由 (entity, new_version) 幂等吸收
type Transport interface {
	// Push 提交一批本地记录
	Push(ctx context.Context, params *dto.SyncPushRequest) (*dto.SyncPushResponse, error)

	// Pull 拉取游标之后的权威记录
	Pull(ctx context.Context, params *dto.SyncPullRequest) (*dto.SyncPullResponse, error)
}

// ------------------------------------> HTTP 传输

// HTTPTransportConfig HTTP 传输配置
type HTTPTransportConfig struct {
	// BaseURL 权威端地址，例如 http://127.0.0.1:9000
	BaseURL string
	// Token 登录获得的 JWT
	Token string
	// Timeout 单次请求超时
	Timeout time.Duration
}

type httpTransport struct {
	config HTTPTransportConfig
	client *http.Client
}

// NewHTTPTransport 创建基于 HTTP API 的传输实现
func NewHTTPTransport(cfg HTTPTransportConfig) Transport {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &httpTransport{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (t *httpTransport) Push(ctx context.Context, params *dto.SyncPushRequest) (*dto.SyncPushResponse, error) {
	out := &dto.SyncPushResponse{}
	if err := t.post(ctx, "/api/sync/push", params, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *httpTransport) Pull(ctx context.Context, params *dto.SyncPullRequest) (*dto.SyncPullResponse, error) {
	query := url.Values{}
	query.Set("pantry", params.Pantry)
	query.Set("clientId", params.ClientID)
	query.Set("cursor", fmt.Sprintf("%d", params.Cursor))
	query.Set("limit", fmt.Sprintf("%d", params.Limit))

	out := &dto.SyncPullResponse{}
	if err := t.get(ctx, "/api/sync/pull", query, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *httpTransport) post(ctx context.Context, path string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", t.config.Token)

	return t.do(req, out)
}

func (t *httpTransport) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.config.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", t.config.Token)

	return t.do(req, out)
}

func (t *httpTransport) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "transport")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	var envelope struct {
		Code    int    `json:"code"`
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Details any    `json:"details"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.Wrapf(err, "decode envelope (http %d)", resp.StatusCode)
	}
	if !envelope.Status {
		return errors.Errorf("authority refused: code=%d message=%s details=%v", envelope.Code, envelope.Message, envelope.Details)
	}

	var dataHolder struct {
		Data any `json:"data"`
	}
	dataHolder.Data = out
	if err := json.Unmarshal(raw, &dataHolder); err != nil {
		return errors.Wrap(err, "decode data")
	}
	return nil
}

// ------------------------------------> 进程内环回传输

type loopbackTransport struct {
	syncSvc service.SyncService
	uid     int64
}

// NewLoopbackTransport 创建直连 SyncService 的进程内传输，测试与单机嵌入用
func NewLoopbackTransport(syncSvc service.SyncService, uid int64) Transport {
	return &loopbackTransport{syncSvc: syncSvc, uid: uid}
}

func (t *loopbackTransport) Push(ctx context.Context, params *dto.SyncPushRequest) (*dto.SyncPushResponse, error) {
	return t.syncSvc.Push(ctx, t.uid, params)
}

func (t *loopbackTransport) Pull(ctx context.Context, params *dto.SyncPullRequest) (*dto.SyncPullResponse, error) {
	return t.syncSvc.Pull(ctx, t.uid, params)
}
