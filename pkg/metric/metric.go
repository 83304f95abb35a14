// Package metric 提供同步服务的 Prometheus 指标
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PushOutcomeTotal 推送裁决结果计数，按结果与策略区分
	PushOutcomeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pantry_sync",
		Name:      "push_outcome_total",
		Help:      "Push decisions by outcome and conflict policy.",
	}, []string{"outcome", "policy"})

	// PullBatchTotal 拉取批次计数
	PullBatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pantry_sync",
		Name:      "pull_batch_total",
		Help:      "Pull batches served.",
	})

	// PullRecordTotal 拉取返回的日志条目计数
	PullRecordTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pantry_sync",
		Name:      "pull_record_total",
		Help:      "Change records returned by pull.",
	})

	// WSConnections 当前 WebSocket 连接数
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pantry_sync",
		Name:      "ws_connections",
		Help:      "Active WebSocket connections.",
	})

	// RequestDuration 接口耗时分布
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pantry_sync",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)
