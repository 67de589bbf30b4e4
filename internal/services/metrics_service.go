package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 请求结局标签
const (
	OutcomeAnswered = "answered"
	OutcomeCached   = "cached"
	OutcomeGap      = "gap"
	OutcomeDegraded = "degraded"
	OutcomeRejected = "rejected"
)

// Metrics 流水线运行指标
type Metrics struct {
	chatRequests  *prometheus.CounterVec
	cacheHits     prometheus.Counter
	gaps          prometheus.Counter
	stageFailures *prometheus.CounterVec
	chatDuration  prometheus.Histogram
}

// NewMetrics 注册并返回指标集合
func NewMetrics() *Metrics {
	return &Metrics{
		chatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "izana_chat_requests_total",
			Help: "Total chat requests by outcome",
		}, []string{"outcome"}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "izana_cache_hits_total",
			Help: "Semantic cache hits",
		}),
		gaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "izana_knowledge_gaps_total",
			Help: "Questions logged as knowledge gaps",
		}),
		stageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "izana_stage_failures_total",
			Help: "Pipeline stage failures by stage",
		}, []string{"stage"}),
		chatDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "izana_chat_duration_seconds",
			Help:    "End-to-end chat request duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveChat 记录一次聊天请求的结局与耗时
func (m *Metrics) ObserveChat(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
	m.chatDuration.Observe(elapsed.Seconds())
}

// CacheHit 记录一次缓存命中
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// Gap 记录一次知识缺口
func (m *Metrics) Gap() {
	if m == nil {
		return
	}
	m.gaps.Inc()
}

// StageFailure 记录某流水线阶段的失败
func (m *Metrics) StageFailure(stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}
