// Package metrics 提供集群协调的 Prometheus 指标
//
// 指标注册在独立的 Registry 上，由自省服务的 /metrics
// 端点暴露，不污染全局默认注册表，同一进程内可并存多个
// 实例（测试场景）。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agc_state"

// 广播触发原因标签值
const (
	ReasonScaleOut  = "scale_out"
	ReasonScaleBack = "scale_back"
)

// 投递结果标签值
const (
	OutcomeDelivered = "delivered"
	OutcomeRetried   = "retried"
	OutcomeAbandoned = "abandoned"
)

// Metrics 集群协调指标集合
type Metrics struct {
	registry *prometheus.Registry

	brokers prometheus.Gauge
	workers prometheus.Gauge

	connectionsTotal prometheus.Counter
	connectionsOpen  prometheus.Gauge

	broadcastsScheduled *prometheus.CounterVec
	broadcastsFired     prometheus.Counter

	handshakeRejections  *prometheus.CounterVec
	workerJoinRejections prometheus.Counter
}

// New 创建指标集合
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		brokers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "brokers",
			Help:      "Number of broker instances currently registered.",
		}),
		workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Number of worker instances currently registered.",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections accepted after the handshake gates.",
		}),
		connectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Connections currently open.",
		}),
		broadcastsScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_scheduled_total",
			Help:      "Debounced broadcasts scheduled, by trigger reason.",
		}, []string{"reason"}),
		broadcastsFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_fired_total",
			Help:      "Debounced broadcasts that actually fired.",
		}),
		handshakeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_rejections_total",
			Help:      "Connections rejected during handshake, by error name.",
		}, []string{"name"}),
		workerJoinRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_join_rejections_total",
			Help:      "Worker joins rejected during the startup grace period.",
		}),
	}
}

// Registry 返回底层注册表，供 /metrics 端点使用
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetMembership 更新成员数量
func (m *Metrics) SetMembership(brokers, workers int) {
	m.brokers.Set(float64(brokers))
	m.workers.Set(float64(workers))
}

// ConnOpened 记录一条通过握手的新连接
func (m *Metrics) ConnOpened() {
	m.connectionsTotal.Inc()
	m.connectionsOpen.Inc()
}

// ConnClosed 记录一条连接断开
func (m *Metrics) ConnClosed() {
	m.connectionsOpen.Dec()
}

// BroadcastScheduled 记录一次防抖广播安排
func (m *Metrics) BroadcastScheduled(reason string) {
	m.broadcastsScheduled.WithLabelValues(reason).Inc()
}

// BroadcastFired 记录一次防抖广播触发
func (m *Metrics) BroadcastFired() {
	m.broadcastsFired.Inc()
}

// HandshakeRejected 记录一次握手拒绝
func (m *Metrics) HandshakeRejected(name string) {
	m.handshakeRejections.WithLabelValues(name).Inc()
}

// WorkerJoinRejected 记录一次宽限期内的 worker 加入拒绝
func (m *Metrics) WorkerJoinRejected() {
	m.workerJoinRejections.Inc()
}

// RegisterDeliveryStats 注册投递结果计数
//
// 广播器自身维护原子计数，这里以采集时读取的方式暴露，
// 避免在投递热路径上引入额外依赖。
func (m *Metrics) RegisterDeliveryStats(stats func() (delivered, retries, abandoned uint64)) {
	newOutcomeFunc := func(outcome string, value func() float64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "deliveries_total",
			Help:        "Broadcast delivery attempts, by outcome.",
			ConstLabels: prometheus.Labels{"outcome": outcome},
		}, value)
	}

	m.registry.MustRegister(
		newOutcomeFunc(OutcomeDelivered, func() float64 {
			d, _, _ := stats()
			return float64(d)
		}),
		newOutcomeFunc(OutcomeRetried, func() float64 {
			_, r, _ := stats()
			return float64(r)
		}),
		newOutcomeFunc(OutcomeAbandoned, func() float64 {
			_, _, a := stats()
			return float64(a)
		}),
	)
}
