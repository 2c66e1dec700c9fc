package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AgentMetrics bundles the self-observability metrics of a running agent.
// A nil *AgentMetrics is valid and records nothing.
type AgentMetrics struct {
	CollectErrors    *prometheus.CounterVec
	CollectDuration  *prometheus.HistogramVec
	AlertsDispatched *prometheus.CounterVec
	AlertsSuppressed prometheus.Counter
	AlertsFiring     prometheus.Gauge
	AlerterErrors    *prometheus.CounterVec
	TelemetryFlushes prometheus.Counter
	TelemetryDropped prometheus.Counter
}

// NewAgentMetrics 通过工厂创建并注册全部 agent 自身指标
func NewAgentMetrics(f *MetricFactory) *AgentMetrics {
	return &AgentMetrics{
		CollectErrors:    f.NewAgentCollectErrorsTotal(),
		CollectDuration:  f.NewAgentCollectDurationSeconds(),
		AlertsDispatched: f.NewAlertsDispatchedTotal(),
		AlertsSuppressed: f.NewAlertsSuppressedTotal(),
		AlertsFiring:     f.NewAlertsFiring(),
		AlerterErrors:    f.NewAlerterErrorsTotal(),
		TelemetryFlushes: f.NewTelemetryFlushesTotal(),
		TelemetryDropped: f.NewTelemetryDroppedMetricsTotal(),
	}
}

// NewAgentMetricsFor registers the agent metrics on reg.
func NewAgentMetricsFor(reg *prometheus.Registry) *AgentMetrics {
	return NewAgentMetrics(NewMetricFactory(NewPromRegistry(reg)))
}

func (m *AgentMetrics) CollectFailed(collector string) {
	if m == nil {
		return
	}
	m.CollectErrors.WithLabelValues(collector).Inc()
}

func (m *AgentMetrics) ObserveCollect(collector string, d time.Duration) {
	if m == nil {
		return
	}
	m.CollectDuration.WithLabelValues(collector).Observe(d.Seconds())
}

// AlertDispatched counts one dispatch; kind is "fired" or "resolved".
func (m *AgentMetrics) AlertDispatched(kind string) {
	if m == nil {
		return
	}
	m.AlertsDispatched.WithLabelValues(kind).Inc()
}

func (m *AgentMetrics) AlertSuppressed() {
	if m == nil {
		return
	}
	m.AlertsSuppressed.Inc()
}

func (m *AgentMetrics) SetFiring(n int) {
	if m == nil {
		return
	}
	m.AlertsFiring.Set(float64(n))
}

func (m *AgentMetrics) AlerterFailed(alerter string) {
	if m == nil {
		return
	}
	m.AlerterErrors.WithLabelValues(alerter).Inc()
}

func (m *AgentMetrics) Flushed() {
	if m == nil {
		return
	}
	m.TelemetryFlushes.Inc()
}

func (m *AgentMetrics) Dropped(n int) {
	if m == nil {
		return
	}
	m.TelemetryDropped.Add(float64(n))
}
