package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *MetricFactory) NewTelemetryFlushesTotal() prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_flushes_total",
		Help: "Metric batches handed to the telemetry sink",
	})
	m.reg.MustRegister(c)
	return c
}

// NewTelemetryDroppedMetricsTotal 发送失败被丢弃的指标条数
func (m *MetricFactory) NewTelemetryDroppedMetricsTotal() prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_dropped_metrics_total",
		Help: "Metrics dropped after a failed sink send",
	})
	m.reg.MustRegister(c)
	return c
}
