package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewAlertsDispatchedTotal 告警分发次数，kind 为 fired 或 resolved
func (m *MetricFactory) NewAlertsDispatchedTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_dispatched_total",
		Help: "Alerts handed to alerters, by kind",
	}, []string{"kind"})
	m.reg.MustRegister(c)
	return c
}

// NewAlertsSuppressedTotal 冷却期内被抑制的告警
func (m *MetricFactory) NewAlertsSuppressedTotal() prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_suppressed_total",
		Help: "Alerts suppressed by cooldown",
	})
	m.reg.MustRegister(c)
	return c
}

func (m *MetricFactory) NewAlertsFiring() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alerts_firing",
		Help: "Alert ids currently firing",
	})
	m.reg.MustRegister(g)
	return g
}

// NewAlerterErrorsTotal 通知后端发送失败次数
func (m *MetricFactory) NewAlerterErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerter_errors_total",
		Help: "Failed alert deliveries per alerter",
	}, []string{"alerter"})
	m.reg.MustRegister(c)
	return c
}
