package telemetry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lurkkit/agent/pkg/model"
)

const promNamespace = "lurkkit"

// Prometheus keeps the latest value of every series and exposes them as
// gauges when registered on a registry. It is an unchecked collector because
// the series set is only known at runtime.
type Prometheus struct {
	mu     sync.RWMutex
	series map[string]promSample
}

type promSample struct {
	name   string
	help   string
	labels []string
	values []string
	value  float64
}

func NewPrometheus() *Prometheus {
	return &Prometheus{series: make(map[string]promSample)}
}

func (p *Prometheus) Send(_ context.Context, metrics []model.Metric) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range metrics {
		labels := make([]string, 0, len(m.Tags))
		for k := range m.Tags {
			labels = append(labels, k)
		}
		sort.Strings(labels)
		values := make([]string, len(labels))
		for i, k := range labels {
			values[i] = m.Tags[k]
			labels[i] = sanitize(k)
		}

		for field, raw := range m.Fields {
			v, ok := model.Float(raw)
			if !ok {
				continue
			}
			name := promNamespace + "_" + sanitize(m.Measurement) + "_" + sanitize(field)
			key := name + "{" + strings.Join(labels, ",") + "|" + strings.Join(values, "\xff") + "}"
			p.series[key] = promSample{
				name:   name,
				help:   "LurkKit " + m.Measurement + " " + field,
				labels: labels,
				values: values,
				value:  v,
			}
		}
	}
	return nil
}

// Describe sends nothing, which makes the collector unchecked.
func (p *Prometheus) Describe(chan<- *prometheus.Desc) {}

func (p *Prometheus) Collect(ch chan<- prometheus.Metric) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.series {
		desc := prometheus.NewDesc(s.name, s.help, s.labels, nil)
		m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, s.value, s.values...)
		if err != nil {
			// 非法标签（非 UTF-8、重名等）只让该序列失败，不能在 Gather 中 panic
			m = prometheus.NewInvalidMetric(desc, err)
		}
		ch <- m
	}
}

// Len returns the number of tracked series.
func (p *Prometheus) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.series)
}

func sanitize(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
