package registers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lurkkit/agent/pkg/alert"
	"github.com/lurkkit/agent/pkg/alerter"
	"github.com/lurkkit/agent/pkg/metrics"
	"github.com/lurkkit/agent/pkg/model"
	"github.com/lurkkit/agent/pkg/telemetry"
)

// step is one scripted Collect result.
type step struct {
	metrics []model.Metric
	alerts  []model.Alert
	err     error
	panic   bool
}

type scriptedCollector struct {
	name string

	mu    sync.Mutex
	steps []step
	calls int
	ran   chan struct{}
}

func newScripted(name string, steps ...step) *scriptedCollector {
	return &scriptedCollector{name: name, steps: steps, ran: make(chan struct{}, 64)}
}

func (c *scriptedCollector) Name() string { return c.name }

func (c *scriptedCollector) Collect(context.Context) ([]model.Metric, []model.Alert, error) {
	c.mu.Lock()
	var s step
	if c.calls < len(c.steps) {
		s = c.steps[c.calls]
	}
	c.calls++
	c.mu.Unlock()
	defer func() { c.ran <- struct{}{} }()

	if s.panic {
		panic("collector bug")
	}
	return s.metrics, s.alerts, s.err
}

type recAlerter struct {
	name string
	mu   sync.Mutex
	sent []model.Alert
}

func (r *recAlerter) Name() string { return r.name }

func (r *recAlerter) Send(_ context.Context, a model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, a)
	return nil
}

func (r *recAlerter) all() []model.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Alert(nil), r.sent...)
}

type recSink struct {
	mu sync.Mutex
	ms []model.Metric
}

func (s *recSink) Send(_ context.Context, ms []model.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ms = append(s.ms, ms...)
	return nil
}

func (s *recSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ms)
}

func counter(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	var out dto.Metric
	require.NoError(t, (<-ch).Write(&out))
	return out.GetCounter().GetValue()
}

func highCPU() model.Alert {
	return model.NewAlert("high_cpu", "CPU at 99.0%", model.SeverityCritical, "system", map[string]string{"host": "h"})
}

func TestWorkerFailedCycleLeavesAlertStateAlone(t *testing.T) {
	slack := &recAlerter{name: "slack"}
	mgr := alert.NewManager(alerter.Groups{NonPaging: []alerter.Alerter{slack}})
	am := metrics.NewAgentMetricsFor(prometheus.NewRegistry())
	c := newScripted("system",
		step{alerts: []model.Alert{highCPU()}},
		step{err: errors.New("sampler broke")},
		step{panic: true},
		step{},
	)
	w := NewCollectorWorker(c, time.Hour, telemetry.NewBuffer(nil), mgr, am, nil)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Error(t, w.RunOnce(context.Background()))
	err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector panicked")

	// two failed cycles: still firing, nothing resolved
	assert.True(t, mgr.IsFiring("system:high_cpu"))
	assert.Len(t, slack.all(), 1)
	assert.Equal(t, 2.0, counter(t, am.CollectErrors.WithLabelValues("system")))

	require.NoError(t, w.RunOnce(context.Background()))
	sent := slack.all()
	require.Len(t, sent, 2)
	assert.True(t, sent[1].Resolved)
	assert.Empty(t, w.owned)
}

func TestWorkerOnlyResolvesItsOwnAlerts(t *testing.T) {
	slack := &recAlerter{name: "slack"}
	mgr := alert.NewManager(alerter.Groups{NonPaging: []alerter.Alerter{slack}})
	buf := telemetry.NewBuffer(nil)

	sys := NewCollectorWorker(newScripted("system", step{alerts: []model.Alert{highCPU()}}), time.Hour, buf, mgr, nil, nil)
	logs := NewCollectorWorker(newScripted("logs", step{}, step{}), time.Hour, buf, mgr, nil, nil)

	require.NoError(t, sys.RunOnce(context.Background()))
	require.NoError(t, logs.RunOnce(context.Background()))
	require.NoError(t, logs.RunOnce(context.Background()))

	assert.True(t, mgr.IsFiring("system:high_cpu"))
	assert.Len(t, slack.all(), 1)
}

func TestWorkerForwardsMetrics(t *testing.T) {
	sink := &recSink{}
	buf := telemetry.NewBuffer(sink, telemetry.WithBatchSize(2))
	m := model.NewMetric("system.cpu", map[string]any{"usage_percent": 1.0}, nil)
	w := NewCollectorWorker(newScripted("system", step{metrics: []model.Metric{m, m}}), time.Hour, buf,
		alert.NewManager(alerter.Groups{}), nil, nil)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, 2, sink.count())
}

func TestWorkerStopWakesSleep(t *testing.T) {
	c := newScripted("system")
	w := NewCollectorWorker(c, time.Hour, telemetry.NewBuffer(nil), alert.NewManager(alerter.Groups{}), nil, nil)

	go w.Run(context.Background())
	select {
	case <-c.ran:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not run immediately")
	}

	w.Stop()
	w.Stop()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop promptly")
	}
}

func TestWorkerRunsEveryInterval(t *testing.T) {
	c := newScripted("system")
	w := NewCollectorWorker(c, 10*time.Millisecond, telemetry.NewBuffer(nil), alert.NewManager(alerter.Groups{}), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	for i := 0; i < 3; i++ {
		select {
		case <-c.ran:
		case <-time.After(time.Second):
			t.Fatalf("cycle %d did not run", i+1)
		}
	}
	cancel()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker ignored context cancel")
	}
}
