package registers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lurkkit/agent/pkg/alert"
	"github.com/lurkkit/agent/pkg/alerter"
	"github.com/lurkkit/agent/pkg/model"
	"github.com/lurkkit/agent/pkg/telemetry"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestAgentStartRequiresCollectors(t *testing.T) {
	a := NewAgent(time.Second, telemetry.NewBuffer(nil), alert.NewManager(alerter.Groups{}))
	assert.ErrorIs(t, a.Start(context.Background()), ErrNoCollectors)
	assert.NoError(t, a.Stop(context.Background()))
}

func TestAgentStartTwice(t *testing.T) {
	a := NewAgent(time.Hour, telemetry.NewBuffer(nil), alert.NewManager(alerter.Groups{}))
	a.Register(newScripted("system"), 0)
	require.NoError(t, a.Start(context.Background()))
	assert.ErrorIs(t, a.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, a.Stop(context.Background()))
}

func TestAgentRegisterIntervalFallback(t *testing.T) {
	a := NewAgent(30*time.Second, telemetry.NewBuffer(nil), alert.NewManager(alerter.Groups{}))
	a.Register(newScripted("system"), 0)
	a.Register(newScripted("logs"), 15*time.Second)

	ws := a.Workers()
	require.Len(t, ws, 2)
	assert.Equal(t, 30*time.Second, ws[0].Interval())
	assert.Equal(t, 15*time.Second, ws[1].Interval())
}

func TestAgentStopFlushesPending(t *testing.T) {
	sink := &recSink{}
	buf := telemetry.NewBuffer(sink, telemetry.WithBatchSize(100), telemetry.WithFlushInterval(time.Hour))
	m := model.NewMetric("system.cpu", map[string]any{"usage_percent": 3.0}, nil)
	c := newScripted("system", step{metrics: []model.Metric{m, m, m}})

	a := NewAgent(time.Hour, buf, alert.NewManager(alerter.Groups{}))
	a.Register(c, 0)
	require.NoError(t, a.Start(context.Background()))
	<-c.ran

	assert.Equal(t, 0, sink.count())
	require.NoError(t, a.Stop(context.Background()))
	assert.Equal(t, 3, sink.count())
	assert.Equal(t, 0, buf.Pending())
}

type stuckCollector struct {
	entered chan struct{}
	release chan struct{}
}

func (s *stuckCollector) Name() string { return "stuck" }

func (s *stuckCollector) Collect(context.Context) ([]model.Metric, []model.Alert, error) {
	close(s.entered)
	<-s.release
	return nil, nil, nil
}

func TestAgentStopIsBoundedByGrace(t *testing.T) {
	stuck := &stuckCollector{entered: make(chan struct{}), release: make(chan struct{})}
	defer close(stuck.release)

	a := NewAgent(time.Hour, telemetry.NewBuffer(nil), alert.NewManager(alerter.Groups{}),
		WithShutdownGrace(50*time.Millisecond))
	a.Register(stuck, 0)
	require.NoError(t, a.Start(context.Background()))
	<-stuck.entered

	start := time.Now()
	err := a.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector stuck did not stop")
	assert.Less(t, time.Since(start), time.Second)
}

// Three cycles through the full worker path: fire, suppress, resolve.
func TestAgentAlertLifecycleEndToEnd(t *testing.T) {
	clock := &fakeClock{now: time.Unix(10_000, 0)}
	pd := &recAlerter{name: "pagerduty"}
	slack := &recAlerter{name: "slack"}
	mgr := alert.NewManager(alerter.Groups{
		Paging:    []alerter.Alerter{pd},
		NonPaging: []alerter.Alerter{slack},
	}, alert.WithClock(clock.Now), alert.WithCooldown(300*time.Second))

	c := newScripted("system",
		step{alerts: []model.Alert{highCPU()}},
		step{alerts: []model.Alert{highCPU()}},
		step{},
	)
	w := NewCollectorWorker(c, time.Hour, telemetry.NewBuffer(nil), mgr, nil, nil)

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Len(t, pd.all(), 1)
	assert.Len(t, slack.all(), 1)

	clock.now = clock.now.Add(60 * time.Second)
	require.NoError(t, w.RunOnce(context.Background()))
	assert.Len(t, pd.all(), 1)
	assert.Len(t, slack.all(), 1)

	clock.now = clock.now.Add(60 * time.Second)
	require.NoError(t, w.RunOnce(context.Background()))
	require.Len(t, pd.all(), 2)
	require.Len(t, slack.all(), 2)
	resolved := pd.all()[1]
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "system:high_cpu", resolved.ID())
	assert.Equal(t, "Alert 'system:high_cpu' resolved", resolved.Message)
	assert.Zero(t, mgr.FiringCount())
}
