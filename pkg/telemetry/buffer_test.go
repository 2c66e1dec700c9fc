package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lurkkit/agent/pkg/metrics"
	"github.com/lurkkit/agent/pkg/model"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]model.Metric
	err     error
}

func (f *fakeSink) Send(_ context.Context, ms []model.Metric) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]model.Metric(nil), ms...))
	return f.err
}

func (f *fakeSink) sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.batches))
	for i, b := range f.batches {
		out[i] = len(b)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func gen(n int) []model.Metric {
	out := make([]model.Metric, n)
	for i := range out {
		out[i] = model.NewMetric("cpu", map[string]any{"usage": float64(i)}, map[string]string{"host": "h"})
	}
	return out
}

func TestBufferFlushesOnBatchSize(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sink := &fakeSink{}
	b := NewBuffer(sink, WithBatchSize(20), WithFlushInterval(time.Hour), WithClock(clock.Now))

	b.Add(context.Background(), gen(19))
	assert.Empty(t, sink.sizes())
	assert.Equal(t, 19, b.Pending())

	b.Add(context.Background(), gen(1))
	assert.Equal(t, []int{20}, sink.sizes())
	assert.Equal(t, 0, b.Pending())
}

func TestBufferFlushesOnInterval(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sink := &fakeSink{}
	b := NewBuffer(sink, WithBatchSize(100), WithFlushInterval(10*time.Second), WithClock(clock.Now))

	b.Add(context.Background(), gen(3))
	clock.Advance(9 * time.Second)
	b.Add(context.Background(), gen(1))
	assert.Empty(t, sink.sizes())

	clock.Advance(time.Second)
	b.Add(context.Background(), gen(1))
	assert.Equal(t, []int{5}, sink.sizes())

	// the interval restarts from the last flush
	clock.Advance(5 * time.Second)
	b.Add(context.Background(), gen(1))
	assert.Equal(t, []int{5}, sink.sizes())
}

func TestBufferNilSinkAndEmptyInput(t *testing.T) {
	b := NewBuffer(nil)
	b.Add(context.Background(), gen(50))
	assert.Equal(t, 0, b.Pending())
	assert.NoError(t, b.Flush(context.Background()))

	sink := &fakeSink{}
	b = NewBuffer(sink, WithBatchSize(1))
	b.Add(context.Background(), nil)
	assert.Empty(t, sink.sizes())
}

func TestBufferFlushDrains(t *testing.T) {
	sink := &fakeSink{}
	b := NewBuffer(sink, WithFlushInterval(time.Hour))
	b.Add(context.Background(), gen(4))

	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, []int{4}, sink.sizes())
	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, []int{4}, sink.sizes())
}

func TestBufferDropsFailedBatch(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	am := metrics.NewAgentMetricsFor(prometheus.NewRegistry())
	sink := &fakeSink{err: errors.New("connection refused")}
	b := NewBuffer(sink, WithBatchSize(2), WithLogger(zap.New(core)), WithMetrics(am))

	b.Add(context.Background(), gen(2))
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())

	sink.err = nil
	b.Add(context.Background(), gen(2))
	assert.Equal(t, []int{2, 2}, sink.sizes())
}

func TestBufferConcurrentAddLosesNothing(t *testing.T) {
	sink := &fakeSink{}
	b := NewBuffer(sink, WithBatchSize(7), WithFlushInterval(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				b.Add(context.Background(), gen(3))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, b.Flush(context.Background()))

	total := 0
	for _, n := range sink.sizes() {
		total += n
	}
	assert.Equal(t, 300, total)
}

func TestStdoutSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	m := model.Metric{Measurement: "cpu", Fields: map[string]any{"usage": 42}, Tags: map[string]string{"host": "h1"}, Timestamp: time.Unix(0, 7)}

	require.NoError(t, s.Send(context.Background(), []model.Metric{m, m}))
	assert.Equal(t, fmt.Sprintf("[METRIC] %[1]s\n[METRIC] %[1]s\n", "cpu,host=h1 usage=42i 7"), buf.String())
}
