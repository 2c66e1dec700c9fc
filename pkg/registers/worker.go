package registers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/alert"
	"github.com/lurkkit/agent/pkg/metrics"
	"github.com/lurkkit/agent/pkg/model"
	"github.com/lurkkit/agent/pkg/telemetry"
)

// CollectorWorker runs one collector on a fixed interval until stopped.
// Metrics go to the buffer, alerts to the manager. A failed or panicking
// cycle forwards nothing and leaves alert state untouched.
type CollectorWorker struct {
	c        Collector
	interval time.Duration
	buffer   *telemetry.Buffer
	manager  *alert.Manager
	metrics  *metrics.AgentMetrics
	log      *zap.Logger

	// owned holds the ids this collector emitted that may still be firing.
	// Only the worker goroutine touches it.
	owned model.IDSet

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewCollectorWorker(c Collector, interval time.Duration, buf *telemetry.Buffer, mgr *alert.Manager,
	am *metrics.AgentMetrics, log *zap.Logger) *CollectorWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &CollectorWorker{
		c:        c,
		interval: interval,
		buffer:   buf,
		manager:  mgr,
		metrics:  am,
		log:      log.With(zap.String("collector", c.Name())),
		owned:    make(model.IDSet),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *CollectorWorker) Name() string            { return w.c.Name() }
func (w *CollectorWorker) Interval() time.Duration { return w.interval }

// Done is closed once Run has returned.
func (w *CollectorWorker) Done() <-chan struct{} { return w.done }

// Stop wakes the worker out of its sleep. Safe to call more than once.
func (w *CollectorWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Run collects immediately, then once per interval, until Stop or ctx ends.
func (w *CollectorWorker) Run(ctx context.Context) {
	defer close(w.done)
	w.log.Debug("collector worker started", zap.Duration("interval", w.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-w.stop:
			w.log.Debug("collector worker stopped")
			return
		case <-ctx.Done():
			w.log.Debug("collector worker stopped by context", zap.Error(ctx.Err()))
			return
		case <-timer.C:
		}
		_ = w.RunOnce(ctx)
		timer.Reset(w.interval)
	}
}

// RunOnce performs a single collection cycle.
func (w *CollectorWorker) RunOnce(ctx context.Context) error {
	start := time.Now()
	ms, as, err := w.collect(ctx)
	w.metrics.ObserveCollect(w.c.Name(), time.Since(start))
	if err != nil {
		w.log.Error("collect failed", zap.Error(err))
		w.metrics.CollectFailed(w.c.Name())
		return err
	}

	w.buffer.Add(ctx, ms)

	for _, a := range as {
		w.owned.Add(a.ID())
	}
	w.manager.Process(as, w.owned)
	for id := range w.owned {
		if !w.manager.IsFiring(id) {
			delete(w.owned, id)
		}
	}
	w.log.Debug("collect done", zap.Int("metrics", len(ms)), zap.Int("alerts", len(as)),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (w *CollectorWorker) collect(ctx context.Context) (ms []model.Metric, as []model.Alert, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("collector panicked: %v", r)
		}
	}()
	return w.c.Collect(ctx)
}
