package registers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/alert"
	"github.com/lurkkit/agent/pkg/metrics"
	"github.com/lurkkit/agent/pkg/telemetry"
)

const DefaultShutdownGrace = 5 * time.Second

var (
	ErrNoCollectors   = errors.New("no collectors registered")
	ErrAlreadyStarted = errors.New("agent already started")
)

// AgentImpl 实现 registers.Agent 接口：每个采集器一个独立 worker，
// 共享同一个告警管理器和指标缓冲
type AgentImpl struct {
	buffer   *telemetry.Buffer
	manager  *alert.Manager
	metrics  *metrics.AgentMetrics
	log      *zap.Logger
	interval time.Duration
	grace    time.Duration

	mu      sync.Mutex
	workers []*CollectorWorker
	started bool
	cancel  context.CancelFunc
}

type AgentOption func(*AgentImpl)

func WithAgentLogger(l *zap.Logger) AgentOption {
	return func(a *AgentImpl) {
		if l != nil {
			a.log = l
		}
	}
}

func WithAgentMetrics(m *metrics.AgentMetrics) AgentOption {
	return func(a *AgentImpl) { a.metrics = m }
}

// WithShutdownGrace bounds how long Stop waits for all workers together.
func WithShutdownGrace(d time.Duration) AgentOption {
	return func(a *AgentImpl) {
		if d > 0 {
			a.grace = d
		}
	}
}

// NewAgent 创建 Agent，interval 为采集器未指定间隔时的默认值
func NewAgent(interval time.Duration, buf *telemetry.Buffer, mgr *alert.Manager, opts ...AgentOption) *AgentImpl {
	a := &AgentImpl{
		buffer:   buf,
		manager:  mgr,
		log:      zap.NewNop(),
		interval: interval,
		grace:    DefaultShutdownGrace,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register 注册采集器，启动后注册的采集器不会运行
func (a *AgentImpl) Register(c Collector, interval time.Duration) {
	if interval <= 0 {
		interval = a.interval
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workers = append(a.workers, NewCollectorWorker(c, interval, a.buffer, a.manager, a.metrics, a.log))
	a.log.Debug("registered collector", zap.String("name", c.Name()), zap.Duration("interval", interval))
}

// Start launches one goroutine per registered collector and returns.
func (a *AgentImpl) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}
	if len(a.workers) == 0 {
		return ErrNoCollectors
	}
	a.started = true

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	for _, w := range a.workers {
		go w.Run(runCtx)
	}
	a.log.Info("agent started", zap.Strings("collectors", a.names()))
	return nil
}

// Stop signals every worker, waits for them within the grace period, then
// cancels in-flight collections and flushes pending metrics.
func (a *AgentImpl) Stop(ctx context.Context) error {
	a.mu.Lock()
	workers := append([]*CollectorWorker(nil), a.workers...)
	cancel := a.cancel
	started := a.started
	a.started = false
	a.mu.Unlock()
	if !started {
		return nil
	}

	a.log.Info("stopping agent", zap.Duration("grace", a.grace))
	for _, w := range workers {
		w.Stop()
	}

	var (
		errs    error
		expired bool
		timeout = time.After(a.grace)
	)
	for _, w := range workers {
		if !expired {
			select {
			case <-w.Done():
				continue
			case <-timeout:
				expired = true
			case <-ctx.Done():
				expired = true
			}
		}
		select {
		case <-w.Done():
		default:
			errs = multierr.Append(errs, fmt.Errorf("collector %s did not stop within %s", w.Name(), a.grace))
		}
	}
	cancel()

	if err := a.buffer.Flush(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("final flush: %w", err))
	}
	a.log.Info("agent stopped", zap.Int("firing", a.manager.FiringCount()))
	return errs
}

func (a *AgentImpl) Manager() *alert.Manager   { return a.manager }
func (a *AgentImpl) Buffer() *telemetry.Buffer { return a.buffer }

// Workers returns the registered workers in registration order.
func (a *AgentImpl) Workers() []*CollectorWorker {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*CollectorWorker(nil), a.workers...)
}

func (a *AgentImpl) names() []string {
	names := make([]string, 0, len(a.workers))
	for _, w := range a.workers {
		names = append(names, w.Name())
	}
	return names
}
