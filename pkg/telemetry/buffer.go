package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/metrics"
	"github.com/lurkkit/agent/pkg/model"
)

const (
	DefaultBatchSize     = 20
	DefaultFlushInterval = 10 * time.Second
)

// Buffer accumulates metrics and hands them to the sink once the batch is
// full or the flush interval has elapsed. Sends happen outside the lock.
type Buffer struct {
	sink          Sink
	batchSize     int
	flushInterval time.Duration

	clock   func() time.Time
	log     *zap.Logger
	metrics *metrics.AgentMetrics

	mu        sync.Mutex
	pending   []model.Metric
	lastFlush time.Time
}

type BufferOption func(*Buffer)

func WithBatchSize(n int) BufferOption {
	return func(b *Buffer) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) BufferOption {
	return func(b *Buffer) {
		if d > 0 {
			b.flushInterval = d
		}
	}
}

func WithClock(clock func() time.Time) BufferOption {
	return func(b *Buffer) { b.clock = clock }
}

func WithLogger(l *zap.Logger) BufferOption {
	return func(b *Buffer) {
		if l != nil {
			b.log = l
		}
	}
}

func WithMetrics(m *metrics.AgentMetrics) BufferOption {
	return func(b *Buffer) { b.metrics = m }
}

// NewBuffer 创建指标缓冲区，sink 为 nil 时 Add 不做任何事
func NewBuffer(sink Sink, opts ...BufferOption) *Buffer {
	b := &Buffer{
		sink:          sink,
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		clock:         time.Now,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lastFlush = b.clock()
	return b
}

// Add appends metrics and flushes when a trigger fires.
func (b *Buffer) Add(ctx context.Context, ms []model.Metric) {
	if b.sink == nil || len(ms) == 0 {
		return
	}
	if batch := b.appendAndTake(ms); len(batch) > 0 {
		_ = b.send(ctx, batch)
	}
}

// appendAndTake is the maybe-flush step: it swaps the pending slice out when
// the batch is full or stale.
func (b *Buffer) appendAndTake(ms []model.Metric) []model.Metric {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, ms...)
	now := b.clock()
	if len(b.pending) < b.batchSize && now.Sub(b.lastFlush) < b.flushInterval {
		return nil
	}
	batch := b.pending
	b.pending = nil
	b.lastFlush = now
	return batch
}

// Flush drains whatever is pending regardless of the triggers.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.lastFlush = b.clock()
	b.mu.Unlock()

	if b.sink == nil || len(batch) == 0 {
		return nil
	}
	return b.send(ctx, batch)
}

// Pending returns the number of buffered metrics.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Buffer) send(ctx context.Context, batch []model.Metric) error {
	b.metrics.Flushed()
	if err := b.sink.Send(ctx, batch); err != nil {
		b.log.Error("telemetry flush failed, batch dropped", zap.Int("metrics", len(batch)), zap.Error(err))
		b.metrics.Dropped(len(batch))
		return err
	}
	b.log.Debug("telemetry flushed", zap.Int("metrics", len(batch)))
	return nil
}
