package registers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/alert"
	"github.com/lurkkit/agent/pkg/alerter"
	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/metrics"
	"github.com/lurkkit/agent/pkg/telemetry"
)

// Runtime is everything InitAgent wires together.
type Runtime struct {
	// Registry backs /metrics: agent self-metrics plus the prometheus sink
	// when telemetry.type is prometheus.
	Registry   *prometheus.Registry
	Agent      *AgentImpl
	Sink       telemetry.Sink
	Alerters   alerter.Groups
	Collectors []Collector
}

// Close releases the telemetry sink. Call after Agent.Stop.
func (r *Runtime) Close() error {
	return telemetry.Close(r.Sink)
}

// InitAgent 构建完整运行时：指标注册器、遥测 sink、告警后端、告警管理器、采集器。
// 任意一步失败都在启动任何 worker 之前返回
func InitAgent(cfg *config.Config, log *zap.Logger, out io.Writer) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	// 仅注册进程指标，不注册 Go 运行时指标
	reg := metrics.NewRegistry(true)
	am := metrics.NewAgentMetricsFor(reg)
	hc := &http.Client{Timeout: alerter.DefaultTimeout}

	sink, err := telemetry.MakeSink(cfg.Telemetry, hc, out)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if p, ok := sink.(*telemetry.Prometheus); ok {
		if err := reg.Register(p); err != nil {
			return nil, fmt.Errorf("register prometheus sink: %w", err)
		}
	}
	buf := telemetry.NewBuffer(sink,
		telemetry.WithBatchSize(cfg.Telemetry.BatchSize),
		telemetry.WithFlushInterval(cfg.Telemetry.FlushInterval),
		telemetry.WithLogger(log.Named("telemetry")),
		telemetry.WithMetrics(am),
	)

	groups := alerter.Build(cfg.Alerting, hc)
	opts := append(alert.ConfigOptions(cfg.Alerting),
		alert.WithLogger(log.Named("alert")),
		alert.WithMetrics(am),
	)
	mgr := alert.NewManager(groups, opts...)

	agent := NewAgent(cfg.Agent.Interval, buf, mgr,
		WithAgentLogger(log.Named("agent")),
		WithAgentMetrics(am),
		WithShutdownGrace(cfg.Agent.ShutdownGrace),
	)
	// http 检查使用各自的 timeout，不能共用带全局超时的 client
	collectors, err := RegisterCollectors(agent, cfg, &http.Client{}, log.Named("collector"))
	if err != nil {
		_ = telemetry.Close(sink)
		return nil, err
	}

	log.Debug("agent runtime ready",
		zap.String("telemetry", telemetrySummary(cfg.Telemetry)),
		zap.Strings("alerters", groups.Names()),
		zap.Int("collectors", len(collectors)))
	return &Runtime{
		Registry:   reg,
		Agent:      agent,
		Sink:       sink,
		Alerters:   groups,
		Collectors: collectors,
	}, nil
}

func telemetrySummary(t config.TelemetryConfig) string {
	if !t.Enabled {
		return "disabled"
	}
	return t.Type
}
