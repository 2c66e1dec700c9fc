package registers

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/collector"
	"github.com/lurkkit/agent/pkg/config"
)

type Module struct {
	Enabled  bool
	Name     string
	Interval time.Duration
	NewFunc  func() (Collector, error)
}

// Modules 根据配置列出内置采集器，新增采集器只需在此追加一条
func Modules(cfg *config.Config, hc *http.Client, log *zap.Logger) []Module {
	m := cfg.Monitors
	host := cfg.Agent.HostTag
	return []Module{
		{
			Enabled:  m.System.Enabled,
			Name:     "system",
			Interval: m.System.Interval,
			NewFunc: func() (Collector, error) {
				return collector.NewSystemCollector(m.System, host, log), nil
			},
		},
		{
			Enabled:  m.Processes.Enabled && len(m.Processes.Watch) > 0,
			Name:     "processes",
			Interval: m.Processes.Interval,
			NewFunc: func() (Collector, error) {
				return collector.NewProcessCollector(m.Processes, host, log), nil
			},
		},
		{
			Enabled:  m.HTTP.Enabled && len(m.HTTP.Checks) > 0,
			Name:     "http",
			Interval: m.HTTP.Interval,
			NewFunc: func() (Collector, error) {
				return collector.NewHTTPCollector(m.HTTP, host, hc, log)
			},
		},
		{
			Enabled:  m.Logs.Enabled && len(m.Logs.Files) > 0,
			Name:     "logs",
			Interval: m.Logs.Interval,
			NewFunc: func() (Collector, error) {
				return collector.NewLogCollector(m.Logs, host, log)
			},
		},
	}
}

// RegisterCollectors 采集器注册统一入口：开关控制 + 每个采集器自己的间隔
// 返回所有已注册采集器
func RegisterCollectors(agent Agent, cfg *config.Config, hc *http.Client, log *zap.Logger) ([]Collector, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var registered []Collector
	for _, m := range Modules(cfg, hc, log) {
		if !m.Enabled {
			log.Debug("collector disabled", zap.String("name", m.Name))
			continue
		}
		c, err := m.NewFunc()
		if err != nil {
			return nil, fmt.Errorf("init collector %s: %w", m.Name, err)
		}
		agent.Register(c, cfg.IntervalFor(m.Interval))
		registered = append(registered, c)
	}
	if len(registered) == 0 {
		return nil, fmt.Errorf("no collectors enabled; check the monitors section")
	}

	names := make([]string, 0, len(registered))
	for _, c := range registered {
		names = append(names, c.Name())
	}
	log.Debug("all enabled collectors registered", zap.Strings("enabled_collectors", names))
	return registered, nil
}
