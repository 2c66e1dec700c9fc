package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// ProcInfo is one running process as seen by a ProcessLister.
type ProcInfo struct {
	PID  int32
	Name string
	// Stats samples cpu percent and resident memory in MiB. Errors mean the
	// process vanished or is not readable and the entry is skipped.
	Stats func(ctx context.Context) (cpuPercent, memMB float64, err error)
}

// ProcessLister enumerates running processes.
type ProcessLister func(ctx context.Context) ([]ProcInfo, error)

// listProcesses is the gopsutil backed lister. CPU is sampled over window.
func listProcesses(window time.Duration) ProcessLister {
	return func(ctx context.Context) ([]ProcInfo, error) {
		procs, err := process.ProcessesWithContext(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]ProcInfo, 0, len(procs))
		for _, p := range procs {
			name, err := p.NameWithContext(ctx)
			if err != nil {
				continue
			}
			out = append(out, ProcInfo{
				PID:  p.Pid,
				Name: name,
				Stats: func(ctx context.Context) (float64, float64, error) {
					pct, err := p.PercentWithContext(ctx, window)
					if err != nil {
						return 0, 0, err
					}
					mi, err := p.MemoryInfoWithContext(ctx)
					if err != nil {
						return 0, 0, err
					}
					return pct, float64(mi.RSS) / 1024 / 1024, nil
				},
			})
		}
		return out, nil
	}
}

// ProcessCollector 进程存活数量以及单进程资源监控
type ProcessCollector struct {
	host  string
	watch []config.ProcessWatch
	list  ProcessLister
	log   *zap.Logger
}

func NewProcessCollector(cfg config.ProcessMonitorConfig, host string, log *zap.Logger) *ProcessCollector {
	return NewProcessCollectorWithLister(cfg, host, listProcesses(100*time.Millisecond), log)
}

func NewProcessCollectorWithLister(cfg config.ProcessMonitorConfig, host string, list ProcessLister, log *zap.Logger) *ProcessCollector {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProcessCollector{host: host, watch: cfg.Watch, list: list, log: log}
}

func (c *ProcessCollector) Name() string { return "processes" }

func (c *ProcessCollector) Collect(ctx context.Context) ([]model.Metric, []model.Alert, error) {
	if len(c.watch) == 0 {
		return nil, nil, nil
	}
	procs, err := c.list(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list processes failed: %w", err)
	}

	var (
		metrics []model.Metric
		alerts  []model.Alert
	)
	for _, w := range c.watch {
		matched := matchProcesses(procs, w.Name)
		tags := baseTags(c.host, "process", w.Name)

		metrics = append(metrics, model.NewMetric("process.count", map[string]any{"count": len(matched)}, tags))
		if len(matched) < w.MinCount {
			alerts = append(alerts, model.NewAlert("process_missing_"+w.Name,
				fmt.Sprintf("Process '%s' has %d/%d instances", w.Name, len(matched), w.MinCount),
				model.SeverityCritical, SourceProcess, tags))
		}

		sev := model.SeverityWarning
		if w.Critical {
			sev = model.SeverityCritical
		}
		for _, p := range matched {
			cpuPct, memMB, err := p.Stats(ctx)
			if err != nil {
				c.log.Debug("skip process", zap.Int32("pid", p.PID), zap.Error(err))
				continue
			}
			pid := strconv.Itoa(int(p.PID))
			ptags := withTags(tags, "pid", pid)
			metrics = append(metrics, model.NewMetric("process.stats", map[string]any{
				"cpu_percent": cpuPct,
				"mem_mb":      memMB,
			}, ptags))

			if w.MaxCPU > 0 && cpuPct > w.MaxCPU {
				alerts = append(alerts, model.NewAlert(fmt.Sprintf("process_cpu_%s_%s", w.Name, pid),
					fmt.Sprintf("%s[%s] CPU %.1f%% > %.1f%%", w.Name, pid, cpuPct, w.MaxCPU),
					sev, SourceProcess, ptags))
			}
			if w.MaxMemMB > 0 && memMB > w.MaxMemMB {
				alerts = append(alerts, model.NewAlert(fmt.Sprintf("process_mem_%s_%s", w.Name, pid),
					fmt.Sprintf("%s[%s] memory %.0fMB > %.0fMB", w.Name, pid, memMB, w.MaxMemMB),
					sev, SourceProcess, ptags))
			}
		}
	}
	return metrics, alerts, nil
}

// matchProcesses is a case-insensitive substring match on the process name.
func matchProcesses(procs []ProcInfo, name string) []ProcInfo {
	needle := strings.ToLower(name)
	var out []ProcInfo
	for _, p := range procs {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}
