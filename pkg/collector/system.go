package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// HostSampler reads host counters. The default implementation is gopsutil.
type HostSampler interface {
	CPUPercent(ctx context.Context) (float64, error)
	CPUCount(ctx context.Context) (int, error)
	Memory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Swap(ctx context.Context) (*mem.SwapMemoryStat, error)
	Partitions(ctx context.Context) ([]disk.PartitionStat, error)
	Usage(ctx context.Context, path string) (*disk.UsageStat, error)
	NetIO(ctx context.Context) (*psnet.IOCountersStat, error)
	Load(ctx context.Context) (*load.AvgStat, error)
}

type gopsutilSampler struct {
	cpuWindow time.Duration
}

func (s gopsutilSampler) CPUPercent(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, s.cpuWindow, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, fmt.Errorf("cpu percent: empty result")
	}
	return pct[0], nil
}

func (gopsutilSampler) CPUCount(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

func (gopsutilSampler) Memory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (gopsutilSampler) Swap(ctx context.Context) (*mem.SwapMemoryStat, error) {
	return mem.SwapMemoryWithContext(ctx)
}

func (gopsutilSampler) Partitions(ctx context.Context) ([]disk.PartitionStat, error) {
	return disk.PartitionsWithContext(ctx, false)
}

func (gopsutilSampler) Usage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

func (gopsutilSampler) NetIO(ctx context.Context) (*psnet.IOCountersStat, error) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, fmt.Errorf("net io: empty result")
	}
	return &counters[0], nil
}

func (gopsutilSampler) Load(ctx context.Context) (*load.AvgStat, error) {
	return load.AvgWithContext(ctx)
}

// SystemCollector 主机资源采集器：CPU、内存、swap、磁盘、网络、负载
type SystemCollector struct {
	host    string
	cfg     config.SystemMonitorConfig
	sampler HostSampler
	log     *zap.Logger
}

// NewSystemCollector samples CPU over a one second window.
func NewSystemCollector(cfg config.SystemMonitorConfig, host string, log *zap.Logger) *SystemCollector {
	return NewSystemCollectorWithSampler(cfg, host, gopsutilSampler{cpuWindow: time.Second}, log)
}

func NewSystemCollectorWithSampler(cfg config.SystemMonitorConfig, host string, s HostSampler, log *zap.Logger) *SystemCollector {
	if log == nil {
		log = zap.NewNop()
	}
	return &SystemCollector{host: host, cfg: cfg, sampler: s, log: log}
}

func (c *SystemCollector) Name() string { return "system" }

func (c *SystemCollector) Collect(ctx context.Context) ([]model.Metric, []model.Alert, error) {
	var (
		metrics []model.Metric
		alerts  []model.Alert
		th      = c.cfg.Thresholds
		crit    = c.cfg.CriticalOverrides
		tags    = baseTags(c.host)
	)

	// 1. CPU
	cpuPct, err := c.sampler.CPUPercent(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get cpu usage failed: %w", err)
	}
	cores, _ := c.sampler.CPUCount(ctx)
	metrics = append(metrics, model.NewMetric("system.cpu", map[string]any{
		"usage_percent": cpuPct,
		"core_count":    cores,
	}, tags))
	if sev, ok := thresholdSeverity(cpuPct, th.CPUPercent, crit.CPUPercent); ok {
		alerts = append(alerts, model.NewAlert("high_cpu",
			fmt.Sprintf("CPU at %.1f%% (%s)", cpuPct, levelNote(sev, th.CPUPercent, crit.CPUPercent)),
			sev, SourceSystem, tags))
	}

	// 2. 内存
	vm, err := c.sampler.Memory(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get memory usage failed: %w", err)
	}
	metrics = append(metrics, model.NewMetric("system.memory", map[string]any{
		"usage_percent":   vm.UsedPercent,
		"used_bytes":      vm.Used,
		"available_bytes": vm.Available,
		"total_bytes":     vm.Total,
	}, tags))
	if sev, ok := thresholdSeverity(vm.UsedPercent, th.MemoryPercent, crit.MemoryPercent); ok {
		alerts = append(alerts, model.NewAlert("high_memory",
			fmt.Sprintf("Memory at %.1f%% (%s)", vm.UsedPercent, levelNote(sev, th.MemoryPercent, crit.MemoryPercent)),
			sev, SourceSystem, tags))
	}

	// 3. swap（没有 swap 的主机 Total 为 0）
	if sw, err := c.sampler.Swap(ctx); err != nil {
		c.log.Debug("swap unavailable", zap.Error(err))
	} else if sw.Total > 0 {
		metrics = append(metrics, model.NewMetric("system.swap", map[string]any{
			"usage_percent": sw.UsedPercent,
			"used_bytes":    sw.Used,
			"total_bytes":   sw.Total,
		}, tags))
		if th.SwapPercent > 0 && sw.UsedPercent >= th.SwapPercent {
			alerts = append(alerts, model.NewAlert("high_swap",
				fmt.Sprintf("Swap at %.1f%% (warning: %.1f%%)", sw.UsedPercent, th.SwapPercent),
				model.SeverityWarning, SourceSystem, tags))
		}
	}

	// 4. 磁盘
	dm, da := c.collectDisks(ctx)
	metrics = append(metrics, dm...)
	alerts = append(alerts, da...)

	// 5. 网络
	if io, err := c.sampler.NetIO(ctx); err != nil {
		c.log.Debug("net counters unavailable", zap.Error(err))
	} else {
		metrics = append(metrics, model.NewMetric("system.network", map[string]any{
			"bytes_sent": io.BytesSent,
			"bytes_recv": io.BytesRecv,
			"errin":      io.Errin,
			"errout":     io.Errout,
		}, tags))
	}

	// 6. 负载，超过阈值 1.5 倍升级为 critical
	if avg, err := c.sampler.Load(ctx); err != nil {
		c.log.Debug("load average unavailable", zap.Error(err))
	} else {
		metrics = append(metrics, model.NewMetric("system.load", map[string]any{
			"load_1m":  avg.Load1,
			"load_5m":  avg.Load5,
			"load_15m": avg.Load15,
		}, tags))
		if lt := th.Load1m; lt > 0 && avg.Load1 >= lt {
			sev := model.SeverityWarning
			if avg.Load1 >= lt*1.5 {
				sev = model.SeverityCritical
			}
			alerts = append(alerts, model.NewAlert("high_load",
				fmt.Sprintf("Load %.2f (threshold: %.2f)", avg.Load1, lt), sev, SourceSystem, tags))
		}
	}

	return metrics, alerts, nil
}

func (c *SystemCollector) collectDisks(ctx context.Context) ([]model.Metric, []model.Alert) {
	parts, err := c.sampler.Partitions(ctx)
	if err != nil {
		c.log.Debug("disk partitions unavailable", zap.Error(err))
		return nil, nil
	}
	var (
		metrics []model.Metric
		alerts  []model.Alert
	)
	for _, p := range parts {
		u, err := c.sampler.Usage(ctx, p.Mountpoint)
		if err != nil {
			// 无权限或已卸载的挂载点直接跳过
			c.log.Debug("skip mount", zap.String("mount", p.Mountpoint), zap.Error(err))
			continue
		}
		tags := baseTags(c.host, "mount", p.Mountpoint, "device", p.Device)
		metrics = append(metrics, model.NewMetric("system.disk", map[string]any{
			"usage_percent": u.UsedPercent,
			"used_bytes":    u.Used,
			"free_bytes":    u.Free,
			"total_bytes":   u.Total,
		}, tags))
		th, crit := c.cfg.Thresholds.DiskPercent, c.cfg.CriticalOverrides.DiskPercent
		if sev, ok := thresholdSeverity(u.UsedPercent, th, crit); ok {
			alerts = append(alerts, model.NewAlert(DiskAlertName(p.Mountpoint),
				fmt.Sprintf("Disk %s at %.1f%% (%s)", p.Mountpoint, u.UsedPercent, levelNote(sev, th, crit)),
				sev, SourceSystem, tags))
		}
	}
	return metrics, alerts
}

// DiskAlertName maps a mount point to its alert name: "/" -> high_disk_root,
// "/var/log" -> high_disk_var_log.
func DiskAlertName(mount string) string {
	name := strings.ReplaceAll(strings.Trim(mount, "/"), "/", "_")
	if name == "" {
		name = "root"
	}
	return "high_disk_" + name
}

func levelNote(sev model.Severity, warn, critical float64) string {
	if sev == model.SeverityCritical {
		return fmt.Sprintf("critical: %.1f%%", critical)
	}
	return fmt.Sprintf("warning: %.1f%%", warn)
}
