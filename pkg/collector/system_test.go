package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

type fakeSampler struct {
	cpu      float64
	cpuErr   error
	memPct   float64
	swapPct  float64
	swapSize uint64
	disks    map[string]float64
	load1    float64
	netErr   error
}

func (f *fakeSampler) CPUPercent(context.Context) (float64, error) { return f.cpu, f.cpuErr }
func (f *fakeSampler) CPUCount(context.Context) (int, error)       { return 4, nil }
func (f *fakeSampler) Memory(context.Context) (*mem.VirtualMemoryStat, error) {
	return &mem.VirtualMemoryStat{UsedPercent: f.memPct, Total: 100, Used: 40, Available: 60}, nil
}
func (f *fakeSampler) Swap(context.Context) (*mem.SwapMemoryStat, error) {
	return &mem.SwapMemoryStat{UsedPercent: f.swapPct, Total: f.swapSize}, nil
}
func (f *fakeSampler) Partitions(context.Context) ([]disk.PartitionStat, error) {
	var out []disk.PartitionStat
	for _, m := range []string{"/", "/var/log", "/denied"} {
		out = append(out, disk.PartitionStat{Mountpoint: m, Device: "sda"})
	}
	return out, nil
}
func (f *fakeSampler) Usage(_ context.Context, path string) (*disk.UsageStat, error) {
	pct, ok := f.disks[path]
	if !ok {
		return nil, errors.New("permission denied")
	}
	return &disk.UsageStat{Path: path, UsedPercent: pct}, nil
}
func (f *fakeSampler) NetIO(context.Context) (*psnet.IOCountersStat, error) {
	if f.netErr != nil {
		return nil, f.netErr
	}
	return &psnet.IOCountersStat{BytesSent: 1, BytesRecv: 2}, nil
}
func (f *fakeSampler) Load(context.Context) (*load.AvgStat, error) {
	return &load.AvgStat{Load1: f.load1}, nil
}

func systemConfig() config.SystemMonitorConfig {
	return config.NewDefaultConfig().Monitors.System
}

func alertsByName(alerts []model.Alert) map[string]model.Alert {
	out := make(map[string]model.Alert, len(alerts))
	for _, a := range alerts {
		out[a.Name] = a
	}
	return out
}

func measurements(metrics []model.Metric) map[string]int {
	out := map[string]int{}
	for _, m := range metrics {
		out[m.Measurement]++
	}
	return out
}

func TestSystemCollectorQuietHost(t *testing.T) {
	s := &fakeSampler{cpu: 10, memPct: 40, disks: map[string]float64{"/": 50, "/var/log": 10}}
	c := NewSystemCollectorWithSampler(systemConfig(), "web-1", s, nil)

	metrics, alerts, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, map[string]int{
		"system.cpu": 1, "system.memory": 1, "system.disk": 2, "system.network": 1, "system.load": 1,
	}, measurements(metrics))
	for _, m := range metrics {
		assert.Equal(t, "web-1", m.Tags["host"])
	}
}

func TestSystemCollectorThresholds(t *testing.T) {
	cfg := systemConfig()
	cfg.Thresholds.Load1m = 2
	s := &fakeSampler{
		cpu: 96, memPct: 91, swapPct: 85, swapSize: 1 << 30, load1: 2.5,
		disks: map[string]float64{"/": 98, "/var/log": 92},
	}
	c := NewSystemCollectorWithSampler(cfg, "web-1", s, nil)

	_, alerts, err := c.Collect(context.Background())
	require.NoError(t, err)
	byName := alertsByName(alerts)

	assert.Equal(t, model.SeverityCritical, byName["high_cpu"].Severity)
	assert.Equal(t, "system:high_cpu", byName["high_cpu"].ID())
	assert.Equal(t, "CPU at 96.0% (critical: 95.0%)", byName["high_cpu"].Message)
	assert.Equal(t, model.SeverityWarning, byName["high_memory"].Severity)
	assert.Equal(t, model.SeverityWarning, byName["high_swap"].Severity)
	assert.Equal(t, model.SeverityCritical, byName["high_disk_root"].Severity)
	assert.Equal(t, model.SeverityWarning, byName["high_disk_var_log"].Severity)
	assert.Equal(t, "/var/log", byName["high_disk_var_log"].Tags["mount"])
	assert.Equal(t, model.SeverityWarning, byName["high_load"].Severity)

	s.load1 = 3
	_, alerts, err = c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SeverityCritical, alertsByName(alerts)["high_load"].Severity)
}

func TestSystemCollectorCPUFailureIsError(t *testing.T) {
	s := &fakeSampler{cpuErr: errors.New("boom")}
	_, _, err := NewSystemCollectorWithSampler(systemConfig(), "h", s, nil).Collect(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestSystemCollectorOptionalProbesSkipped(t *testing.T) {
	s := &fakeSampler{netErr: errors.New("no net"), disks: map[string]float64{}}
	metrics, _, err := NewSystemCollectorWithSampler(systemConfig(), "h", s, nil).Collect(context.Background())
	require.NoError(t, err)

	got := measurements(metrics)
	assert.Zero(t, got["system.network"])
	assert.Zero(t, got["system.disk"])
	assert.Zero(t, got["system.swap"])
}

func TestDiskAlertName(t *testing.T) {
	assert.Equal(t, "high_disk_root", DiskAlertName("/"))
	assert.Equal(t, "high_disk_var_log", DiskAlertName("/var/log"))
	assert.Equal(t, "high_disk_root", DiskAlertName(""))
}
