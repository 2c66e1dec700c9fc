package agent

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lurkkit/agent/pkg/collector"
	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
	"github.com/lurkkit/agent/pkg/util"
)

const barWidth = 20

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a one-off snapshot of this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfigWithCli(cmd)
			if err != nil {
				return err
			}
			c := collector.NewSystemCollector(cfg.Monitors.System, cfg.Agent.HostTag, nil)
			metrics, alerts, err := c.Collect(cmd.Context())
			if err != nil {
				return err
			}
			util.PrintBanner(cmd.OutOrStdout(), "LurkKit", util.ColorCyan)
			printStatus(cmd.OutOrStdout(), cfg, metrics, alerts)
			return nil
		},
	}
}

// printStatus renders system collector output as colored usage bars.
func printStatus(w io.Writer, cfg *config.Config, metrics []model.Metric, alerts []model.Alert) {
	th := cfg.Monitors.System.Thresholds
	crit := cfg.Monitors.System.CriticalOverrides
	fmt.Fprintf(w, "Host: %s\n\n", cfg.Agent.HostTag)

	for _, m := range metrics {
		switch m.Measurement {
		case "system.cpu":
			pct := field(m, "usage_percent")
			fmt.Fprintf(w, "%-14s %s (%d cores)\n", "CPU", usage(pct, th.CPUPercent, crit.CPUPercent), int(field(m, "core_count")))
		case "system.memory":
			pct := field(m, "usage_percent")
			fmt.Fprintf(w, "%-14s %s (%s / %s)\n", "Memory", usage(pct, th.MemoryPercent, crit.MemoryPercent),
				humanBytes(field(m, "used_bytes")), humanBytes(field(m, "total_bytes")))
		case "system.swap":
			pct := field(m, "usage_percent")
			fmt.Fprintf(w, "%-14s %s (%s / %s)\n", "Swap", usage(pct, th.SwapPercent, 0),
				humanBytes(field(m, "used_bytes")), humanBytes(field(m, "total_bytes")))
		case "system.disk":
			pct := field(m, "usage_percent")
			fmt.Fprintf(w, "%-14s %s (%s free)\n", "Disk "+m.Tags["mount"], usage(pct, th.DiskPercent, crit.DiskPercent),
				humanBytes(field(m, "free_bytes")))
		case "system.load":
			fmt.Fprintf(w, "%-14s %.2f %.2f %.2f\n", "Load", field(m, "load_1m"), field(m, "load_5m"), field(m, "load_15m"))
		case "system.network":
			fmt.Fprintf(w, "%-14s sent %s, recv %s\n", "Network", humanBytes(field(m, "bytes_sent")), humanBytes(field(m, "bytes_recv")))
		}
	}

	fmt.Fprintln(w)
	if len(alerts) == 0 {
		fmt.Fprintln(w, util.Colorize("No alerts", util.ColorGreen))
		return
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Severity.Rank() > alerts[j].Severity.Rank() })
	for _, a := range alerts {
		color := util.ColorYellow
		if a.Critical() {
			color = util.ColorRed
		}
		fmt.Fprintln(w, util.Colorize(a.String(), color))
	}
}

func usage(pct, warn, crit float64) string {
	return util.Colorize(fmt.Sprintf("%s %5.1f%%", util.Bar(pct, barWidth), pct), util.PercentColor(pct, warn, crit))
}

func field(m model.Metric, name string) float64 {
	f, _ := model.Float(m.Fields[name])
	return f
}

func humanBytes(b float64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%.0f B", b)
	}
	div, exp := float64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", b/div, "KMGTPE"[exp])
}
