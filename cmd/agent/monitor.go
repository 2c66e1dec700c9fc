package agent

import (
	"github.com/spf13/cobra"
)

func initMonitorFlags(root *cobra.Command) {
	f := root.Flags()

	f.Duration("interval", defaultCfg.Agent.Interval, "-> Default collection interval | 默认采集间隔")
	f.String("host-tag", "", "-> Host tag attached to metrics and alerts (default: hostname)")
	f.Bool("no-banner", false, "-> Do not print the startup banner")
}
