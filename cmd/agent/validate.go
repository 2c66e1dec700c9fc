package agent

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/util"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and report alerter credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfigWithCli(cmd)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			printValidation(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printValidation(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "%s config OK (%s)\n", util.Colorize("✓", util.ColorGreen), sourceName(cfg))
	fmt.Fprintf(w, "  host tag:  %s\n", cfg.Agent.HostTag)
	fmt.Fprintf(w, "  interval:  %s\n", cfg.Agent.Interval)

	m := cfg.Monitors
	fmt.Fprintln(w, "  monitors:")
	fmt.Fprintf(w, "    system     %s\n", onOff(m.System.Enabled))
	fmt.Fprintf(w, "    processes  %s (%d watched)\n", onOff(m.Processes.Enabled), len(m.Processes.Watch))
	fmt.Fprintf(w, "    http       %s (%d checks)\n", onOff(m.HTTP.Enabled), len(m.HTTP.Checks))
	fmt.Fprintf(w, "    logs       %s (%d files)\n", onOff(m.Logs.Enabled), len(m.Logs.Files))

	if cfg.Telemetry.Enabled {
		fmt.Fprintf(w, "  telemetry: %s\n", cfg.Telemetry.Type)
	} else {
		fmt.Fprintln(w, "  telemetry: disabled")
	}

	creds := cfg.Alerting.Credentials()
	if len(creds) == 0 {
		fmt.Fprintln(w, "  alerters:  none enabled")
		return
	}
	names := make([]string, 0, len(creds))
	for name := range creds {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "  alerters:")
	for _, name := range names {
		if creds[name] {
			fmt.Fprintf(w, "    %-10s %s\n", name, util.Colorize("credentials set", util.ColorGreen))
		} else {
			fmt.Fprintf(w, "    %-10s %s\n", name, util.Colorize("missing credentials", util.ColorRed))
		}
	}
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}
