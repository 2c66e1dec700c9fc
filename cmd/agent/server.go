package agent

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lurkkit/agent/internal/server"
	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/registers"
)

func initServerFlags(root *cobra.Command) {
	f := root.Flags()

	f.Bool("server", defaultCfg.Server.Enabled, "-> Enable the HTTP status server | 启用 HTTP 状态服务")
	f.String("server-addr", defaultCfg.Server.Addr, "-> HTTP listening address | HTTP 监听地址")
}

// statusFunc snapshots the running agent for /status.
func statusFunc(cfg *config.Config, rt *registers.Runtime, started time.Time) server.StatusFunc {
	return func() server.Status {
		mgr := rt.Agent.Manager()
		st := server.Status{
			Host:           cfg.Agent.HostTag,
			StartedAt:      started.UTC(),
			Uptime:         time.Since(started).Round(time.Second).String(),
			Firing:         mgr.Firing(),
			FiringCount:    mgr.FiringCount(),
			PendingMetrics: rt.Agent.Buffer().Pending(),
			Alerters:       rt.Alerters.Names(),
		}
		for _, w := range rt.Agent.Workers() {
			st.Collectors = append(st.Collectors, server.CollectorStatus{
				Name:     w.Name(),
				Interval: w.Interval().String(),
			})
		}
		return st
	}
}
