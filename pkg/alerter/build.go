package alerter

import (
	"net/http"

	"github.com/lurkkit/agent/pkg/config"
)

// Groups splits the enabled alerters by routing class. Paging backends
// (PagerDuty, OpsGenie) only receive pageable or resolved alerts; non-paging
// backends (Slack, Datadog) receive everything.
type Groups struct {
	Paging    []Alerter
	NonPaging []Alerter
}

// Names lists every configured alerter, paging first.
func (g Groups) Names() []string {
	names := make([]string, 0, len(g.Paging)+len(g.NonPaging))
	for _, a := range g.Paging {
		names = append(names, a.Name())
	}
	for _, a := range g.NonPaging {
		names = append(names, a.Name())
	}
	return names
}

// Build 根据配置创建已启用的通知后端
func Build(cfg config.AlertingConfig, hc *http.Client) Groups {
	var g Groups
	if cfg.PagerDuty.Enabled {
		g.Paging = append(g.Paging, NewPagerDuty(cfg.PagerDuty, hc))
	}
	if cfg.OpsGenie.Enabled {
		g.Paging = append(g.Paging, NewOpsGenie(cfg.OpsGenie, hc))
	}
	if cfg.Slack.Enabled {
		g.NonPaging = append(g.NonPaging, NewSlack(cfg.Slack, hc))
	}
	if cfg.Datadog.Enabled {
		g.NonPaging = append(g.NonPaging, NewDatadog(cfg.Datadog, hc))
	}
	return g
}
