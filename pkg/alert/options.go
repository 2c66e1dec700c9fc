package alert

import (
	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// ConfigOptions maps the alerting section onto manager options. Unknown
// severities are rejected by config validation before this point.
func ConfigOptions(cfg config.AlertingConfig) []Option {
	sevs := make([]model.Severity, 0, len(cfg.PagingSeverities))
	for _, s := range cfg.PagingSeverities {
		if sev, err := model.ParseSeverity(s); err == nil {
			sevs = append(sevs, sev)
		}
	}
	opts := []Option{
		WithCooldown(cfg.Cooldown),
		WithSendResolve(cfg.SendResolve),
	}
	if len(sevs) > 0 {
		opts = append(opts, WithPagingSeverities(sevs...))
	}
	return opts
}
