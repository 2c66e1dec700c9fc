package config

import (
	"fmt"

	"github.com/lurkkit/agent/pkg/model"
)

func (a *AlertingConfig) Validate() error {
	for _, s := range a.PagingSeverities {
		if _, err := model.ParseSeverity(s); err != nil {
			return fmt.Errorf("alerting.paging_severities: %w", err)
		}
	}
	for k := range a.PagerDuty.SeverityMap {
		if _, err := model.ParseSeverity(k); err != nil {
			return fmt.Errorf("alerting.pagerduty.severity_map: %w", err)
		}
	}
	for k := range a.OpsGenie.PriorityMap {
		if _, err := model.ParseSeverity(k); err != nil {
			return fmt.Errorf("alerting.opsgenie.priority_map: %w", err)
		}
	}
	return nil
}

// Credentials reports, per enabled alerter, whether its credential is set.
func (a *AlertingConfig) Credentials() map[string]bool {
	out := map[string]bool{}
	if a.Slack.Enabled {
		out["slack"] = a.Slack.WebhookURL != ""
	}
	if a.PagerDuty.Enabled {
		out["pagerduty"] = a.PagerDuty.RoutingKey != ""
	}
	if a.Datadog.Enabled {
		out["datadog"] = a.Datadog.APIKey != ""
	}
	if a.OpsGenie.Enabled {
		out["opsgenie"] = a.OpsGenie.APIKey != ""
	}
	return out
}

// Validate 指标输出配置校验，未启用时不检查目标地址
func (t *TelemetryConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	switch t.Type {
	case "influxdb":
		if t.URL == "" {
			return fmt.Errorf("telemetry.url is required for type influxdb")
		}
	case "statsd":
		if t.StatsdHost == "" {
			return fmt.Errorf("telemetry.statsd_host is required for type statsd")
		}
	}
	return nil
}
