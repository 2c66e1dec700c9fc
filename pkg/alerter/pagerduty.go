package alerter

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// PagerDutyEndpoint is the Events API v2 enqueue URL.
const PagerDutyEndpoint = "https://events.pagerduty.com/v2/enqueue"

// PagerDuty triggers and resolves incidents keyed by the alert id.
type PagerDuty struct {
	routingKey string
	sevMap     map[model.Severity]string
	hc         *http.Client

	// Endpoint defaults to PagerDutyEndpoint.
	Endpoint string
}

func NewPagerDuty(cfg config.PagerDutyConfig, hc *http.Client) *PagerDuty {
	return &PagerDuty{
		routingKey: cfg.RoutingKey,
		sevMap: mergeSeverityMap(map[model.Severity]string{
			model.SeverityCritical: "critical",
			model.SeverityWarning:  "warning",
			model.SeverityInfo:     "info",
		}, cfg.SeverityMap),
		hc:       newHTTPClient(hc),
		Endpoint: PagerDutyEndpoint,
	}
}

func (p *PagerDuty) Name() string { return "pagerduty" }

type pagerDutyPayload struct {
	Summary       string            `json:"summary"`
	Source        string            `json:"source"`
	Severity      string            `json:"severity"`
	Timestamp     string            `json:"timestamp"`
	CustomDetails map[string]string `json:"custom_details"`
}

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key"`
	Payload     pagerDutyPayload `json:"payload"`
}

func (p *PagerDuty) Send(ctx context.Context, a model.Alert) error {
	if p.routingKey == "" {
		return nil
	}
	return postJSON(ctx, p.hc, p.Endpoint, p.event(a), nil)
}

func (p *PagerDuty) event(a model.Alert) pagerDutyEvent {
	action := "trigger"
	if a.Resolved {
		action = "resolve"
	}
	host, _ := os.Hostname()
	sev, ok := p.sevMap[a.Severity]
	if !ok {
		sev = "warning"
	}
	return pagerDutyEvent{
		RoutingKey:  p.routingKey,
		EventAction: action,
		DedupKey:    a.ID(),
		Payload: pagerDutyPayload{
			Summary:       truncate(a.Message, 1024),
			Source:        a.Tag("host", host),
			Severity:      sev,
			Timestamp:     a.Timestamp.Format(time.RFC3339),
			CustomDetails: tagDetails(a.Tags),
		},
	}
}
