package alerter

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// OpsGenie creates alerts with the alert id as alias and closes them by alias.
type OpsGenie struct {
	apiKey  string
	team    string
	prioMap map[model.Severity]string
	hc      *http.Client

	// URL is the alerts collection endpoint for the configured region.
	URL string
}

func NewOpsGenie(cfg config.OpsGenieConfig, hc *http.Client) *OpsGenie {
	base := "https://api.opsgenie.com"
	if cfg.Region == "eu" {
		base = "https://api.eu.opsgenie.com"
	}
	return &OpsGenie{
		apiKey: cfg.APIKey,
		team:   cfg.Team,
		prioMap: mergeSeverityMap(map[model.Severity]string{
			model.SeverityCritical: "P1",
			model.SeverityWarning:  "P3",
			model.SeverityInfo:     "P5",
		}, cfg.PriorityMap),
		hc:  newHTTPClient(hc),
		URL: base + "/v2/alerts",
	}
}

func (o *OpsGenie) Name() string { return "opsgenie" }

type opsGenieResponder struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type opsGenieCreate struct {
	Message     string              `json:"message"`
	Alias       string              `json:"alias"`
	Description string              `json:"description"`
	Priority    string              `json:"priority"`
	Source      string              `json:"source"`
	Details     map[string]string   `json:"details"`
	Responders  []opsGenieResponder `json:"responders,omitempty"`
}

type opsGenieClose struct {
	Source string `json:"source"`
	Note   string `json:"note"`
}

func (o *OpsGenie) Send(ctx context.Context, a model.Alert) error {
	if o.apiKey == "" {
		return nil
	}
	hdrs := map[string]string{"Authorization": "GenieKey " + o.apiKey}
	if a.Resolved {
		closeURL := o.URL + "/" + url.PathEscape(a.ID()) + "/close?identifierType=alias"
		return postJSON(ctx, o.hc, closeURL, opsGenieClose{Source: "lurkkit", Note: "Auto-resolved"}, hdrs)
	}
	return postJSON(ctx, o.hc, o.URL, o.create(a), hdrs)
}

func (o *OpsGenie) create(a model.Alert) opsGenieCreate {
	prio, ok := o.prioMap[a.Severity]
	if !ok {
		prio = "P3"
	}
	c := opsGenieCreate{
		Message:     truncate(a.Message, 130),
		Alias:       a.ID(),
		Description: a.Message,
		Priority:    prio,
		Source:      a.Tag("host", "lurkkit"),
		Details:     tagDetails(a.Tags),
	}
	if o.team != "" {
		c.Responders = []opsGenieResponder{{Name: o.team, Type: "team"}}
	}
	return c
}
