package alerter

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// Datadog posts alerts to the v1 events API grouped by aggregation key.
type Datadog struct {
	apiKey string
	tags   []string
	hc     *http.Client

	// URL defaults to https://api.<site>/api/v1/events.
	URL string
}

func NewDatadog(cfg config.DatadogConfig, hc *http.Client) *Datadog {
	site := cfg.Site
	if site == "" {
		site = "datadoghq.com"
	}
	return &Datadog{
		apiKey: cfg.APIKey,
		tags:   cfg.Tags,
		hc:     newHTTPClient(hc),
		URL:    fmt.Sprintf("https://api.%s/api/v1/events", site),
	}
}

func (d *Datadog) Name() string { return "datadog" }

type datadogEvent struct {
	Title          string   `json:"title"`
	Text           string   `json:"text"`
	AlertType      string   `json:"alert_type"`
	SourceTypeName string   `json:"source_type_name"`
	AggregationKey string   `json:"aggregation_key"`
	Tags           []string `json:"tags"`
}

func (d *Datadog) Send(ctx context.Context, a model.Alert) error {
	if d.apiKey == "" {
		return nil
	}
	return postJSON(ctx, d.hc, d.URL, d.event(a), map[string]string{"DD-API-KEY": d.apiKey})
}

func (d *Datadog) event(a model.Alert) datadogEvent {
	state := title(string(a.Severity))
	alertType := "warning"
	switch {
	case a.Resolved:
		state, alertType = "Resolved", "success"
	case a.Critical():
		alertType = "error"
	}

	tags := append([]string{}, d.tags...)
	keys := make([]string, 0, len(a.Tags))
	for k := range a.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tags = append(tags, k+":"+a.Tags[k])
	}

	return datadogEvent{
		Title:          fmt.Sprintf("[LurkKit][%s] %s", state, title(a.Name)),
		Text:           a.Message,
		AlertType:      alertType,
		SourceTypeName: "LurkKit",
		AggregationKey: a.ID(),
		Tags:           tags,
	}
}
