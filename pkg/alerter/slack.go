package alerter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

var slackColors = map[model.Severity]string{
	model.SeverityInfo:     "#36a64f",
	model.SeverityWarning:  "#ff9f00",
	model.SeverityCritical: "#e01e5a",
}

const slackResolvedColor = "#36a64f"

// Slack posts alerts to an incoming webhook as a single attachment.
type Slack struct {
	cfg config.SlackConfig
	hc  *http.Client
}

func NewSlack(cfg config.SlackConfig, hc *http.Client) *Slack {
	if cfg.Username == "" {
		cfg.Username = "LurkKit"
	}
	if cfg.IconEmoji == "" {
		cfg.IconEmoji = ":cat2:"
	}
	return &Slack{cfg: cfg, hc: newHTTPClient(hc)}
}

func (s *Slack) Name() string { return "slack" }

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
	Fields []slackField `json:"fields"`
}

type slackPayload struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji"`
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func (s *Slack) Send(ctx context.Context, a model.Alert) error {
	if s.cfg.WebhookURL == "" {
		return nil
	}
	return postJSON(ctx, s.hc, s.cfg.WebhookURL, s.payload(a), nil)
}

func (s *Slack) payload(a model.Alert) slackPayload {
	state := string(a.Severity)
	color, ok := slackColors[a.Severity]
	if !ok {
		color = "#808080"
	}
	icon := "⚠️"
	if a.Critical() {
		icon = "🚨"
	}
	if a.Resolved {
		state, color, icon = "resolved", slackResolvedColor, "✅"
	}

	var mention string
	if !a.Resolved {
		switch {
		case a.Severity == model.SeverityCritical && s.cfg.MentionOnCritical != "":
			mention = s.cfg.MentionOnCritical + " "
		case a.Severity == model.SeverityWarning && s.cfg.MentionOnWarning != "":
			mention = s.cfg.MentionOnWarning + " "
		}
	}

	host := a.Tag("host", "unknown")
	return slackPayload{
		Username:  s.cfg.Username,
		IconEmoji: s.cfg.IconEmoji,
		Channel:   s.cfg.Channel,
		Text:      fmt.Sprintf("%s%s *%s* on `%s`", mention, icon, strings.ToUpper(state), host),
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  title(a.Name),
			Text:   a.Message,
			Footer: "LurkKit • " + a.Source,
			Ts:     a.Timestamp.Unix(),
			Fields: []slackField{
				{Title: "Severity", Value: strings.ToUpper(string(a.Severity)), Short: true},
				{Title: "Host", Value: a.Tag("host", "—"), Short: true},
			},
		}},
	}
}
