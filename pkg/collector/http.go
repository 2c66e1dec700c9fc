package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// bodyLimit bounds how much of a response is matched against expect_body.
const bodyLimit = 4096

type httpProbe struct {
	check    config.HTTPCheck
	body     *regexp.Regexp
	severity model.Severity
}

// HTTPCollector 对配置的端点做可用性探测，失败时产生 http_down_* 告警
type HTTPCollector struct {
	host   string
	probes []httpProbe
	client *http.Client
	log    *zap.Logger
}

// NewHTTPCollector compiles expect_body patterns up front. Config validation
// already rejected bad patterns and severities, so failures here are errors.
func NewHTTPCollector(cfg config.HTTPMonitorConfig, host string, hc *http.Client, log *zap.Logger) (*HTTPCollector, error) {
	if hc == nil {
		hc = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &HTTPCollector{host: host, client: hc, log: log}
	for _, chk := range cfg.Checks {
		p := httpProbe{check: chk, severity: model.SeverityCritical}
		if chk.ExpectBody != "" {
			re, err := regexp.Compile(chk.ExpectBody)
			if err != nil {
				return nil, fmt.Errorf("check %q: bad expect_body: %w", chk.Name, err)
			}
			p.body = re
		}
		if chk.Severity != "" {
			sev, err := model.ParseSeverity(chk.Severity)
			if err != nil {
				return nil, fmt.Errorf("check %q: %w", chk.Name, err)
			}
			p.severity = sev
		}
		c.probes = append(c.probes, p)
	}
	return c, nil
}

func (c *HTTPCollector) Name() string { return "http" }

// Collect fails only when ctx ends mid-run. An unreachable endpoint is a
// down alert, not an error.
func (c *HTTPCollector) Collect(ctx context.Context) ([]model.Metric, []model.Alert, error) {
	var (
		metrics []model.Metric
		alerts  []model.Alert
	)
	for _, p := range c.probes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		tags := baseTags(c.host, "endpoint", strings.ReplaceAll(p.check.Name, " ", "_"))
		status, elapsed, err := c.probe(ctx, p)
		if err != nil && ctx.Err() != nil {
			// 运行上下文被取消，不能当作端点故障
			return nil, nil, ctx.Err()
		}

		up := 0
		if err == nil {
			up = 1
		}
		metrics = append(metrics, model.NewMetric("http.check", map[string]any{
			"status_code": status,
			"response_ms": float64(elapsed.Microseconds()) / 1000,
			"up":          up,
		}, tags))

		if err != nil {
			c.log.Debug("http check down", zap.String("check", p.check.Name), zap.Error(err))
			alerts = append(alerts, model.NewAlert(HTTPAlertName(p.check.Name),
				fmt.Sprintf("'%s' DOWN: %v", p.check.Name, err),
				p.severity, SourceHTTP, tags))
		}
	}
	return metrics, alerts, nil
}

func (c *HTTPCollector) probe(ctx context.Context, p httpProbe) (int, time.Duration, error) {
	chk := p.check
	if chk.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, chk.Timeout)
		defer cancel()
	}
	method := chk.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, chk.URL, nil)
	if err != nil {
		return 0, 0, err
	}
	for k, v := range chk.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, time.Since(start), err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	elapsed := time.Since(start)
	if err != nil {
		return resp.StatusCode, elapsed, err
	}

	expect := chk.ExpectStatus
	if expect == 0 {
		expect = http.StatusOK
	}
	if resp.StatusCode != expect {
		return resp.StatusCode, elapsed, fmt.Errorf("expected %d, got %d", expect, resp.StatusCode)
	}
	if p.body != nil && !p.body.Match(body) {
		return resp.StatusCode, elapsed, fmt.Errorf("body mismatch: %q", chk.ExpectBody)
	}
	return resp.StatusCode, elapsed, nil
}

// HTTPAlertName derives the alert name of a check: "App Health" -> http_down_app_health.
func HTTPAlertName(check string) string {
	return "http_down_" + strings.ReplaceAll(strings.ToLower(check), " ", "_")
}
