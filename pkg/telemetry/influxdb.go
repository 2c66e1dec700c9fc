package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lurkkit/agent/pkg/model"
)

// InfluxDB writes line protocol to a /write endpoint.
type InfluxDB struct {
	url   string
	token string
	hc    *http.Client
}

func NewInfluxDB(url, token string, hc *http.Client) *InfluxDB {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &InfluxDB{url: url, token: token, hc: hc}
}

func (s *InfluxDB) Send(ctx context.Context, metrics []model.Metric) (retErr error) {
	if len(metrics) == 0 {
		return nil
	}
	lines := make([]string, 0, len(metrics))
	for _, m := range metrics {
		if line := m.LineProtocol(); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if s.token != "" {
		req.Header.Set("Authorization", "Token "+s.token)
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("influxdb write: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("influxdb write: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
