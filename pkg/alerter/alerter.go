// Package alerter delivers alerts to notification backends. Every backend is
// best-effort: a failed delivery is reported to the caller and never retried.
package alerter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/lurkkit/agent/pkg/model"
)

// DefaultTimeout bounds each outbound delivery request.
const DefaultTimeout = 5 * time.Second

// Alerter 告警通知接口
type Alerter interface {
	// Name 返回通知器名称
	Name() string
	// Send 发送一条告警（含恢复通知）
	Send(ctx context.Context, alert model.Alert) error
}

// StatusError is returned when a backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func newHTTPClient(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// postJSON marshals payload and POSTs it to url.
func postJSON(ctx context.Context, hc *http.Client, url string, payload any, headers map[string]string) (retErr error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close response body: %w", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// title turns "high_cpu" into "High Cpu".
func title(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func tagDetails(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// mergeSeverityMap overlays user entries on defaults. Keys are severities.
func mergeSeverityMap(defaults map[model.Severity]string, overrides map[string]string) map[model.Severity]string {
	out := make(map[model.Severity]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		if sev, err := model.ParseSeverity(k); err == nil && v != "" {
			out[sev] = v
		}
	}
	return out
}
