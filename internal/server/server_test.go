package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lurkkit/agent/pkg/config"
)

func testServer(t *testing.T) *HTTPServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "agent_collect_errors_total", Help: "x"})
	reg.MustRegister(c)
	c.Inc()

	cfg := config.NewDefaultConfig().Server
	cfg.Addr = "127.0.0.1:0"
	return NewHTTPServer(cfg, reg, func() Status {
		return Status{Host: "web-1", Firing: []string{"system:high_cpu"}, FiringCount: 1, PendingMetrics: 7}
	}, nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, testServer(t).Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetrics(t *testing.T) {
	rec := get(t, testServer(t).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent_collect_errors_total 1")
}

func TestStatus(t *testing.T) {
	rec := get(t, testServer(t).Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, []string{"system:high_cpu"}, st.Firing)
	assert.Equal(t, 7, st.PendingMetrics)
}

func TestStartAndShutdown(t *testing.T) {
	s := testServer(t)
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err = http.Get("http://" + s.Addr() + "/health")
	assert.Error(t, err)
}

func TestStartReportsBindError(t *testing.T) {
	a := testServer(t)
	require.NoError(t, a.Start())
	defer a.Shutdown(context.Background())

	cfg := config.NewDefaultConfig().Server
	cfg.Addr = a.Addr()
	b := NewHTTPServer(cfg, prometheus.NewRegistry(), func() Status { return Status{} }, nil)
	assert.Error(t, b.Start())
}

type brokenSeries struct{}

func (brokenSeries) Describe(chan<- *prometheus.Desc) {}

func (brokenSeries) Collect(ch chan<- prometheus.Metric) {
	desc := prometheus.NewDesc("lurkkit_disk_used_percent", "x", []string{"mount"}, nil)
	_, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, 1, "/mnt/\xff")
	ch <- prometheus.NewInvalidMetric(desc, err)
}

func TestMetricsServesGoodSeriesDespiteBadOne(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "agent_collect_errors_total", Help: "x"})
	reg.MustRegister(c, brokenSeries{})
	c.Inc()

	cfg := config.NewDefaultConfig().Server
	cfg.Addr = "127.0.0.1:0"
	s := NewHTTPServer(cfg, reg, func() Status { return Status{} }, nil)

	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent_collect_errors_total 1")
}
