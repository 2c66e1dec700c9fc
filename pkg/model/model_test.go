package model_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lurkkit/agent/pkg/model"
)

func TestMetricLineProtocol(t *testing.T) {
	ts := time.Unix(0, 1700000000000000000)
	m := model.Metric{
		Measurement: "cpu",
		Fields:      map[string]any{"usage": 42},
		Tags:        map[string]string{"host": "h1"},
		Timestamp:   ts,
	}
	assert.Equal(t, "cpu,host=h1 usage=42i 1700000000000000000", m.LineProtocol())
}

func TestMetricLineProtocolFloat(t *testing.T) {
	m := model.NewMetric("mem", map[string]any{"pct": 78.5}, nil)
	assert.Contains(t, m.LineProtocol(), "mem pct=78.5000 ")
}

func TestMetricLineProtocolSortsTags(t *testing.T) {
	ts := time.Unix(0, 5)
	a := model.Metric{Measurement: "disk", Fields: map[string]any{"free": 1.0},
		Tags: map[string]string{"mount": "/", "host": "h", "device": "sda1"}, Timestamp: ts}
	b := model.Metric{Measurement: "disk", Fields: map[string]any{"free": 1.0},
		Tags: map[string]string{"device": "sda1", "mount": "/", "host": "h"}, Timestamp: ts}

	assert.Equal(t, "disk,device=sda1,host=h,mount=/ free=1.0000 5", a.LineProtocol())
	assert.Equal(t, a.LineProtocol(), b.LineProtocol())
}

func TestMetricLineProtocolValueKinds(t *testing.T) {
	m := model.Metric{
		Measurement: "http.check",
		Fields: map[string]any{
			"up":     true,
			"bytes":  uint64(7),
			"error":  `say "hi"`,
			"millis": 12.25,
		},
		Tags:      map[string]string{"endpoint": "App Health"},
		Timestamp: time.Unix(0, 1),
	}
	assert.Equal(t,
		`http.check,endpoint=App\ Health bytes=7i,error="say \"hi\"",millis=12.2500,up=true 1`,
		m.LineProtocol())
}

func TestMetricLineProtocolSkipsNonFinite(t *testing.T) {
	m := model.Metric{
		Measurement: "load",
		Fields:      map[string]any{"load_1m": math.NaN(), "load_5m": math.Inf(-1), "load_15m": 0.5},
		Timestamp:   time.Unix(0, 3),
	}
	assert.Equal(t, "load load_15m=0.5000 3", m.LineProtocol())
	assert.Equal(t, []string{"load.load_15m:0.5|g"}, m.Statsd())

	m.Fields = map[string]any{"pct": float32(math.Inf(1))}
	assert.Empty(t, m.LineProtocol())
	assert.Empty(t, m.Statsd())
}

func TestMetricStatsd(t *testing.T) {
	m := model.NewMetric("cpu", map[string]any{"pct": 50.5, "cores": 4, "ok": true, "name": "x"}, nil)
	assert.Equal(t, []string{"cpu.cores:4|g", "cpu.ok:1|g", "cpu.pct:50.5|g"}, m.Statsd())
}

func TestAlertID(t *testing.T) {
	a := model.NewAlert("high_cpu", "msg", model.SeverityCritical, "system", nil)
	b := model.NewAlert("high_cpu", "other text", model.SeverityWarning, "system", nil)

	assert.Equal(t, "system:high_cpu", a.ID())
	assert.Equal(t, a.ID(), b.ID())
}

func TestAlertPageable(t *testing.T) {
	a := model.NewAlert("x", "msg", model.SeverityCritical, "system", nil)
	assert.True(t, a.Pageable())

	a.Resolved = true
	assert.False(t, a.Pageable())

	w := model.NewAlert("x", "msg", model.SeverityWarning, "system", nil)
	assert.False(t, w.Pageable())
}

func TestAlertString(t *testing.T) {
	a := model.NewAlert("high_cpu", "CPU at 99.0%", model.SeverityCritical, "system", nil)
	assert.Equal(t, "[CRITICAL] high_cpu: CPU at 99.0%", a.String())

	a.Resolved = true
	assert.Equal(t, "[RESOLVED] high_cpu: CPU at 99.0%", a.String())
}

func TestSplitID(t *testing.T) {
	src, name := model.SplitID("logs:log_syslog_ERROR:x")
	assert.Equal(t, "logs", src)
	assert.Equal(t, "log_syslog_ERROR:x", name)

	src, name = model.SplitID("bare")
	assert.Equal(t, "", src)
	assert.Equal(t, "bare", name)
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, model.SeverityInfo.Rank(), model.SeverityWarning.Rank())
	assert.Less(t, model.SeverityWarning.Rank(), model.SeverityCritical.Rank())
	assert.Equal(t, 0, model.Severity("bogus").Rank())
}

func TestParseSeverity(t *testing.T) {
	sev, err := model.ParseSeverity(" Critical ")
	require.NoError(t, err)
	assert.Equal(t, model.SeverityCritical, sev)

	_, err = model.ParseSeverity("fatal")
	assert.Error(t, err)
}

func TestIDSet(t *testing.T) {
	s := model.NewIDSet("b", "a")
	c := s.Clone()
	c.Add("c")

	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b", "c"}, c.Sorted())
}
