package agent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvConfigPath, "")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lurkkit.yaml")

	out, err := run(t, context.Background(), "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote sample config to "+path)
	assert.FileExists(t, path)

	_, err = run(t, context.Background(), "init", path)
	assert.ErrorIs(t, err, config.ErrConfigExists)
}

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, "lurkkit.yaml", `
agent:
  host_tag: web-1
alerting:
  slack:
    enabled: true
    webhook_url: https://hooks.slack.com/services/T/B/X
`)
	out, err := run(t, context.Background(), "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "config OK ("+path+")")
	assert.Contains(t, out, "host tag:  web-1")
	assert.Contains(t, out, "slack")
	assert.Contains(t, out, "credentials set")
}

func TestValidateCommandRejects(t *testing.T) {
	path := writeFile(t, "lurkkit.yaml", "alerting:\n  pagerduty:\n    enabled: true\n")
	_, err := run(t, context.Background(), "validate", "-c", path)
	assert.ErrorContains(t, err, "config invalid")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lurkkit dev")
}

func TestRunAgentMissingConfig(t *testing.T) {
	_, err := run(t, context.Background(), "-c", filepath.Join(t.TempDir(), "missing.yaml"), "--no-banner")
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestRunAgentStopsWhenContextEnds(t *testing.T) {
	logFile := writeFile(t, "app.log", "ERROR boot failed\n")
	path := writeFile(t, "lurkkit.yaml", `
monitors:
  system:
    enabled: false
  logs:
    enabled: true
    interval: 1
    files:
      - path: `+logFile+`
        patterns:
          - regex: ERROR
telemetry:
  enabled: true
  type: stdout
  batch_size: 1
`)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := run(t, ctx, "-c", path, "--no-banner", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "[METRIC] log.matches")
}

func TestPrintStatus(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Agent.HostTag = "web-1"
	metrics := []model.Metric{
		model.NewMetric("system.cpu", map[string]any{"usage_percent": 97.0, "core_count": 8}, nil),
		model.NewMetric("system.memory", map[string]any{"usage_percent": 50.0, "used_bytes": uint64(4 << 30), "total_bytes": uint64(8 << 30)}, nil),
		model.NewMetric("system.disk", map[string]any{"usage_percent": 10.0, "free_bytes": uint64(900 << 20)}, map[string]string{"mount": "/"}),
	}
	alerts := []model.Alert{model.NewAlert("high_cpu", "CPU at 97.0%", model.SeverityCritical, "system", nil)}

	var buf bytes.Buffer
	printStatus(&buf, cfg, metrics, alerts)
	out := buf.String()
	assert.Contains(t, out, "Host: web-1")
	assert.Contains(t, out, "(8 cores)")
	assert.Contains(t, out, "4.0 GiB / 8.0 GiB")
	assert.Contains(t, out, "Disk /")
	assert.Contains(t, out, "900.0 MiB free")
	assert.Contains(t, out, "[CRITICAL] high_cpu: CPU at 97.0%")
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "2.0 GiB", humanBytes(2<<30))
}
