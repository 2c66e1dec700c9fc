package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SampleConfig is the annotated configuration written by `lurkkit init`.
const SampleConfig = `# LurkKit agent configuration
agent:
  host_tag: ""          # defaults to the hostname
  interval: 30          # seconds, or Go durations such as 30s
  shutdown_grace: 5s

log:
  level: info           # debug | info | warn | error
  format: console       # console | json
  path: ""              # directory for rotated JSON logs, empty = console only
  max_age: 7            # days

server:
  enabled: false        # /health, /metrics and /status
  addr: 127.0.0.1:9464

telemetry:
  enabled: false
  type: stdout          # stdout | influxdb | statsd | prometheus
  url: http://localhost:8086/write?db=lurkkit
  token: ""
  statsd_host: localhost
  statsd_port: 8125
  batch_size: 20
  flush_interval: 10

monitors:
  system:
    enabled: true
    interval: 30
    thresholds:
      cpu_percent: 85
      memory_percent: 90
      disk_percent: 90
      load_1m: 0        # 0 disables the load alert
      swap_percent: 80
    critical_overrides:
      cpu_percent: 95
      memory_percent: 97
      disk_percent: 97

  processes:
    enabled: false
    interval: 30
    watch:
      - name: nginx
        min_count: 1
        max_cpu: 90
        max_mem_mb: 512
        critical: true

  http:
    enabled: false
    interval: 60
    checks:
      - name: App Health
        url: http://localhost:8080/health
        method: GET
        timeout: 5
        expect_status: 200
        expect_body: ok
        severity: critical

  logs:
    enabled: false
    interval: 15
    files:
      - path: /var/log/syslog
        tail_lines: 200
        patterns:
          - regex: "ERROR|CRITICAL"
            severity: warning
            alert: true

alerting:
  cooldown: 300
  send_resolve: true
  paging_severities: [critical]

  slack:
    enabled: false
    webhook_url: ""
    channel: "#alerts"
    username: LurkKit
    icon_emoji: ":cat2:"
    mention_on_critical: "<!channel>"
    mention_on_warning: ""

  pagerduty:
    enabled: false
    routing_key: ""

  datadog:
    enabled: false
    api_key: ""
    site: datadoghq.com
    tags: ["env:prod"]

  opsgenie:
    enabled: false
    api_key: ""
    region: us          # us | eu
    team: ""
`

// ErrConfigExists is returned by WriteSample when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

// WriteSample writes SampleConfig to path and refuses to overwrite an existing file.
func WriteSample(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := f.WriteString(SampleConfig); err != nil {
		f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}
