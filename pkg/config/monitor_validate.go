package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/lurkkit/agent/pkg/model"
)

const (
	minInterval = time.Second
	maxInterval = 3600 * time.Second
)

func (a *AgentConfig) Validate() error {
	if a.Interval < minInterval || a.Interval > maxInterval {
		return fmt.Errorf("agent.interval must be between 1 and 3600 seconds, got %s", a.Interval)
	}
	return nil
}

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if !h.Enabled {
		return nil
	}
	// 用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

func (m *MonitorsConfig) Validate() error {
	intervals := map[string]time.Duration{
		"system":    m.System.Interval,
		"processes": m.Processes.Interval,
		"http":      m.HTTP.Interval,
		"logs":      m.Logs.Interval,
	}
	for name, iv := range intervals {
		// 0 表示沿用 agent.interval
		if iv != 0 && (iv < minInterval || iv > maxInterval) {
			return fmt.Errorf("monitors.%s.interval must be between 1 and 3600 seconds, got %s", name, iv)
		}
	}
	if err := m.System.validate(); err != nil {
		return err
	}
	if err := m.Processes.validate(); err != nil {
		return err
	}
	if err := m.HTTP.validate(); err != nil {
		return err
	}
	return m.Logs.validate()
}

func (s *SystemMonitorConfig) validate() error {
	pairs := []struct {
		name           string
		warn, critical float64
	}{
		{"cpu_percent", s.Thresholds.CPUPercent, s.CriticalOverrides.CPUPercent},
		{"memory_percent", s.Thresholds.MemoryPercent, s.CriticalOverrides.MemoryPercent},
		{"disk_percent", s.Thresholds.DiskPercent, s.CriticalOverrides.DiskPercent},
	}
	for _, p := range pairs {
		if p.critical > 0 && p.critical < p.warn {
			return fmt.Errorf("monitors.system.critical_overrides.%s (%.1f) is below the warning threshold (%.1f)",
				p.name, p.critical, p.warn)
		}
	}
	return nil
}

// 进程名不能重复
func (p *ProcessMonitorConfig) validate() error {
	seen := map[string]bool{}
	for _, w := range p.Watch {
		name := strings.TrimSpace(w.Name)
		if name == "" {
			return fmt.Errorf("monitors.processes.watch: name cannot be empty")
		}
		if seen[name] {
			return fmt.Errorf("monitors.processes.watch duplicated entry: %q", name)
		}
		seen[name] = true
	}
	return nil
}

func (h *HTTPMonitorConfig) validate() error {
	seen := map[string]bool{}
	for _, c := range h.Checks {
		if seen[c.Name] {
			return fmt.Errorf("monitors.http.checks duplicated entry: %q", c.Name)
		}
		seen[c.Name] = true
		if c.ExpectBody != "" {
			if _, err := regexp.Compile(c.ExpectBody); err != nil {
				return fmt.Errorf("monitors.http.checks[%s].expect_body: %w", c.Name, err)
			}
		}
		if _, err := model.ParseSeverity(c.Severity); err != nil {
			return fmt.Errorf("monitors.http.checks[%s].severity: %w", c.Name, err)
		}
	}
	return nil
}

func (l *LogMonitorConfig) validate() error {
	for _, f := range l.Files {
		for _, p := range f.Patterns {
			if _, err := regexp.Compile("(?i)" + p.Regex); err != nil {
				return fmt.Errorf("monitors.logs.files[%s] pattern %q: %w", f.Path, p.Regex, err)
			}
			if _, err := model.ParseSeverity(p.Severity); err != nil {
				return fmt.Errorf("monitors.logs.files[%s] pattern %q: %w", f.Path, p.Regex, err)
			}
		}
	}
	return nil
}
