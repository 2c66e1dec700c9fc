package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// firstReadWindow bounds how far back the first read of a file looks.
const firstReadWindow = 32 * 1024

type logRule struct {
	raw      string
	re       *regexp.Regexp
	severity model.Severity
	alert    bool
}

type logTarget struct {
	path      string
	tailLines int
	rules     []logRule
}

// LogCollector 增量读取日志文件并按正则匹配新行
type LogCollector struct {
	host    string
	targets []logTarget
	log     *zap.Logger

	mu        sync.Mutex
	positions map[string]int64
}

// NewLogCollector compiles every pattern case-insensitively.
func NewLogCollector(cfg config.LogMonitorConfig, host string, log *zap.Logger) (*LogCollector, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &LogCollector{host: host, log: log, positions: make(map[string]int64)}
	for _, f := range cfg.Files {
		t := logTarget{path: f.Path, tailLines: f.TailLines}
		if t.tailLines <= 0 {
			t.tailLines = 200
		}
		for _, p := range f.Patterns {
			re, err := regexp.Compile("(?i)" + p.Regex)
			if err != nil {
				return nil, fmt.Errorf("log %s: bad pattern %q: %w", f.Path, p.Regex, err)
			}
			sev := model.SeverityWarning
			if p.Severity != "" {
				if sev, err = model.ParseSeverity(p.Severity); err != nil {
					return nil, fmt.Errorf("log %s: %w", f.Path, err)
				}
			}
			t.rules = append(t.rules, logRule{raw: p.Regex, re: re, severity: sev, alert: p.Raises()})
		}
		c.targets = append(c.targets, t)
	}
	return c, nil
}

func (c *LogCollector) Name() string { return "logs" }

func (c *LogCollector) Collect(ctx context.Context) ([]model.Metric, []model.Alert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		metrics []model.Metric
		alerts  []model.Alert
	)
	for _, t := range c.targets {
		if err := ctx.Err(); err != nil {
			return metrics, alerts, err
		}
		lines, err := c.readNew(t)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
				c.log.Warn("read log failed", zap.String("path", t.path), zap.Error(err))
			}
			continue
		}
		if len(lines) == 0 {
			continue
		}
		m, a := c.match(t, lines)
		metrics = append(metrics, m...)
		alerts = append(alerts, a...)
	}
	return metrics, alerts, nil
}

func (c *LogCollector) match(t logTarget, lines []string) ([]model.Metric, []model.Alert) {
	var (
		metrics []model.Metric
		alerts  []model.Alert
		base    = filepath.Base(t.path)
		tags    = baseTags(c.host, "logfile", base)
	)
	for _, r := range t.rules {
		count := 0
		for _, line := range lines {
			if !r.re.MatchString(line) {
				continue
			}
			count++
			if r.alert {
				alerts = append(alerts, model.NewAlert(
					fmt.Sprintf("log_%s_%s", base, cut(r.raw, 20)),
					fmt.Sprintf("Pattern '%s' in %s: %s", r.raw, t.path, cut(strings.TrimSpace(line), 200)),
					r.severity, SourceLogs, withTags(tags, "pattern", cut(r.raw, 50))))
			}
		}
		if count > 0 {
			metrics = append(metrics, model.NewMetric("log.matches", map[string]any{"count": count},
				withTags(tags, "pattern", cut(r.raw, 50))))
		}
	}
	return metrics, alerts
}

// readNew returns the complete lines appended since the last read. The first
// read returns only the trailing tailLines lines. A shrunken file starts over.
func (c *LogCollector) readNew(t logTarget) ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	eof := st.Size()

	last, seen := c.positions[t.path]
	if !seen {
		start := eof - firstReadWindow
		if start < 0 {
			start = 0
		}
		data, err := readRange(f, start, eof)
		if err != nil {
			return nil, err
		}
		data = completeLines(data)
		c.positions[t.path] = start + int64(len(data))
		if start > 0 {
			// 窗口起点可能落在行中间
			if i := bytes.IndexByte(data, '\n'); i >= 0 {
				data = data[i+1:]
			}
		}
		lines := splitLines(data)
		if len(lines) > t.tailLines {
			lines = lines[len(lines)-t.tailLines:]
		}
		return lines, nil
	}

	if eof < last {
		c.log.Info("log truncated, reading from start", zap.String("path", t.path))
		last = 0
	}
	data, err := readRange(f, last, eof)
	if err != nil {
		return nil, err
	}
	data = completeLines(data)
	c.positions[t.path] = last + int64(len(data))
	return splitLines(data), nil
}

// completeLines drops a trailing line that has no newline yet so it is read
// whole on a later cycle. A pending tail longer than firstReadWindow is
// returned as is.
func completeLines(data []byte) []byte {
	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		return data[:i+1]
	}
	if len(data) >= firstReadWindow {
		return data
	}
	return nil
}

func readRange(f *os.File, from, to int64) ([]byte, error) {
	if to <= from {
		return nil, nil
	}
	buf := make([]byte, to-from)
	n, err := f.ReadAt(buf, from)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func splitLines(data []byte) []string {
	text := strings.ToValidUTF8(string(data), "�")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
