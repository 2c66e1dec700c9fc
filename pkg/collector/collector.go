// Package collector implements the polling units that sample host state and
// emit metrics plus any alerts the current sample violates.
package collector

import (
	"context"

	"github.com/lurkkit/agent/pkg/model"
)

// Collector 采集器核心接口（所有采集器必须实现）
// Expected environmental absence (a missing file, a vanished process, a mount
// that cannot be read) yields empty results rather than an error.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]model.Metric, []model.Alert, error)
}

// Alert sources, the prefix of every alert id a collector emits.
const (
	SourceSystem  = "system"
	SourceProcess = "process"
	SourceHTTP    = "http"
	SourceLogs    = "logs"
)

// baseTags returns {"host": host} plus extra key/value pairs.
func baseTags(host string, kv ...string) map[string]string {
	tags := make(map[string]string, 1+len(kv)/2)
	tags["host"] = host
	for i := 0; i+1 < len(kv); i += 2 {
		tags[kv[i]] = kv[i+1]
	}
	return tags
}

// withTags copies tags and adds kv pairs.
func withTags(tags map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(tags)+len(kv)/2)
	for k, v := range tags {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

// thresholdSeverity grades value against warning/critical levels. A zero
// critical level disables escalation.
func thresholdSeverity(value, warn, critical float64) (model.Severity, bool) {
	switch {
	case critical > 0 && value >= critical:
		return model.SeverityCritical, true
	case warn > 0 && value >= warn:
		return model.SeverityWarning, true
	}
	return "", false
}
