// Package model holds the values that flow between collectors, the alert
// manager and telemetry sinks, together with their wire encodings.
package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Metric is one immutable time-series sample.
type Metric struct {
	Measurement string
	Fields      map[string]any
	Tags        map[string]string
	Timestamp   time.Time
}

// NewMetric builds a metric stamped with the current time.
func NewMetric(measurement string, fields map[string]any, tags map[string]string) Metric {
	return Metric{
		Measurement: measurement,
		Fields:      fields,
		Tags:        tags,
		Timestamp:   time.Now(),
	}
}

var (
	measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `)
	tagEscaper         = strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)
	stringFieldEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
)

// LineProtocol renders the metric as
// measurement[,tag=val...] field=val[,field=val...] timestamp_ns
// with tags and fields sorted by key. NaN and infinite fields are left out;
// a metric with no field left renders as "".
func (m Metric) LineProtocol() string {
	var b strings.Builder
	b.WriteString(measurementEscaper.Replace(m.Measurement))
	for _, k := range sortedKeys(m.Tags) {
		b.WriteByte(',')
		b.WriteString(tagEscaper.Replace(k))
		b.WriteByte('=')
		b.WriteString(tagEscaper.Replace(m.Tags[k]))
	}
	b.WriteByte(' ')
	written := 0
	for _, k := range sortedKeys(m.Fields) {
		v := m.Fields[k]
		if !finite(v) {
			continue
		}
		if written > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tagEscaper.Replace(k))
		b.WriteByte('=')
		b.WriteString(formatLineValue(v))
		written++
	}
	if written == 0 {
		return ""
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(m.Timestamp.UnixNano(), 10))
	return b.String()
}

// Statsd renders one gauge line per numeric field: measurement.field:value|g.
// Bools become 1/0. String and non-finite fields are skipped.
func (m Metric) Statsd() []string {
	out := make([]string, 0, len(m.Fields))
	for _, k := range sortedKeys(m.Fields) {
		v, ok := formatStatsdValue(m.Fields[k])
		if !ok || !finite(m.Fields[k]) {
			continue
		}
		out = append(out, fmt.Sprintf("%s.%s:%s|g", m.Measurement, k, v))
	}
	return out
}

// Float returns a numeric view of a field value. Strings are not numeric.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func finite(v any) bool {
	switch x := v.(type) {
	case float32:
		return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
	case float64:
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	}
	return true
}

func formatLineValue(v any) string {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.FormatInt(int64(x), 10) + "i"
	case int32:
		return strconv.FormatInt(int64(x), 10) + "i"
	case int64:
		return strconv.FormatInt(x, 10) + "i"
	case uint:
		return strconv.FormatUint(uint64(x), 10) + "i"
	case uint32:
		return strconv.FormatUint(uint64(x), 10) + "i"
	case uint64:
		return strconv.FormatUint(x, 10) + "i"
	case float32:
		return strconv.FormatFloat(float64(x), 'f', 4, 64)
	case float64:
		return strconv.FormatFloat(x, 'f', 4, 64)
	case string:
		return `"` + stringFieldEscaper.Replace(x) + `"`
	default:
		return `"` + stringFieldEscaper.Replace(fmt.Sprint(x)) + `"`
	}
}

func formatStatsdValue(v any) (string, bool) {
	switch x := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 64), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case string:
		return "", false
	}
	f, ok := Float(v)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
