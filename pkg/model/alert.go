package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Severity 告警级别
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// Rank orders severities: info < warning < critical. Unknown values rank as info.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// ParseSeverity converts a case-insensitive name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q (valid: info/warning/critical)", s)
	}
	return sev, nil
}

// Alert is one named condition raised by a collector. Alerts sharing an ID are
// the same logical condition regardless of their message.
type Alert struct {
	Name      string
	Message   string
	Severity  Severity
	Source    string
	Tags      map[string]string
	Resolved  bool
	Timestamp time.Time
}

// NewAlert builds an unresolved alert stamped with the current time.
func NewAlert(name, message string, severity Severity, source string, tags map[string]string) Alert {
	return Alert{
		Name:      name,
		Message:   message,
		Severity:  severity,
		Source:    source,
		Tags:      tags,
		Timestamp: time.Now().UTC(),
	}
}

// ID is the dedup and resolve key: source + ":" + name.
func (a Alert) ID() string {
	return a.Source + ":" + a.Name
}

// Critical reports whether the alert carries critical severity.
func (a Alert) Critical() bool {
	return a.Severity == SeverityCritical
}

// Pageable reports whether the alert should wake someone up.
func (a Alert) Pageable() bool {
	return a.Critical() && !a.Resolved
}

// Tag returns the tag value or def when absent.
func (a Alert) Tag(key, def string) string {
	if v, ok := a.Tags[key]; ok && v != "" {
		return v
	}
	return def
}

func (a Alert) String() string {
	state := strings.ToUpper(string(a.Severity))
	if a.Resolved {
		state = "RESOLVED"
	}
	return fmt.Sprintf("[%s] %s: %s", state, a.Name, a.Message)
}

// SplitID is the inverse of Alert.ID: it splits at the first ":".
func SplitID(id string) (source, name string) {
	source, name, found := strings.Cut(id, ":")
	if !found {
		return "", id
	}
	return source, name
}

// IDSet is a set of alert ids.
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(id string) { s[id] = struct{}{} }

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy.
func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
