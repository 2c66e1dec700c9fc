// Package alert implements the alert lifecycle: fire, suppress within the
// cooldown window, and auto-resolve once a checked condition stops reporting.
package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/alerter"
	"github.com/lurkkit/agent/pkg/metrics"
	"github.com/lurkkit/agent/pkg/model"
)

const (
	DefaultCooldown = 300 * time.Second
	dispatchTimeout = 10 * time.Second
)

// Manager deduplicates alerts and routes them to alerters. It is safe for
// concurrent use; every Process call runs under one lock, dispatch included.
type Manager struct {
	paging    []alerter.Alerter
	nonPaging []alerter.Alerter

	pagingSeverities map[model.Severity]bool
	cooldown         time.Duration
	sendResolve      bool

	clock   func() time.Time
	log     *zap.Logger
	metrics *metrics.AgentMetrics

	mu        sync.Mutex
	lastFired map[string]time.Time
	firing    map[string]model.Alert
}

type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithMetrics(am *metrics.AgentMetrics) Option {
	return func(m *Manager) { m.metrics = am }
}

// WithCooldown sets the suppression window; zero means every occurrence fires.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) { m.cooldown = d }
}

func WithSendResolve(v bool) Option {
	return func(m *Manager) { m.sendResolve = v }
}

// WithPagingSeverities replaces the default {critical}.
func WithPagingSeverities(sevs ...model.Severity) Option {
	return func(m *Manager) {
		m.pagingSeverities = make(map[model.Severity]bool, len(sevs))
		for _, s := range sevs {
			m.pagingSeverities[s] = true
		}
	}
}

// NewManager 创建告警管理器
func NewManager(groups alerter.Groups, opts ...Option) *Manager {
	m := &Manager{
		paging:           groups.Paging,
		nonPaging:        groups.NonPaging,
		pagingSeverities: map[model.Severity]bool{model.SeverityCritical: true},
		cooldown:         DefaultCooldown,
		sendResolve:      true,
		clock:            time.Now,
		log:              zap.NewNop(),
		lastFired:        make(map[string]time.Time),
		firing:           make(map[string]model.Alert),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Process fires or suppresses each new alert, then resolves every firing id
// that was checked this cycle but not reported again.
func (m *Manager) Process(newAlerts []model.Alert, checkedIDs model.IDSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	newIDs := make(model.IDSet, len(newAlerts))
	for _, a := range newAlerts {
		newIDs.Add(a.ID())
	}

	for _, a := range newAlerts {
		id := a.ID()
		last, fired := m.lastFired[id]
		if fired && now.Sub(last) < m.cooldown {
			m.log.Debug("alert suppressed (cooldown)", zap.String("id", id),
				zap.Duration("remaining", m.cooldown-now.Sub(last)))
			m.metrics.AlertSuppressed()
			continue
		}
		m.lastFired[id] = now
		m.firing[id] = a
		m.dispatch(a)
		m.metrics.AlertDispatched("fired")
		m.log.Warn(a.String(), zap.String("id", id), zap.String("severity", string(a.Severity)))
	}

	if m.sendResolve {
		for _, id := range m.resolvable(checkedIDs, newIDs) {
			last := m.firing[id]
			delete(m.firing, id)
			delete(m.lastFired, id)

			resolved := model.NewAlert(last.Name, fmt.Sprintf("Alert '%s' resolved", id),
				model.SeverityInfo, last.Source, last.Tags)
			resolved.Resolved = true
			m.dispatch(resolved)
			m.metrics.AlertDispatched("resolved")
			m.log.Info("[RESOLVED] "+id, zap.String("id", id))
		}
	}
	m.metrics.SetFiring(len(m.firing))
}

// resolvable returns (firing ∩ checked) − new in sorted order.
func (m *Manager) resolvable(checked, newIDs model.IDSet) []string {
	var out []string
	for id := range checked {
		if _, ok := m.firing[id]; ok && !newIDs.Has(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Manager) dispatch(a model.Alert) {
	if a.Resolved || m.pagingSeverities[a.Severity] {
		for _, al := range m.paging {
			m.send(al, a)
		}
	}
	for _, al := range m.nonPaging {
		m.send(al, a)
	}
}

// send isolates one delivery: errors and panics are logged and counted.
func (m *Manager) send(al alerter.Alerter, a model.Alert) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("alerter panicked", zap.String("alerter", al.Name()),
				zap.String("id", a.ID()), zap.Any("panic", r))
			m.metrics.AlerterFailed(al.Name())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := al.Send(ctx, a); err != nil {
		m.log.Error("alerter failed", zap.String("alerter", al.Name()),
			zap.String("id", a.ID()), zap.Error(err))
		m.metrics.AlerterFailed(al.Name())
	}
}

// FiringCount returns the number of ids currently firing.
func (m *Manager) FiringCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.firing)
}

func (m *Manager) IsFiring(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.firing[id]
	return ok
}

// Firing returns a sorted snapshot of the firing ids.
func (m *Manager) Firing() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.firing))
	for id := range m.firing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
