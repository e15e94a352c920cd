// Package alerting implements the Alert Manager (C9): deduplicates
// alerts by alert_id, gates notification dispatch by severity
// threshold, and owns the active-alert set's acknowledge/resolve
// lifecycle, grounded on the original AlertManager.
package alerting

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/warehouseops/pipeline/internal/events"
)

// Channel is a notification channel the manager fans out to.
type Channel interface {
	Name() string
	Notify(ctx context.Context, alert events.Alert) error
}

// Config tunes the manager.
type Config struct {
	MinNotificationSeverity events.Severity
}

func (c *Config) setDefaults() {
	if c.MinNotificationSeverity == "" {
		c.MinNotificationSeverity = events.SeverityWarning
	}
}

// Manager owns the active-alert set and dispatches to channels.
type Manager struct {
	cfg      Config
	log      *slog.Logger
	channels []Channel
	rules    []Rule

	mu     sync.RWMutex
	active map[string]events.Alert
}

// New builds a Manager over the given channels and rules.
func New(log *slog.Logger, cfg Config, channels []Channel, rules []Rule) *Manager {
	cfg.setDefaults()
	return &Manager{
		cfg:      cfg,
		log:      log,
		channels: channels,
		rules:    rules,
		active:   make(map[string]events.Alert),
	}
}

// Create inserts a new alert, or returns the existing one unchanged
// (without re-notifying) if alertID is already active — the
// dedup-on-create behavior named in §4.9.
func (m *Manager) Create(ctx context.Context, alertID, title, description string, severity events.Severity, source string, metadata map[string]any) events.Alert {
	m.mu.Lock()
	if existing, ok := m.active[alertID]; ok && existing.Status == events.AlertStatusActive {
		m.mu.Unlock()
		m.log.InfoContext(ctx, "alert already active, skipping", "alert_id", alertID)
		return existing
	}

	alert := events.Alert{
		AlertID:     alertID,
		Title:       title,
		Description: description,
		Severity:    severity,
		Source:      source,
		Timestamp:   time.Now().UTC(),
		Metadata:    metadata,
		Status:      events.AlertStatusActive,
	}
	m.active[alertID] = alert
	m.mu.Unlock()

	m.log.InfoContext(ctx, "alert created", "alert_id", alertID, "severity", severity, "source", source)

	if severity.AtLeast(m.cfg.MinNotificationSeverity) {
		m.notifyAll(ctx, alert)
	} else {
		m.log.DebugContext(ctx, "alert severity below notification threshold", "alert_id", alertID, "severity", severity)
	}

	return alert
}

// Acknowledge marks alertID as acknowledged by user. Returns false if
// alertID is not active.
func (m *Manager) Acknowledge(alertID, user string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.active[alertID]
	if !ok {
		return false
	}
	now := time.Now().UTC()
	alert.Status = events.AlertStatusAcknowledged
	alert.AcknowledgedBy = user
	alert.AcknowledgedAt = &now
	m.active[alertID] = alert
	return true
}

// Resolve marks alertID resolved and removes it from the active set.
func (m *Manager) Resolve(alertID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[alertID]; !ok {
		return false
	}
	delete(m.active, alertID)
	return true
}

// ListActive returns active alerts, optionally filtered by severity,
// sorted critical-first then ascending timestamp.
func (m *Manager) ListActive(severity events.Severity) []events.Alert {
	m.mu.RLock()
	alerts := make([]events.Alert, 0, len(m.active))
	for _, a := range m.active {
		if severity != "" && a.Severity != severity {
			continue
		}
		alerts = append(alerts, a)
	}
	m.mu.RUnlock()

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
		}
		return alerts[i].Timestamp.Before(alerts[j].Timestamp)
	})
	return alerts
}

// Get returns a single active alert by ID.
func (m *Manager) Get(alertID string) (events.Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.active[alertID]
	return a, ok
}

func (m *Manager) notifyAll(ctx context.Context, alert events.Alert) {
	if len(m.channels) == 0 {
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for _, ch := range m.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Notify(ctx, alert); err != nil {
				m.log.ErrorContext(ctx, "failed to send alert notification", "channel", ch.Name(), "alert_id", alert.AlertID, "error", err)
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	m.log.InfoContext(ctx, "notifications sent", "alert_id", alert.AlertID, "successful", successes, "total", len(m.channels))
}
