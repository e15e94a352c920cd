// Package storage implements the Storage Manager (C7): routes records
// to the configured Storage Adapters (C8) by inferred or supplied data
// type, fanning out in parallel with independent per-adapter success.
package storage

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Adapter is the common contract every concrete storage backend (C8)
// implements: time-series, search, and warehouse/columnar.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) bool
	Store(ctx context.Context, record map[string]any) error
	BatchStore(ctx context.Context, records []map[string]any) error
}

// defaultRouting is the §4.7 routing table, used when New is given no
// routing map.
var defaultRouting = map[string][]string{
	"metrics":     {"timeseries"},
	"logs":        {"search"},
	"alerts":      {"search", "warehouse"},
	"events":      {"warehouse"},
	"aggregated":  {"warehouse"},
	"performance": {"timeseries", "warehouse"},
}

// Manager owns a named set of Adapters and routes records to them.
type Manager struct {
	log     *slog.Logger
	mu      sync.RWMutex
	adapters map[string]Adapter
	routing  map[string][]string
}

// New builds a Manager over the given named adapters (name -> e.g.
// "timeseries", "search", "warehouse"). A nil/empty routing map uses
// the §4.7 defaults.
func New(log *slog.Logger, adapters map[string]Adapter, routing map[string][]string) *Manager {
	if len(routing) == 0 {
		routing = defaultRouting
	}
	return &Manager{log: log, adapters: adapters, routing: routing}
}

// ConnectAll connects every configured adapter, returning per-adapter
// success; one adapter failing to connect does not block the others.
func (m *Manager) ConnectAll(ctx context.Context) map[string]bool {
	return m.fanOutBool(ctx, func(ctx context.Context, a Adapter) error { return a.Connect(ctx) })
}

// DisconnectAll disconnects every adapter, best-effort.
func (m *Manager) DisconnectAll(ctx context.Context) {
	var wg sync.WaitGroup
	for name, a := range m.snapshot() {
		wg.Add(1)
		go func(name string, a Adapter) {
			defer wg.Done()
			if err := a.Disconnect(ctx); err != nil {
				m.log.WarnContext(ctx, "adapter disconnect failed", "adapter", name, "error", err)
			}
		}(name, a)
	}
	wg.Wait()
}

// HealthCheckAll probes every adapter concurrently.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]bool {
	results := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, a := range m.snapshot() {
		wg.Add(1)
		go func(name string, a Adapter) {
			defer wg.Done()
			ok := a.HealthCheck(ctx)
			mu.Lock()
			results[name] = ok
			mu.Unlock()
		}(name, a)
	}
	wg.Wait()
	return results
}

// Store routes one record to the adapters for dataType (inferred from
// record when empty), storing to each in parallel and returning
// per-adapter success.
func (m *Manager) Store(ctx context.Context, record map[string]any, dataType string) map[string]bool {
	if dataType == "" {
		dataType = InferDataType(record)
	}

	targets := m.targetAdapters(dataType)
	if len(targets) == 0 {
		m.log.WarnContext(ctx, "no storage adapters configured for data type", "data_type", dataType)
		return map[string]bool{}
	}

	results := make(map[string]bool, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range targets {
		a, ok := m.adapter(name)
		if !ok {
			results[name] = false
			continue
		}
		wg.Add(1)
		go func(name string, a Adapter) {
			defer wg.Done()
			err := a.Store(ctx, record)
			mu.Lock()
			results[name] = err == nil
			mu.Unlock()
			if err != nil {
				m.log.ErrorContext(ctx, "adapter store failed", "adapter", name, "error", err)
			}
		}(name, a)
	}
	wg.Wait()
	return results
}

// BatchStore groups records by inferred type when dataType is empty,
// then dispatches one batch per (type, adapter).
func (m *Manager) BatchStore(ctx context.Context, records []map[string]any, dataType string) map[string]bool {
	if len(records) == 0 {
		return map[string]bool{}
	}

	groups := map[string][]map[string]any{}
	if dataType != "" {
		groups[dataType] = records
	} else {
		for _, r := range records {
			t := InferDataType(r)
			groups[t] = append(groups[t], r)
		}
	}

	// adapter -> all-succeeded-so-far across every group it appeared in.
	overall := map[string]bool{}
	seen := map[string]bool{}
	for groupType, groupRecords := range groups {
		for name, ok := range m.batchStoreGroup(ctx, groupType, groupRecords) {
			if !seen[name] {
				overall[name] = ok
				seen[name] = true
			} else {
				overall[name] = overall[name] && ok
			}
		}
	}
	return overall
}

func (m *Manager) batchStoreGroup(ctx context.Context, dataType string, records []map[string]any) map[string]bool {
	targets := m.targetAdapters(dataType)
	if len(targets) == 0 {
		return map[string]bool{}
	}

	results := make(map[string]bool, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range targets {
		a, ok := m.adapter(name)
		if !ok {
			results[name] = false
			continue
		}
		wg.Add(1)
		go func(name string, a Adapter) {
			defer wg.Done()
			err := a.BatchStore(ctx, records)
			mu.Lock()
			results[name] = err == nil
			mu.Unlock()
			if err != nil {
				m.log.ErrorContext(ctx, "adapter batch store failed", "adapter", name, "count", len(records), "error", err)
			}
		}(name, a)
	}
	wg.Wait()
	return results
}

func (m *Manager) targetAdapters(dataType string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.routing[dataType]; ok {
		return t
	}
	return []string{"warehouse"}
}

func (m *Manager) adapter(name string) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[name]
	return a, ok
}

func (m *Manager) snapshot() map[string]Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Adapter, len(m.adapters))
	for k, v := range m.adapters {
		out[k] = v
	}
	return out
}

func (m *Manager) fanOutBool(ctx context.Context, op func(context.Context, Adapter) error) map[string]bool {
	results := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, a := range m.snapshot() {
		wg.Add(1)
		go func(name string, a Adapter) {
			defer wg.Done()
			err := op(ctx, a)
			mu.Lock()
			results[name] = err == nil
			mu.Unlock()
			if err != nil {
				m.log.ErrorContext(ctx, "adapter operation failed", "adapter", name, "error", err)
			}
		}(name, a)
	}
	wg.Wait()
	return results
}

// InferDataType implements §4.7's inference order, with the "alerts
// before performance" tie-break decided per §9.
func InferDataType(record map[string]any) string {
	if has(record, "metric_name") || has(record, "measurement") {
		return "metrics"
	}
	if containsFold(record, "event_type", "alert") || has(record, "severity") {
		return "alerts"
	}
	if containsFold(record, "data_type", "aggregated") {
		return "aggregated"
	}
	if containsFold(record, "source", "performance") {
		return "performance"
	}
	if has(record, "level") || has(record, "message") {
		return "logs"
	}
	return "events"
}

func has(record map[string]any, key string) bool {
	v, ok := record[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func containsFold(record map[string]any, key, substr string) bool {
	v, ok := record[key].(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(v), substr)
}
