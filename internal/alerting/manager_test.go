package alerting

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warehouseops/pipeline/internal/events"
)

type countingChannel struct {
	name  string
	calls int64
	err   error
}

func (c *countingChannel) Name() string { return c.name }
func (c *countingChannel) Notify(ctx context.Context, alert events.Alert) error {
	atomic.AddInt64(&c.calls, 1)
	return c.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_CreateDedupesByAlertID(t *testing.T) {
	ch := &countingChannel{name: "test"}
	m := New(testLogger(), Config{}, []Channel{ch}, nil)

	first := m.Create(context.Background(), "a1", "title", "desc", events.SeverityError, "src", nil)
	second := m.Create(context.Background(), "a1", "title", "desc", events.SeverityError, "src", nil)

	require.Equal(t, first.AlertID, second.AlertID)
	require.Equal(t, int64(1), atomic.LoadInt64(&ch.calls))
}

func TestManager_CreateGatesNotificationsBySeverity(t *testing.T) {
	ch := &countingChannel{name: "test"}
	m := New(testLogger(), Config{MinNotificationSeverity: events.SeverityWarning}, []Channel{ch}, nil)

	m.Create(context.Background(), "info-1", "t", "d", events.SeverityInfo, "src", nil)
	require.Equal(t, int64(0), atomic.LoadInt64(&ch.calls))

	m.Create(context.Background(), "err-1", "t", "d", events.SeverityError, "src", nil)
	require.Equal(t, int64(1), atomic.LoadInt64(&ch.calls))
}

func TestManager_AcknowledgeAndResolveLifecycle(t *testing.T) {
	m := New(testLogger(), Config{}, nil, nil)
	m.Create(context.Background(), "a1", "t", "d", events.SeverityCritical, "src", nil)

	require.True(t, m.Acknowledge("a1", "alice"))
	alert, ok := m.Get("a1")
	require.True(t, ok)
	require.Equal(t, events.AlertStatusAcknowledged, alert.Status)
	require.Equal(t, "alice", alert.AcknowledgedBy)

	require.True(t, m.Resolve("a1"))
	_, ok = m.Get("a1")
	require.False(t, ok)

	require.False(t, m.Resolve("missing"))
}

func TestManager_ListActiveSortsBySeverityThenTime(t *testing.T) {
	m := New(testLogger(), Config{}, nil, nil)
	m.Create(context.Background(), "warn-1", "t", "d", events.SeverityWarning, "src", nil)
	m.Create(context.Background(), "crit-1", "t", "d", events.SeverityCritical, "src", nil)
	m.Create(context.Background(), "err-1", "t", "d", events.SeverityError, "src", nil)

	alerts := m.ListActive("")
	require.Len(t, alerts, 3)
	require.Equal(t, events.SeverityCritical, alerts[0].Severity)
	require.Equal(t, events.SeverityError, alerts[1].Severity)
	require.Equal(t, events.SeverityWarning, alerts[2].Severity)
}

func TestEvaluateRule_AnyOfFiresOnFirstMatch(t *testing.T) {
	rule := Rule{
		Name:      "high-quantity",
		MatchMode: AnyOf,
		Conditions: []Condition{
			{Field: "quantity", Operator: OpGreaterThan, Value: 100.0},
			{Field: "never_present", Operator: OpEquals, Value: "x"},
		},
	}
	require.True(t, evaluateRule(rule, map[string]any{"quantity": 150.0}))
	require.False(t, evaluateRule(rule, map[string]any{"quantity": 10.0}))
}

func TestEvaluateRule_AllOfRequiresEveryCondition(t *testing.T) {
	rule := Rule{
		Name:      "zone-and-quantity",
		MatchMode: AllOf,
		Conditions: []Condition{
			{Field: "quantity", Operator: OpGreaterThan, Value: 100.0},
			{Field: "zone", Operator: OpEquals, Value: "A1"},
		},
	}
	require.True(t, evaluateRule(rule, map[string]any{"quantity": 150.0, "zone": "A1"}))
	require.False(t, evaluateRule(rule, map[string]any{"quantity": 150.0, "zone": "B2"}))
}

func TestManager_EvaluateRulesCreatesAlert(t *testing.T) {
	ch := &countingChannel{name: "test"}
	rule := Rule{
		Name:     "overstock",
		Severity: events.SeverityError,
		Conditions: []Condition{
			{Field: "quantity", Operator: OpGreaterThan, Value: 100.0},
		},
	}
	m := New(testLogger(), Config{}, []Channel{ch}, []Rule{rule})

	fired := m.EvaluateRules(context.Background(), map[string]any{
		"quantity":       150.0,
		"correlation_id": "corr-1",
	})

	require.Len(t, fired, 1)
	require.Equal(t, "overstock_corr-1", fired[0].AlertID)
	require.Equal(t, int64(1), atomic.LoadInt64(&ch.calls))
}
