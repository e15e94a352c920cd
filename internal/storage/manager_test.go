package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	storeErr error
	stored   int
}

func (f *fakeAdapter) Connect(ctx context.Context) error       { return nil }
func (f *fakeAdapter) Disconnect(ctx context.Context) error    { return nil }
func (f *fakeAdapter) HealthCheck(ctx context.Context) bool    { return f.storeErr == nil }
func (f *fakeAdapter) Store(ctx context.Context, r map[string]any) error {
	f.stored++
	return f.storeErr
}
func (f *fakeAdapter) BatchStore(ctx context.Context, rs []map[string]any) error {
	f.stored += len(rs)
	return f.storeErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInferDataType(t *testing.T) {
	cases := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"metric_name", map[string]any{"metric_name": "cpu"}, "metrics"},
		{"measurement", map[string]any{"measurement": "x"}, "metrics"},
		{"severity", map[string]any{"severity": "high"}, "alerts"},
		{"event_type alert", map[string]any{"event_type": "ALERT_RAISED"}, "alerts"},
		{"aggregated", map[string]any{"data_type": "Aggregated"}, "aggregated"},
		{"performance", map[string]any{"source": "performance-monitor"}, "performance"},
		{"logs level", map[string]any{"level": "info"}, "logs"},
		{"logs message", map[string]any{"message": "hi"}, "logs"},
		{"default", map[string]any{}, "events"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, InferDataType(c.record))
		})
	}
}

func TestManager_StorePartialFailureIsolated(t *testing.T) {
	search := &fakeAdapter{}
	warehouse := &fakeAdapter{storeErr: context.DeadlineExceeded}
	m := New(testLogger(), map[string]Adapter{"search": search, "warehouse": warehouse}, nil)

	results := m.Store(context.Background(), map[string]any{"severity": "high"}, "")

	require.True(t, results["search"])
	require.False(t, results["warehouse"])
	require.Equal(t, 1, search.stored)
	require.Equal(t, 1, warehouse.stored)
}

func TestManager_BatchStoreGroupsByInferredType(t *testing.T) {
	ts := &fakeAdapter{}
	wh := &fakeAdapter{}
	m := New(testLogger(), map[string]Adapter{"timeseries": ts, "warehouse": wh}, nil)

	records := []map[string]any{
		{"metric_name": "cpu"},
		{"metric_name": "mem"},
		{"foo": "bar"},
	}
	results := m.BatchStore(context.Background(), records, "")

	require.True(t, results["timeseries"])
	require.True(t, results["warehouse"])
	require.Equal(t, 2, ts.stored)
	require.Equal(t, 1, wh.stored)
}
