package warehouse

import "testing"

func TestTableName_RoutesByShape(t *testing.T) {
	cases := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"alert event type", map[string]any{"event_type": "inventory.alert"}, tableAlertEvents},
		{"severity present", map[string]any{"severity": "high"}, tableAlertEvents},
		{"metric event type", map[string]any{"event_type": "metric.gauge"}, tablePerformanceMetrics},
		{"metric_name present", map[string]any{"metric_name": "cpu"}, tablePerformanceMetrics},
		{"aggregated data type", map[string]any{"data_type": "Aggregated"}, tableInventoryMetrics},
		{"default raw", map[string]any{"item_id": "sku-1"}, tableRawEvents},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := tableName(c.record); got != c.want {
				t.Fatalf("tableName(%v) = %q, want %q", c.record, got, c.want)
			}
		})
	}
}

func TestFormatDatetime_ParsesRFC3339(t *testing.T) {
	got := formatDatetime("2024-01-15T10:30:00Z")
	if got != "2024-01-15 10:30:00.000" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatDatetime_FallsBackToNowOnUnparsable(t *testing.T) {
	got := formatDatetime("not-a-timestamp")
	if got == "" {
		t.Fatalf("expected a non-empty fallback timestamp")
	}
}

func TestToFloatAndToInt_CoerceNumericTypes(t *testing.T) {
	if toFloat(3) != 3.0 {
		t.Fatalf("expected int to coerce to float64")
	}
	if toInt(3.9) != 3 {
		t.Fatalf("expected float64 to truncate to int64")
	}
	if toIntDefault(nil, 5) != 5 {
		t.Fatalf("expected nil to use default")
	}
}

func TestFirstStringAndDefaultString(t *testing.T) {
	r := map[string]any{"b": "present"}
	if got := firstString(r, "a", "b"); got != "present" {
		t.Fatalf("got %q", got)
	}
	if got := defaultString(r, "missing", "fallback"); got != "fallback" {
		t.Fatalf("got %q", got)
	}
}
