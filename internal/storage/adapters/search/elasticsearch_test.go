package search

import "testing"

func TestPrepareDocument_StampsTimestampAndStripsEmpty(t *testing.T) {
	doc := prepareDocument(map[string]any{
		"message":     "hello",
		"user_id":     "",
		"quantity":    "12",
		"location_id": 7,
	})

	if _, ok := doc["@timestamp"]; !ok {
		t.Fatalf("expected @timestamp to be stamped")
	}
	if _, ok := doc["user_id"]; ok {
		t.Fatalf("expected empty user_id to be stripped")
	}
	if doc["quantity"] != 12.0 {
		t.Fatalf("expected quantity to be coerced to float64, got %v (%T)", doc["quantity"], doc["quantity"])
	}
	if doc["location_id"] != "7" {
		t.Fatalf("expected location_id to be coerced to string, got %v (%T)", doc["location_id"], doc["location_id"])
	}
}

func TestIndexName_RoutesByShape(t *testing.T) {
	cfg := Config{DefaultIndex: "warehouse-logs"}

	cases := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{"alert event type", map[string]any{"event_type": "Alert"}, "warehouse-alerts"},
		{"critical level", map[string]any{"level": "critical"}, "warehouse-alerts"},
		{"alert key present", map[string]any{"alert": map[string]any{"id": 1}}, "warehouse-alerts"},
		{"audit source", map[string]any{"source": "audit-trail"}, "warehouse-audit"},
		{"default logs", map[string]any{"message": "hi"}, "warehouse-logs"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := indexName(cfg, c.record); got != c.want {
				t.Fatalf("indexName(%v) = %q, want %q", c.record, got, c.want)
			}
		})
	}
}

func TestDocID_PrefersID(t *testing.T) {
	if got := docID(map[string]any{"id": "a", "correlation_id": "b"}); got != "a" {
		t.Fatalf("got %q, want a", got)
	}
	if got := docID(map[string]any{"correlation_id": "b"}); got != "b" {
		t.Fatalf("got %q, want b", got)
	}
}
