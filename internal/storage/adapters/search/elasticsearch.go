// Package search implements the search-index Storage Adapter (C8) over
// Elasticsearch, grounded on the original ElasticsearchAdapter.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/warehouseops/pipeline/pkg/errors"
)

// Config configures the Elasticsearch adapter.
type Config struct {
	URL          string `env:"ELASTICSEARCH_URL" env-default:"http://localhost:9200"`
	Username     string `env:"ELASTICSEARCH_USERNAME"`
	Password     string `env:"ELASTICSEARCH_PASSWORD"`
	DefaultIndex string `env:"ELASTICSEARCH_DEFAULT_INDEX" env-default:"warehouse-logs"`
}

// indexPatterns routes records to one of three indices by data shape,
// matching _get_index_name.
var indexPatterns = map[string]string{
	"logs":   "warehouse-logs",
	"alerts": "warehouse-alerts",
	"audit":  "warehouse-audit",
}

// Adapter is the search-index storage adapter (§4.8).
type Adapter struct {
	cfg    Config
	client *elasticsearch.Client
}

// New returns an unconnected Adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		cfg.URL = "http://localhost:9200"
	}
	if cfg.DefaultIndex == "" {
		cfg.DefaultIndex = "warehouse-logs"
	}
	return &Adapter{cfg: cfg}, nil
}

func (a *Adapter) Connect(ctx context.Context) error {
	esCfg := elasticsearch.Config{Addresses: []string{a.cfg.URL}}
	if a.cfg.Username != "" && a.cfg.Password != "" {
		esCfg.Username = a.cfg.Username
		esCfg.Password = a.cfg.Password
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return errors.Internal("failed to create elasticsearch client", err)
	}

	status, err := clusterStatus(ctx, client)
	if err != nil {
		return errors.Wrap(err, "elasticsearch connection failed")
	}
	if status == "red" {
		return errors.Internal("elasticsearch cluster status is red", nil)
	}

	a.client = client
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.client = nil
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if a.client == nil {
		return false
	}
	status, err := clusterStatus(ctx, a.client)
	if err != nil {
		return false
	}
	return status == "green" || status == "yellow"
}

func (a *Adapter) Store(ctx context.Context, record map[string]any) error {
	return a.BatchStore(ctx, []map[string]any{record})
}

// BatchStore bulk-indexes every record without waiting for refresh;
// per-document indexing errors are logged but do not fail the whole
// batch: the call succeeds once the HTTP bulk request itself succeeded,
// matching the original's "errors reported, not raised" contract.
func (a *Adapter) BatchStore(ctx context.Context, records []map[string]any) error {
	if a.client == nil {
		return errors.Internal("not connected to elasticsearch", nil)
	}
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, r := range records {
		doc := prepareDocument(r)
		meta := map[string]any{
			"index": map[string]any{
				"_index": indexName(a.cfg, r),
				"_id":    docID(r),
			},
		}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return errors.Internal("failed to encode bulk action", err)
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return errors.Internal("failed to encode document", err)
		}
	}

	req := esapi.BulkRequest{Body: &buf, Refresh: "false"}
	res, err := req.Do(ctx, a.client)
	if err != nil {
		return errors.Wrap(err, "elasticsearch bulk write failed")
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Internal(fmt.Sprintf("elasticsearch bulk request failed: %s", res.Status()), nil)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Error *struct {
				Reason string `json:"reason"`
			} `json:"error,omitempty"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return errors.Internal("failed to decode bulk response", err)
	}
	if bulkResp.Errors {
		var failed int
		for _, item := range bulkResp.Items {
			if action, ok := item["index"]; ok && action.Error != nil {
				failed++
			}
		}
		if failed > 0 {
			slog.WarnContext(ctx, "elasticsearch bulk indexing had document errors", "failed", failed, "total", len(records))
		}
	}
	return nil
}

func clusterStatus(ctx context.Context, client *elasticsearch.Client) (string, error) {
	req := esapi.ClusterHealthRequest{}
	res, err := req.Do(ctx, client)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.IsError() {
		return "", fmt.Errorf("cluster health request failed: %s", res.Status())
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Status, nil
}

// stringFields are coerced to string for keyword mapping.
var stringFields = []string{
	"level", "logger", "topic", "action", "location_id",
	"user_id", "correlation_id", "source", "warehouse_zone",
	"item_category", "alert_type", "severity",
}

// numericFields are coerced to int/float when they arrive as strings.
var numericFields = []string{
	"partition", "offset", "quantity", "processing_time_ms",
	"anomaly_score", "confidence_score",
}

// prepareDocument mirrors _prepare_document: stamps @timestamp,
// normalizes the timestamp field to ISO-8601, strips nil/empty
// values, and coerces the keyword/numeric field allow-lists.
func prepareDocument(record map[string]any) map[string]any {
	doc := make(map[string]any, len(record)+1)
	for k, v := range record {
		doc[k] = v
	}

	if _, ok := doc["@timestamp"]; !ok {
		doc["@timestamp"] = resolveTimestamp(doc["timestamp"])
	}
	if ts, ok := doc["timestamp"]; ok {
		if _, isString := ts.(string); !isString {
			doc["timestamp"] = resolveTimestamp(ts)
		}
	}

	for k, v := range doc {
		if v == nil || v == "" {
			delete(doc, k)
		}
	}

	for _, f := range stringFields {
		if v, ok := doc[f]; ok {
			doc[f] = fmt.Sprintf("%v", v)
		}
	}
	for _, f := range numericFields {
		if v, ok := doc[f]; ok {
			if s, isString := v.(string); isString {
				if n, err := strconv.ParseFloat(s, 64); err == nil {
					doc[f] = n
				}
			}
		}
	}

	return doc
}

func resolveTimestamp(v any) string {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC().Format(time.RFC3339Nano)
		}
		return time.Now().UTC().Format(time.RFC3339Nano)
	case float64:
		return time.Unix(int64(t), 0).UTC().Format(time.RFC3339Nano)
	case int64:
		return time.Unix(t, 0).UTC().Format(time.RFC3339Nano)
	default:
		return time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// indexName routes a record to warehouse-alerts, warehouse-audit, or
// warehouse-logs, matching _get_index_name's precedence.
func indexName(cfg Config, record map[string]any) string {
	eventType := strings.ToLower(asString(record["event_type"]))
	level := strings.ToLower(asString(record["level"]))
	source := strings.ToLower(asString(record["source"]))

	if eventType == "alert" || level == "error" || level == "critical" {
		return indexPatterns["alerts"]
	}
	if _, hasAlert := record["alert"]; hasAlert {
		return indexPatterns["alerts"]
	}
	if eventType == "audit" || strings.Contains(source, "audit") {
		return indexPatterns["audit"]
	}
	return indexPatterns["logs"]
}

func docID(record map[string]any) string {
	if id := asString(record["id"]); id != "" {
		return id
	}
	return asString(record["correlation_id"])
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
