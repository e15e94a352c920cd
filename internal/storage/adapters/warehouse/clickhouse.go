// Package warehouse implements the columnar/analytics Storage Adapter
// (C8) over ClickHouse, grounded on the original ClickHouseAdapter.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/warehouseops/pipeline/pkg/errors"
)

// Config configures the ClickHouse adapter.
type Config struct {
	Host     string `env:"CLICKHOUSE_HOST" env-default:"localhost"`
	Port     string `env:"CLICKHOUSE_PORT" env-default:"9000"`
	Username string `env:"CLICKHOUSE_USERNAME" env-default:"default"`
	Password string `env:"CLICKHOUSE_PASSWORD"`
	Database string `env:"CLICKHOUSE_DATABASE" env-default:"warehouse_analytics"`
}

// tableMappings are the four tables the adapter knows how to insert
// into, matching the original's table_mappings.
const (
	tableRawEvents          = "raw_events"
	tableInventoryMetrics   = "inventory_metrics"
	tableAlertEvents        = "alert_events"
	tablePerformanceMetrics = "performance_metrics"
)

// Adapter is the columnar storage adapter (§4.8).
type Adapter struct {
	cfg Config
	db  *gorm.DB
}

// New returns an unconnected Adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = "9000"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Database == "" {
		cfg.Database = "warehouse_analytics"
	}
	return &Adapter{cfg: cfg}, nil
}

func (a *Adapter) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%s/%s",
		a.cfg.Username, a.cfg.Password, a.cfg.Host, a.cfg.Port, a.cfg.Database)

	db, err := gorm.Open(clickhouse.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return errors.Wrap(err, "failed to connect to clickhouse")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "clickhouse ping failed")
	}

	a.db = db
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB")
	}
	a.db = nil
	return sqlDB.Close()
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if a.db == nil {
		return false
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (a *Adapter) Store(ctx context.Context, record map[string]any) error {
	return a.BatchStore(ctx, []map[string]any{record})
}

// BatchStore groups records by table (§4.7 uses the same inference as
// the Storage Manager, refined to the four ClickHouse tables the
// original actually populates) and issues one multi-row insert per
// table, mirroring _batch_insert/_insert_*.
func (a *Adapter) BatchStore(ctx context.Context, records []map[string]any) error {
	if a.db == nil {
		return errors.Internal("not connected to clickhouse", nil)
	}
	if len(records) == 0 {
		return nil
	}

	byTable := map[string][]map[string]any{}
	for _, r := range records {
		t := tableName(r)
		byTable[t] = append(byTable[t], r)
	}

	db := a.db.WithContext(ctx)
	for table, group := range byTable {
		var rows []map[string]any
		switch table {
		case tableRawEvents:
			rows = rawEventRows(group)
		case tableAlertEvents:
			rows = alertEventRows(group)
		case tablePerformanceMetrics:
			rows = performanceMetricRows(group)
		case tableInventoryMetrics:
			rows = inventoryMetricRows(group)
		default:
			continue
		}
		if len(rows) == 0 {
			continue
		}
		if err := db.Table(table).Create(&rows).Error; err != nil {
			return errors.Wrap(err, fmt.Sprintf("clickhouse insert into %s failed", table))
		}
	}
	return nil
}

// tableName mirrors _get_table_name.
func tableName(record map[string]any) string {
	eventType := str(record["event_type"])
	if containsFold(eventType, "alert") || record["severity"] != nil {
		return tableAlertEvents
	}
	if containsFold(eventType, "metric") || record["metric_name"] != nil {
		return tablePerformanceMetrics
	}
	if containsFold(str(record["data_type"]), "aggregated") {
		return tableInventoryMetrics
	}
	return tableRawEvents
}

func rawEventRows(records []map[string]any) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		raw, _ := json.Marshal(r)
		rows = append(rows, map[string]any{
			"event_id":             firstString(r, "event_id", "correlation_id"),
			"timestamp":            formatDatetime(r["timestamp"]),
			"event_type":           defaultString(r, "event_type", "unknown"),
			"topic":                str(r["topic"]),
			"partition":            toInt(r["partition"]),
			"offset":               toInt(r["offset"]),
			"source":               str(r["source"]),
			"correlation_id":       str(r["correlation_id"]),
			"user_id":              str(r["user_id"]),
			"session_id":           str(r["session_id"]),
			"item_id":              str(r["item_id"]),
			"action":               str(r["action"]),
			"quantity":             toFloat(r["quantity"]),
			"location_id":          str(r["location_id"]),
			"warehouse_zone":       str(r["warehouse_zone"]),
			"item_category":        str(r["item_category"]),
			"order_id":             str(r["order_id"]),
			"order_status":         str(r["order_status"]),
			"customer_id":          str(r["customer_id"]),
			"order_value":          toFloat(r["order_value"]),
			"shipment_id":          str(r["shipment_id"]),
			"carrier":              str(r["carrier"]),
			"tracking_number":      str(r["tracking_number"]),
			"destination_country":  str(r["destination_country"]),
			"raw_data":             string(raw),
			"processing_timestamp": formatDatetime(time.Now().UTC()),
		})
	}
	return rows
}

func alertEventRows(records []map[string]any) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]any{
			"alert_id":               firstString(r, "alert_id", "correlation_id"),
			"timestamp":              formatDatetime(r["timestamp"]),
			"alert_type":             firstString(r, "alert_type", "event_type"),
			"severity":               defaultString(r, "severity", "info"),
			"source":                 str(r["source"]),
			"title":                  firstString(r, "title", "message"),
			"description":            str(r["description"]),
			"confidence_score":       toFloat(r["confidence_score"]),
			"affected_item_id":       str(r["item_id"]),
			"affected_location":      str(r["location_id"]),
			"warehouse_zone":         str(r["warehouse_zone"]),
			"resolved":               false,
			"assignee":               str(r["assignee"]),
			"source_event_id":        str(r["source_event_id"]),
			"source_correlation_id":  str(r["correlation_id"]),
		})
	}
	return rows
}

func performanceMetricRows(records []map[string]any) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		labels, _ := json.Marshal(r["labels"])
		rows = append(rows, map[string]any{
			"timestamp":     formatDatetime(r["timestamp"]),
			"metric_name":   firstString(r, "metric_name", "name"),
			"metric_type":   defaultString(r, "metric_type", "gauge"),
			"service_name":  firstString(r, "service_name", "source"),
			"value":         toFloat(r["value"]),
			"count":         toIntDefault(r["count"], 1),
			"labels":        string(labels),
			"duration_ms":   toFloat(r["duration_ms"]),
			"status_code":   toInt(r["status_code"]),
			"error_message": str(r["error_message"]),
		})
	}
	return rows
}

// inventoryMetricRows maps aggregation snapshots onto the columns the
// original's get_inventory_summary query reports over; the upstream
// adapter left the insert side unimplemented ("pass"), relying on
// inventory_metrics being populated from a separate aggregation job.
func inventoryMetricRows(records []map[string]any) []map[string]any {
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]any{
			"date":               formatDate(r["timestamp"]),
			"warehouse_zone":     str(r["warehouse_zone"]),
			"item_category":      str(r["item_category"]),
			"total_transactions": toInt(r["total_transactions"]),
			"inbound_quantity":   toFloat(r["inbound_quantity"]),
			"outbound_quantity":  toFloat(r["outbound_quantity"]),
			"success_rate":       toFloat(r["success_rate"]),
			"anomaly_count":      toInt(r["anomaly_count"]),
		})
	}
	return rows
}

func containsFold(s, substr string) bool {
	if s == "" || substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func defaultString(r map[string]any, key, def string) string {
	if v := str(r[key]); v != "" {
		return v
	}
	return def
}

func firstString(r map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := str(r[k]); v != "" {
			return v
		}
	}
	return ""
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

func toIntDefault(v any, def int64) int64 {
	if v == nil {
		return def
	}
	return toInt(v)
}

// formatDatetime renders a millisecond-precision timestamp the way
// _format_datetime does, defaulting to "now" when the field is absent
// or unparsable.
func formatDatetime(v any) string {
	t, ok := parseAny(v)
	if !ok {
		return time.Now().UTC().Format("2006-01-02 15:04:05.000")
	}
	return t.Format("2006-01-02 15:04:05.000")
}

func formatDate(v any) string {
	t, ok := parseAny(v)
	if !ok {
		t = time.Now().UTC()
	}
	return t.Format("2006-01-02")
}

func parseAny(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC(), true
		}
		return time.Time{}, false
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case time.Time:
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}
