// Package timeseries implements the time-series Storage Adapter (C8)
// over InfluxDB, grounded on the original InfluxDBAdapter.
package timeseries

import (
	"context"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/warehouseops/pipeline/pkg/errors"
)

// Config configures the InfluxDB adapter.
type Config struct {
	URL    string `env:"INFLUXDB_URL" env-default:"http://localhost:8086"`
	Token  string `env:"INFLUXDB_TOKEN" validate:"required"`
	Org    string `env:"INFLUXDB_ORG" env-default:"warehouse"`
	Bucket string `env:"INFLUXDB_BUCKET" env-default:"warehouse_metrics"`
}

// Adapter is the time-series storage adapter (§4.8).
type Adapter struct {
	cfg    Config
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// New validates the required token and returns an unconnected Adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, errors.InvalidArgument("influxdb token is required", nil)
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:8086"
	}
	if cfg.Org == "" {
		cfg.Org = "warehouse"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "warehouse_metrics"
	}
	return &Adapter{cfg: cfg}, nil
}

func (a *Adapter) Connect(ctx context.Context) error {
	client := influxdb2.NewClient(a.cfg.URL, a.cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		return errors.Wrap(err, "influxdb connection failed")
	}
	if health.Status != domain.HealthCheckStatusPass {
		return errors.New(errors.CodeInternal, fmt.Sprintf("influxdb health check failed: %s", safeMsg(health.Message)), nil)
	}

	a.client = client
	a.write = client.WriteAPIBlocking(a.cfg.Org, a.cfg.Bucket)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.client != nil {
		a.client.Close()
		a.client = nil
		a.write = nil
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) bool {
	if a.client == nil {
		return false
	}
	health, err := a.client.Health(ctx)
	if err != nil {
		return false
	}
	return health.Status == domain.HealthCheckStatusPass
}

func (a *Adapter) Store(ctx context.Context, record map[string]any) error {
	return a.BatchStore(ctx, []map[string]any{record})
}

func (a *Adapter) BatchStore(ctx context.Context, records []map[string]any) error {
	if a.write == nil {
		return errors.New(errors.CodeInternal, "not connected to influxdb", nil)
	}

	points := make([]*write.Point, 0, len(records))
	for _, r := range records {
		if p := buildPoint(r); p != nil {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return nil
	}
	if err := a.write.WritePoint(ctx, points...); err != nil {
		return errors.Wrap(err, "influxdb write failed")
	}
	return nil
}

var tagFields = []string{
	"event_type", "topic", "source", "warehouse_zone", "location_id",
	"item_category", "action", "severity", "alert_type",
}

var numericFields = []string{
	"quantity", "processing_time_ms", "anomaly_score", "confidence_score",
	"value", "count", "duration_ms", "error_count", "success_rate",
	"throughput", "latency_p95", "latency_p99",
}

// buildPoint mirrors the original's _create_point: measurement
// inference, fixed tag set, numeric field allow-list, default
// event_count=1 when nothing else would be written.
func buildPoint(r map[string]any) *write.Point {
	measurement, _ := r["measurement"].(string)
	if measurement == "" {
		measurement, _ = r["event_type"].(string)
	}
	if measurement == "" {
		measurement, _ = r["metric_name"].(string)
	}
	if measurement == "" {
		measurement = "warehouse_metric"
	}

	ts := parseTimestamp(r["timestamp"])

	tags := map[string]string{}
	if raw, ok := r["tags"].(map[string]string); ok {
		for k, v := range raw {
			tags[k] = v
		}
	}
	for _, f := range tagFields {
		if v, ok := r[f]; ok && v != nil {
			tags[f] = fmt.Sprintf("%v", v)
		}
	}

	fields := map[string]any{}
	if raw, ok := r["fields"].(map[string]any); ok {
		for k, v := range raw {
			if v != nil {
				fields[k] = v
			}
		}
	}
	for _, f := range numericFields {
		if v, ok := r[f]; ok && v != nil {
			if n, ok := toNumeric(v); ok {
				fields[f] = n
			}
		}
	}
	if len(fields) == 0 {
		fields["event_count"] = 1
	}

	return influxdb2.NewPoint(measurement, tags, fields, ts)
}

func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	case float64:
		return time.Unix(int64(t), 0).UTC()
	case int64:
		return time.Unix(t, 0).UTC()
	case time.Time:
		return t
	}
	return time.Now().UTC()
}

func toNumeric(v any) (any, bool) {
	switch n := v.(type) {
	case float64, int, int64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func safeMsg(m *string) string {
	if m == nil {
		return ""
	}
	return *m
}
