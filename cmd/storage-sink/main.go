// Command storage-sink runs the Storage Manager (C7): it consumes the
// pipeline's output topics and fans each record out to the configured
// Storage Adapters (C8) — InfluxDB, Elasticsearch, and ClickHouse.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warehouseops/pipeline/internal/bus"
	"github.com/warehouseops/pipeline/internal/metricsserver"
	"github.com/warehouseops/pipeline/internal/storage"
	"github.com/warehouseops/pipeline/internal/storage/adapters/search"
	"github.com/warehouseops/pipeline/internal/storage/adapters/timeseries"
	"github.com/warehouseops/pipeline/internal/storage/adapters/warehouse"
	"github.com/warehouseops/pipeline/pkg/config"
	"github.com/warehouseops/pipeline/pkg/logger"
	"github.com/warehouseops/pipeline/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

type appConfig struct {
	Log       logger.Config
	Telemetry telemetry.Config

	InfluxDB      timeseries.Config
	Elasticsearch search.Config
	ClickHouse    warehouse.Config

	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092" validate:"required"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" env-default:"storage-sink"`

	// InputTopics covers every output topic the pipeline produces:
	// enriched records, alerts, and periodic aggregation snapshots.
	InputTopics string `env:"STORAGE_INPUT_TOPICS" env-default:"warehouse.processed.inventory,warehouse.alerts,warehouse.aggregated.metrics"`

	BatchSize   int           `env:"CONSUMER_BATCH_SIZE" env-default:"500"`
	BatchWindow time.Duration `env:"CONSUMER_BATCH_WINDOW" env-default:"1s"`

	MetricsAddr string `env:"METRICS_ADDR" env-default:":8091"`
}

func main() {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		os.Exit(1)
	}

	log := logger.Init(cfg.Log)

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := metricsserver.NewServer(cfg.MetricsAddr)
	go func() {
		if err := metricsSrv.Run(ctx); err != nil {
			log.ErrorContext(ctx, "metrics server stopped", "error", err)
		}
	}()

	adapters := map[string]storage.Adapter{}

	if tsAdapter, err := timeseries.New(cfg.InfluxDB); err != nil {
		log.Warn("time-series adapter disabled", "error", err)
	} else {
		adapters["timeseries"] = tsAdapter
	}

	if searchAdapter, err := search.New(cfg.Elasticsearch); err != nil {
		log.Warn("search adapter disabled", "error", err)
	} else {
		adapters["search"] = searchAdapter
	}

	if whAdapter, err := warehouse.New(cfg.ClickHouse); err != nil {
		log.Warn("warehouse adapter disabled", "error", err)
	} else {
		adapters["warehouse"] = whAdapter
	}

	mgr := storage.New(log, adapters, nil)

	connected := mgr.ConnectAll(ctx)
	for name, ok := range connected {
		if !ok {
			log.Warn("adapter failed to connect at startup", "adapter", name)
		}
	}
	defer mgr.DisconnectAll(context.Background())

	go mgr.RunHealthLoop(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range splitCSV(cfg.InputTopics) {
		consumer, err := bus.NewConsumer(bus.ConsumerConfig{
			Brokers:     splitCSV(cfg.KafkaBrokers),
			GroupID:     cfg.KafkaGroupID,
			Topics:      []string{topic},
			BatchSize:   cfg.BatchSize,
			BatchWindow: cfg.BatchWindow,
		})
		if err != nil {
			log.Error("failed to build consumer", "topic", topic, "error", err)
			os.Exit(1)
		}

		g.Go(func() error { return runSinkLoop(gctx, log, consumer, mgr) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("sink group exited with error", "error", err)
	}
	log.Info("shutdown signal received")
}

// runSinkLoop polls one topic's batches and routes every record
// through the Storage Manager, committing only after the batch store
// attempt completes (best-effort: a failed adapter does not block
// offset advancement for the others, per the Storage Manager's
// per-adapter independent-success contract).
func runSinkLoop(ctx context.Context, log *slog.Logger, consumer *bus.Consumer, mgr *storage.Manager) error {
	defer consumer.Close()

	for {
		batch, err := consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.ErrorContext(ctx, "poll failed", "error", err)
			continue
		}

		records := make([]map[string]any, 0, len(batch.Messages))
		for _, msg := range batch.Messages {
			var record map[string]any
			if err := json.Unmarshal(msg.Value, &record); err != nil {
				log.WarnContext(ctx, "dropping unparseable record", "topic", msg.Topic, "error", err)
				continue
			}
			records = append(records, record)
		}

		if len(records) > 0 {
			results := mgr.BatchStore(ctx, records, "")
			for name, ok := range results {
				if !ok {
					log.WarnContext(ctx, "adapter batch store reported failure", "adapter", name)
				}
			}
		}

		batch.Commit()
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
