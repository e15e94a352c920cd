// Command pipeline-worker runs the Consumer Worker (C6) processing
// graph: one Worker per configured input topic, each fanning messages
// through the Processor (C2), Enricher (C3), Detector (C4), and
// Window Aggregator (C5).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warehouseops/pipeline/internal/aggregator"
	"github.com/warehouseops/pipeline/internal/appctx"
	"github.com/warehouseops/pipeline/internal/bus"
	"github.com/warehouseops/pipeline/internal/detector"
	"github.com/warehouseops/pipeline/internal/enricher"
	"github.com/warehouseops/pipeline/internal/metricsserver"
	"github.com/warehouseops/pipeline/internal/worker"
	"github.com/warehouseops/pipeline/pkg/cache"
	cacheadapter "github.com/warehouseops/pipeline/pkg/cache/adapters/memory"
	redisadapter "github.com/warehouseops/pipeline/pkg/cache/adapters/redis"
	"github.com/warehouseops/pipeline/pkg/config"
	"github.com/warehouseops/pipeline/pkg/logger"
	"github.com/warehouseops/pipeline/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

// appConfig is the pipeline-worker process's full environment-driven
// configuration, composing the ambient config/logger/telemetry/cache
// sections with the worker-specific topic wiring.
type appConfig struct {
	Log       logger.Config
	Telemetry telemetry.Config
	Cache     cache.Config

	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092" validate:"required"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" env-default:"pipeline-worker"`

	// InputTopics is a comma-separated list of input topics; one Worker
	// is started per topic, e.g. "warehouse.inventory,warehouse.orders".
	InputTopics string `env:"INPUT_TOPICS" env-default:"warehouse.inventory"`

	BatchSize   int           `env:"CONSUMER_BATCH_SIZE" env-default:"500"`
	BatchWindow time.Duration `env:"CONSUMER_BATCH_WINDOW" env-default:"1s"`

	MetricsAddr string `env:"METRICS_ADDR" env-default:":8090"`

	AggregationTick time.Duration `env:"AGGREGATION_TICK" env-default:"10s"`
	ReportInterval  time.Duration `env:"REPORT_INTERVAL" env-default:"30s"`
}

func main() {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", "error", err)
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

	l2 := newCache(log, cfg.Cache)
	defer func() { _ = l2.Close() }()

	app := appctx.New(log, l2, shutdownTelemetry)

	metricsSrv := metricsserver.NewServer(cfg.MetricsAddr)
	go func() {
		if err := metricsSrv.Run(ctx); err != nil {
			log.ErrorContext(ctx, "metrics server stopped", "error", err)
		}
	}()

	producer, err := bus.NewProducer(bus.ProducerConfig{
		Brokers: splitCSV(cfg.KafkaBrokers),
	})
	if err != nil {
		log.Error("failed to build producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	topics := splitCSV(cfg.InputTopics)
	workers := make([]*worker.Worker, 0, len(topics))

	for _, topic := range topics {
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

		// MetadataProvider is left nil: no transactional metadata system
		// is wired in this deployment, so every lookup resolves through
		// the Enricher's documented deterministic stand-in.
		enr := enricher.New(nil, app.Cache)
		det := detector.New(0, nil)
		agg := aggregator.New()

		w := worker.New(worker.Config{
			InputTopic:      topic,
			ProcessedTopic:  "warehouse.processed." + lastSegment(topic),
			AggregationTick: cfg.AggregationTick,
			ReportInterval:  cfg.ReportInterval,
		}, app.Logger, consumer, producer, enr, det, agg)

		workers = append(workers, w)
	}

	// errgroup ties every worker's lifetime together: if one topic's
	// worker dies for good (not just context cancellation), the others
	// are cancelled too rather than limping along half-functional.
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error { return w.Run(gctx) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("worker group exited with error", "error", err)
	}
	log.Info("shutdown signal received, draining workers")
	time.Sleep(500 * time.Millisecond)
}

// newCache builds the L2 shared cache. Redis is wrapped with a circuit
// breaker/retry guard so a flaky shared cache degrades enrichment
// lookups to the L1/stand-in path instead of blocking the worker.
func newCache(log *slog.Logger, cfg cache.Config) cache.Cache {
	if cfg.Driver == "redis" {
		c, err := redisadapter.New(cfg)
		if err != nil {
			log.Warn("failed to connect to redis, falling back to in-process cache", "error", err)
			return cacheadapter.New()
		}
		resilient := cache.NewResilientCache(c, cache.ResilientConfig{
			CircuitBreakerEnabled: true,
			RetryEnabled:          true,
			RetryMaxAttempts:      2,
		})
		// Item/location IDs seen for the first time are common (new SKUs,
		// new locations); the Bloom filter skips the redis round trip for
		// keys it has never Set, falling straight to the provider/stand-in.
		bloomed := cache.NewBloomCache(resilient, cache.BloomCacheConfig{})
		return cache.NewInstrumentedCache(bloomed)
	}
	return cacheadapter.New()
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

func lastSegment(topic string) string {
	idx := strings.LastIndex(topic, ".")
	if idx < 0 {
		return topic
	}
	return topic[idx+1:]
}
