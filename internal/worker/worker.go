// Package worker implements the Consumer Worker (C6): one long-running
// worker per input topic polling batches from the bus, fanning each
// message through the Processor (C2), Enricher (C3) and Detector (C4),
// republishing enriched and alert records, feeding the Aggregator (C5),
// and committing offsets only once the whole batch is confirmed.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warehouseops/pipeline/internal/aggregator"
	"github.com/warehouseops/pipeline/internal/bus"
	"github.com/warehouseops/pipeline/internal/detector"
	"github.com/warehouseops/pipeline/internal/enricher"
	"github.com/warehouseops/pipeline/internal/events"
	"github.com/warehouseops/pipeline/internal/metricsserver"
	"github.com/warehouseops/pipeline/internal/processor"
)

// Sender is the subset of *bus.Producer's behavior a Worker depends on,
// accepted as an interface so tests can substitute a fake bus without a
// real Kafka connection.
type Sender interface {
	Send(ctx context.Context, topic, key string, value interface{}) error
	Close() error
}

// produceError marks a failure to publish to the bus, as distinct from
// a validation/decode error: processBatch drops the latter and keeps
// going, but aborts the whole batch uncommitted on the former so it is
// retried on the next poll (§4.6 step 6, §7's TransientExternalError).
type produceError struct {
	err error
}

func (e *produceError) Error() string { return e.err.Error() }
func (e *produceError) Unwrap() error { return e.err }

// Config configures one Worker instance.
type Config struct {
	InputTopic        string // e.g. "warehouse.inventory"
	ProcessedTopic    string // e.g. "warehouse.processed.inventory"
	AlertsTopic       string // default "warehouse.alerts"
	AggregatedTopic   string // default "warehouse.aggregated.metrics"
	ReportInterval    time.Duration
	AggregationTick   time.Duration
	ShutdownDrainWait time.Duration
}

func (c *Config) setDefaults() {
	if c.AlertsTopic == "" {
		c.AlertsTopic = "warehouse.alerts"
	}
	if c.AggregatedTopic == "" {
		c.AggregatedTopic = "warehouse.aggregated.metrics"
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = 30 * time.Second
	}
	if c.AggregationTick <= 0 {
		c.AggregationTick = 10 * time.Second
	}
	if c.ShutdownDrainWait <= 0 {
		c.ShutdownDrainWait = 10 * time.Second
	}
}

// Worker owns one input topic's processing graph end to end.
type Worker struct {
	cfg       Config
	log       *slog.Logger
	consumer  *bus.Consumer
	producer  Sender
	processor *processor.Processor
	enricher  *enricher.Enricher
	detector  *detector.Detector
	aggregator *aggregator.Aggregator

	processed int64
	anomalies int64
}

// New assembles a Worker from its already-constructed collaborators.
// The consumer must already be bound to cfg.InputTopic.
func New(cfg Config, log *slog.Logger, consumer *bus.Consumer, producer Sender, enr *enricher.Enricher, det *detector.Detector, agg *aggregator.Aggregator) *Worker {
	cfg.setDefaults()
	return &Worker{
		cfg:        cfg,
		log:        log,
		consumer:   consumer,
		producer:   producer,
		processor:  processor.New(),
		enricher:   enr,
		detector:   det,
		aggregator: agg,
	}
}

// Run executes the poll/process/produce/commit loop until ctx is
// canceled, then drains the in-flight batch and shuts down cleanly.
func (w *Worker) Run(ctx context.Context) error {
	metricsserver.ActiveConsumers.WithLabelValues(w.cfg.InputTopic).Inc()
	defer metricsserver.ActiveConsumers.WithLabelValues(w.cfg.InputTopic).Dec()

	reportTicker := time.NewTicker(w.cfg.ReportInterval)
	defer reportTicker.Stop()
	aggTicker := time.NewTicker(w.cfg.AggregationTick)
	defer aggTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.shutdown()
		case <-reportTicker.C:
			w.reportStats(ctx)
		case <-aggTicker.C:
			w.publishAggregation(ctx)
		default:
		}

		batch, err := w.consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return w.shutdown()
			}
			w.log.ErrorContext(ctx, "poll failed", "topic", w.cfg.InputTopic, "error", err)
			continue
		}

		if err := w.processBatch(ctx, batch); err != nil {
			// Produce/commit failure: do not advance offsets; the same
			// batch is reprocessed on the next poll (§4.6 step 6).
			w.log.ErrorContext(ctx, "batch produce failed, will retry", "topic", w.cfg.InputTopic, "error", err)
			continue
		}
		batch.Commit()
	}
}

func (w *Worker) processBatch(ctx context.Context, batch *bus.Batch) error {
	for _, msg := range batch.Messages {
		timer := metricsserver.NewTimer()
		err := w.processMessage(ctx, msg)
		timer.ObserveSeconds(metricsserver.MessageProcessingSeconds, w.cfg.InputTopic)

		if err == nil {
			metricsserver.MessagesProcessedTotal.WithLabelValues(w.cfg.InputTopic, "success").Inc()
			w.processed++
			continue
		}

		var pErr *produceError
		if errors.As(err, &pErr) {
			// Abort: the rest of the batch is left unprocessed and the
			// batch is not committed, so it is retried from this message
			// on the next poll instead of silently losing it.
			return pErr
		}

		metricsserver.MessagesProcessedTotal.WithLabelValues(w.cfg.InputTopic, "error").Inc()
		w.log.WarnContext(ctx, "dropping message", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
	}
	return nil
}

// processMessage runs one message through C2->C3->C4, and on success
// produces the enriched record plus (if flagged) an alert record.
// Produce errors propagate so the caller can decline to commit; all
// other errors (validation, decode) are logged and the message dropped
// without affecting the batch (§7).
func (w *Worker) processMessage(ctx context.Context, msg bus.Message) error {
	raw, err := decodeRawEvent(msg.Value)
	if err != nil {
		return err
	}
	if err := validate(raw); err != nil {
		return err
	}

	meta := events.KafkaMetadata{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset, Key: string(msg.Key)}
	processed := w.processor.Process(raw, meta)
	enriched := w.enricher.Enrich(ctx, processed)

	result := w.detector.Detect(&enriched)
	if result.IsAnomaly {
		enriched.Anomaly = &result
	}

	if err := w.producer.Send(ctx, w.cfg.ProcessedTopic, enriched.ItemID, enriched); err != nil {
		return &produceError{err: err}
	}

	if result.IsAnomaly {
		w.anomalies++
		metricsserver.AnomaliesDetectedTotal.WithLabelValues(result.AnomalyType).Inc()
		payload := events.AlertPayload{
			Type: "inventory_anomaly", ItemID: enriched.ItemID, AnomalyType: result.AnomalyType,
			Confidence: result.Confidence, Details: result.Details, Timestamp: enriched.TimestampParsed,
			Severity: result.Severity,
		}
		if err := w.producer.Send(ctx, w.cfg.AlertsTopic, uuid.New().String(), payload); err != nil {
			return &produceError{err: err}
		}
	}

	w.aggregator.Add(&enriched)
	return nil
}

// publishAggregation emits the aggregator's current read to
// aggregated.metrics on a fixed tick (§4.5 "computed on demand or at a
// fixed tick"); produce failures are logged, not fatal, since this
// publish sits outside the per-batch commit boundary.
func (w *Worker) publishAggregation(ctx context.Context) {
	snap := w.aggregator.Snapshot()
	if err := w.producer.Send(ctx, w.cfg.AggregatedTopic, w.cfg.InputTopic, snap); err != nil {
		w.log.WarnContext(ctx, "failed to publish aggregation snapshot", "topic", w.cfg.AggregatedTopic, "error", err)
	}
}

// reportStats logs a periodic structured summary, purely additive to
// the Prometheus metrics (supplemented from the source's main.py
// stats-logging loop).
func (w *Worker) reportStats(ctx context.Context) {
	w.log.InfoContext(ctx, "worker stats",
		"topic", w.cfg.InputTopic,
		"messages_processed", w.processed,
		"anomalies_detected", w.anomalies,
	)
}

func (w *Worker) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownDrainWait)
	defer cancel()
	w.log.InfoContext(ctx, "worker shutting down", "topic", w.cfg.InputTopic)
	if err := w.producer.Close(); err != nil {
		w.log.WarnContext(ctx, "producer close failed", "error", err)
	}
	if err := w.consumer.Close(); err != nil {
		w.log.WarnContext(ctx, "consumer close failed", "error", err)
	}
	return nil
}
