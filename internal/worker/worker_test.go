package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/warehouseops/pipeline/internal/aggregator"
	"github.com/warehouseops/pipeline/internal/bus"
	"github.com/warehouseops/pipeline/internal/detector"
	"github.com/warehouseops/pipeline/internal/enricher"
	"github.com/stretchr/testify/require"
)

// fakeSender is a Sender that records every Send call and fails
// whichever ones are listed in failTopics.
type fakeSender struct {
	sent       []string
	failTopics map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, topic, key string, value interface{}) error {
	if f.failTopics[topic] {
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, topic)
	return nil
}

func (f *fakeSender) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(producer Sender) *Worker {
	return New(Config{
		InputTopic:     "warehouse.inventory",
		ProcessedTopic: "warehouse.processed.inventory",
	}, testLogger(), nil, producer, enricher.New(nil, nil), detector.New(0, nil), aggregator.New())
}

func validInventoryMessage(itemID string) bus.Message {
	payload := `{"event_type":"inventory","item_id":"` + itemID + `","action":"stock_in","quantity":5,"timestamp":"2024-01-02T15:04:05Z"}`
	return bus.Message{Topic: "warehouse.inventory", Value: []byte(payload)}
}

func invalidInventoryMessage() bus.Message {
	// Missing item_id: fails validate() and should be dropped, not abort the batch.
	payload := `{"event_type":"inventory","action":"stock_in","quantity":5,"timestamp":"2024-01-02T15:04:05Z"}`
	return bus.Message{Topic: "warehouse.inventory", Value: []byte(payload)}
}

// A validation error drops the offending message but the rest of the
// batch still processes and processBatch reports success, so the
// caller commits.
func TestProcessBatch_ValidationErrorDropsMessageBatchCommits(t *testing.T) {
	sender := &fakeSender{}
	w := newTestWorker(sender)

	batch := &bus.Batch{Messages: []bus.Message{
		invalidInventoryMessage(),
		validInventoryMessage("ITEM1"),
	}}

	err := w.processBatch(context.Background(), batch)

	require.NoError(t, err)
	require.Equal(t, []string{"warehouse.processed.inventory"}, sender.sent)
	require.EqualValues(t, 1, w.processed)
}

// A produce failure aborts the batch: processBatch returns an error so
// the caller declines to commit, and messages after the failure are
// never attempted.
func TestProcessBatch_ProduceErrorAbortsBatchUncommitted(t *testing.T) {
	sender := &fakeSender{failTopics: map[string]bool{"warehouse.processed.inventory": true}}
	w := newTestWorker(sender)

	batch := &bus.Batch{Messages: []bus.Message{
		validInventoryMessage("ITEM1"),
		validInventoryMessage("ITEM2"),
	}}

	err := w.processBatch(context.Background(), batch)

	require.Error(t, err)
	var pErr *produceError
	require.ErrorAs(t, err, &pErr)
	require.Empty(t, sender.sent)
	require.EqualValues(t, 0, w.processed, "second message must not be processed once the batch is aborted")
}
