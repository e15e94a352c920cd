// Package bus implements the Bus Client (C1): a typed wrapper over
// Kafka that hands the Consumer Worker a bounded-timeout batch of
// messages and commits offsets only once the caller confirms the
// whole batch, including its produce-side sends, is done.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/warehouseops/pipeline/pkg/errors"
)

// Message is one polled record plus the bus coordinates needed to
// build ProcessedEvent.Processing.KafkaMetadata and to mark it
// consumed once the caller is done with it.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Batch is a bounded group of polled messages sharing one consumer
// group session; Commit must be called exactly once, after every
// message in the batch (and every downstream produce it triggered)
// has been handled.
type Batch struct {
	Messages []Message

	session sarama.ConsumerGroupSession
	claims  map[string][]*sarama.ConsumerMessage
}

// Commit marks every message in the batch consumed and advances the
// consumer group's committed offsets. Per §4.1/§4.6, offsets must
// never advance before this call.
func (b *Batch) Commit() {
	for _, msgs := range b.claims {
		for _, m := range msgs {
			b.session.MarkMessage(m, "")
		}
	}
	b.session.Commit()
}

// Consumer is a bounded-timeout polling handle bound to a consumer
// group, with manual offset commit (§4.1).
type Consumer struct {
	group      sarama.ConsumerGroup
	topics     []string
	batchSize  int
	batchMu    sync.Mutex
	pending    chan *Batch
	handler    *pollHandler
	cancel     context.CancelFunc
	runErr     chan error
}

// ConsumerConfig configures poll batching.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	Topics      []string
	BatchSize   int           // B, default 100
	BatchWindow time.Duration // T, default 1s
}

// NewConsumer connects a consumer group and starts the background
// claim-reader goroutine; Poll blocks until a batch of up to
// BatchSize messages (or the BatchWindow timeout) is available.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchWindow <= 0 {
		cfg.BatchWindow = time.Second
	}

	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = false

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka consumer group")
	}

	h := &pollHandler{
		batchSize: cfg.BatchSize,
		window:    cfg.BatchWindow,
		out:       make(chan *Batch),
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		group:     group,
		topics:    cfg.Topics,
		batchSize: cfg.BatchSize,
		pending:   h.out,
		handler:   h,
		cancel:    cancel,
		runErr:    make(chan error, 1),
	}

	go func() {
		for ctx.Err() == nil {
			if err := group.Consume(ctx, cfg.Topics, h); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.runErr <- err
				return
			}
		}
	}()

	return c, nil
}

// Poll blocks until a batch is ready or the context is canceled.
func (c *Consumer) Poll(ctx context.Context) (*Batch, error) {
	select {
	case b, ok := <-c.pending:
		if !ok {
			return nil, errors.Internal("consumer closed", nil)
		}
		return b, nil
	case err := <-c.runErr:
		return nil, errors.Wrap(err, "kafka consumer group error")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops polling, drains the session and closes the group.
func (c *Consumer) Close() error {
	c.cancel()
	return c.group.Close()
}

// pollHandler implements sarama.ConsumerGroupHandler, buffering claim
// messages into batches of batchSize or until window elapses.
type pollHandler struct {
	batchSize int
	window    time.Duration
	out       chan *Batch
}

func (h *pollHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *pollHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *pollHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ticker := time.NewTicker(h.window)
	defer ticker.Stop()

	buf := make([]*sarama.ConsumerMessage, 0, h.batchSize)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		msgs := make([]Message, len(buf))
		claims := map[string][]*sarama.ConsumerMessage{claim.Topic(): append([]*sarama.ConsumerMessage{}, buf...)}
		for i, m := range buf {
			msgs[i] = Message{
				Topic: m.Topic, Partition: m.Partition, Offset: m.Offset,
				Key: m.Key, Value: m.Value, Timestamp: m.Timestamp,
			}
		}
		h.out <- &Batch{Messages: msgs, session: session, claims: claims}
		buf = buf[:0]
	}

	for {
		select {
		case m, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			buf = append(buf, m)
			if len(buf) >= h.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-session.Context().Done():
			return nil
		}
	}
}
