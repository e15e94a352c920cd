package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/warehouseops/pipeline/pkg/errors"
)

// Producer sends JSON-encoded values to the bus with required-acks=all
// and retry/backoff, per §4.1. Keys are opaque strings.
type Producer struct {
	sp sarama.SyncProducer
}

// ProducerConfig configures the underlying sarama sync producer.
type ProducerConfig struct {
	Brokers    []string
	RetryMax   int
	AckTimeout time.Duration // default 10s, §5
}

// NewProducer dials the given brokers with RequiredAcks=all.
func NewProducer(cfg ProducerConfig) (*Producer, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 5
	}
	sc.Producer.Retry.Max = cfg.RetryMax
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 10 * time.Second
	}
	sc.Producer.Timeout = cfg.AckTimeout

	sp, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}
	return &Producer{sp: sp}, nil
}

// Send JSON-encodes value and publishes it to topic under key,
// blocking until the broker confirms the write or the context's
// implicit timeout (configured on the producer) elapses.
func (p *Producer) Send(ctx context.Context, topic, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to encode message payload")
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(payload),
		Timestamp: time.Now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte("message-id"), Value: []byte(uuid.New().String())},
		},
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	_, _, err = p.sp.SendMessage(msg)
	if err != nil {
		return errors.Wrap(err, "failed to publish to "+topic)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	return p.sp.Close()
}
