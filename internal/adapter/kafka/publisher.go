package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/marine-qc/internal/config"
	"github.com/couchcryptid/marine-qc/internal/domain"
)

// messageWriter is the part of kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces partition summaries to a Kafka topic.
// It implements pipeline.SummaryPublisher.
type Publisher struct {
	writer   messageWriter
	attempts uint
	now      func() time.Time
	logger   *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured summary topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSummaryTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newPublisher(w, cfg.PublishRetries, time.Now, logger)
}

func newPublisher(w messageWriter, retries uint, now func() time.Time, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, attempts: retries + 1, now: now, logger: logger}
}

// Publish serializes s and writes it keyed by partition, retrying transient
// broker errors.
func (p *Publisher) Publish(ctx context.Context, s domain.Summary) error {
	msg, err := serializeToMessage(s, p.now())
	if err != nil {
		return err
	}
	return retry.Do(
		func() error {
			return p.writer.WriteMessages(ctx, msg)
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("publish summary retry", "partition", s.Partition, "attempt", n+1, "error", err)
		}),
	)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Summary into a Kafka message.
func serializeToMessage(s domain.Summary, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.Partition),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "message_id", Value: []byte(uuid.NewString())},
			{Key: "run_id", Value: []byte(s.RunID)},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
