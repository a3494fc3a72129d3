// Package requestlog ships a summary of every finished request to a sink:
// a Kafka topic when one is configured, the structured log otherwise.
package requestlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"citebroker/internal/request"
)

// Publisher records a finished request.
type Publisher interface {
	Publish(ctx context.Context, summary request.Summary) error
}

// Producer is the part of *kgo.Client the Kafka publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher writes one JSON record per request, keyed by request id.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, summary request.Summary) error {
	value, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode request summary: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(summary.RequestID),
		Value: value,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce request summary to %s: %w", p.topic, err)
	}
	return nil
}

// LogPublisher writes summaries to a logger at info level.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, summary request.Summary) error {
	p.logger.InfoContext(ctx, "request completed",
		"request_id", summary.RequestID,
		"duration_ms", summary.DurationMS,
		"affiliation", summary.Requestor.Affiliation,
		"referrers", summary.Referrers,
		"referents", len(summary.Referents),
		"errors", summary.Errors,
	)
	return nil
}
