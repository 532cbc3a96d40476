package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the Kafka topic carrying bet lifecycle events.
const DefaultTopic = "bet_lifecycle"

// KafkaSink publishes events as JSON messages keyed by bet ID, so all
// transitions of one bet land on the same partition in order.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a sink writing to the given brokers and topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           10 * time.Second,
		},
	}
}

func (s *KafkaSink) Emit(ctx context.Context, e Event) {
	value, err := json.Marshal(Stamp(e))
	if err != nil {
		return
	}

	key := e.BetID
	if key == "" {
		key = string(e.Kind)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("kafka publish failed", "kind", string(e.Kind), "err", err)
	}
}

// Close flushes and releases the underlying writer.
func (s *KafkaSink) Close() error { return s.writer.Close() }
