package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preclinical-platform/platform/pkg/common/config"
	"github.com/segmentio/kafka-go"
)

// StreamMirror forwards bus events to a Kafka topic so downstream consumers
// (reporting, data warehouse) can observe lifecycle changes. Delivery is
// best-effort: a broker failure is logged by the bus and never blocks the
// triggering write.
type StreamMirror struct {
	writer *kafka.Writer
	source string
}

type streamEnvelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewStreamMirror(source string) *StreamMirror {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &StreamMirror{writer: writer, source: source}
}

// Handle implements the bus Handler signature.
func (m *StreamMirror) Handle(ctx context.Context, evt Event) error {
	envelope := streamEnvelope{
		ID:        uuid.New().String(),
		Type:      evt.EventType(),
		Source:    m.source,
		Data:      evt,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(envelope.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.EventType())},
			{Key: "source", Value: []byte(m.source)},
		},
	}

	return m.writer.WriteMessages(ctx, message)
}

func (m *StreamMirror) Close() error {
	return m.writer.Close()
}
