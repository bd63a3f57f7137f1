package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	rerrors "github.com/hixichen/client-secret-rotator/pkg/errors"
)

const component = "notify.kafka"

// MessageWriter is the subset of kafka.Writer used by Kafka.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON messages keyed by client ID.
type Kafka struct {
	writer MessageWriter
	topic  string
}

// Ensure Kafka implements Notifier interface.
var _ Notifier = (*Kafka)(nil)

// NewKafka creates a Kafka notifier writing to topic on brokers.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, rerrors.NewValidationError(component, "kafka broker address not provided", nil)
	}
	if topic == "" {
		return nil, rerrors.NewValidationError(component, "kafka topic not provided", nil)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewKafkaWithWriter(w, topic), nil
}

// NewKafkaWithWriter creates a Kafka notifier over an existing writer.
func NewKafkaWithWriter(writer MessageWriter, topic string) *Kafka {
	return &Kafka{writer: writer, topic: topic}
}

// Notify writes the event and waits for the brokers to acknowledge it.
func (k *Kafka) Notify(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return rerrors.NewNotificationError(component, "failed to marshal event", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ClientID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "id", Value: []byte(event.ID)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return rerrors.NewNotificationError(component, fmt.Sprintf("failed to write event to topic %s", k.topic), err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
