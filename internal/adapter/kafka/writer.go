package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/commerce-quality-etl/internal/pipeline"
)

// messageWriter is the subset of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// EventWriter publishes run events to a Kafka topic.
// It implements pipeline.EventSink.
type EventWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewEventWriter creates a Kafka producer for the run events topic. Messages
// are keyed by run id and hash-balanced, so one run's events stay in order on
// a single partition.
func NewEventWriter(brokers []string, topic string, logger *slog.Logger) *EventWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &EventWriter{writer: w, logger: logger}
}

// Publish serializes and writes one event.
func (w *EventWriter) Publish(ctx context.Context, e pipeline.Event) error {
	msg, err := serializeToMessage(e)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write run event: %w", err)
	}
	w.logger.Debug("run event published", "run_id", e.RunID, "event", e.Type)
	return nil
}

func (w *EventWriter) Name() string { return "kafka" }

func (w *EventWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a run event into a Kafka message.
func serializeToMessage(e pipeline.Event) (kafkago.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run event: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "event_type", Value: []byte(e.Type)},
		{Key: "event_id", Value: []byte(e.ID)},
		{Key: "emitted_at", Value: []byte(e.Timestamp.Format(time.RFC3339))},
	}
	if e.Phase != "" {
		headers = append(headers, kafkago.Header{Key: "phase", Value: []byte(e.Phase)})
	}
	return kafkago.Message{
		Key:     []byte(e.RunID),
		Value:   data,
		Headers: headers,
	}, nil
}
