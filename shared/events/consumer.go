package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/models"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Handler processes one decoded booking event
type Handler func(ctx context.Context, event models.BookingEvent) error

// KafkaConsumer reads booking events for a consumer group
type KafkaConsumer struct {
	reader messageReader
}

// NewKafkaConsumer creates a consumer of topic in group
func NewKafkaConsumer(broker, topic, groupID string) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})
	return &KafkaConsumer{reader: reader}
}

// DecodeBookingEvent parses a message value
func DecodeBookingEvent(msg kafka.Message) (models.BookingEvent, error) {
	var event models.BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal booking event: %w", err)
	}
	return event, nil
}

// Consume reads until ctx is cancelled. Undecodable messages are skipped; handler errors are
// logged and the handler is expected to have recorded the event for retry.
func (kc *KafkaConsumer) Consume(ctx context.Context, handle Handler) error {
	logrus.Info("Starting booking events consumer")

	for {
		msg, err := kc.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logrus.WithError(err).Error("Error reading booking event")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		event, err := DecodeBookingEvent(msg)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"offset": msg.Offset,
				"error":  err,
			}).Warn("Skipping malformed booking event")
			continue
		}

		if err := handle(ctx, event); err != nil {
			logrus.WithFields(logrus.Fields{
				"event_id":   event.ID,
				"event_type": event.EventType,
				"error":      err,
			}).Error("Error handling booking event")
		}
	}
}

// Close closes the reader
func (kc *KafkaConsumer) Close() error {
	if err := kc.reader.Close(); err != nil {
		return fmt.Errorf("failed to close booking events reader: %w", err)
	}
	return nil
}
