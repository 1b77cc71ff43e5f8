package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/models"
)

// ErrQueueFull is returned when the producer cannot take more events
var ErrQueueFull = errors.New("booking event queue full, event dropped")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes booking events from a buffered queue drained by a worker pool
type KafkaProducer struct {
	writer       messageWriter
	topic        string
	events       chan models.BookingEvent
	workerCount  int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// NewKafkaProducer creates a producer writing to topic on broker
func NewKafkaProducer(broker, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		AllowAutoTopicCreation: true,
	}
	return newKafkaProducer(writer, topic, 1000, 4)
}

func newKafkaProducer(writer messageWriter, topic string, queueSize, workers int) *KafkaProducer {
	kp := &KafkaProducer{
		writer:       writer,
		topic:        topic,
		events:       make(chan models.BookingEvent, queueSize),
		workerCount:  workers,
		shutdownChan: make(chan struct{}),
	}
	kp.startWorkers()
	return kp
}

func (kp *KafkaProducer) startWorkers() {
	for i := 0; i < kp.workerCount; i++ {
		kp.wg.Add(1)
		go kp.worker(i)
	}
	logrus.Infof("Kafka producer started %d booking event workers", kp.workerCount)
}

func (kp *KafkaProducer) worker(id int) {
	defer kp.wg.Done()

	for {
		select {
		case event := <-kp.events:
			kp.send(id, event)
		case <-kp.shutdownChan:
			// flush what is already queued
			for {
				select {
				case event := <-kp.events:
					kp.send(id, event)
				default:
					return
				}
			}
		}
	}
}

func (kp *KafkaProducer) send(workerID int, event models.BookingEvent) {
	if err := kp.sendSync(event); err != nil {
		logrus.WithFields(logrus.Fields{
			"worker":     workerID,
			"event_id":   event.ID,
			"event_type": event.EventType,
			"error":      err,
		}).Error("Failed to send booking event")
	}
}

// PublishBookingEvent queues the event without blocking
func (kp *KafkaProducer) PublishBookingEvent(_ context.Context, event models.BookingEvent) error {
	select {
	case <-kp.shutdownChan:
		return fmt.Errorf("producer closed")
	default:
	}

	select {
	case kp.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// EncodeBookingEvent builds the Kafka message for an event, keyed by tenant so a tenant's
// events stay ordered within one partition
func EncodeBookingEvent(topic string, event models.BookingEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal booking event: %w", err)
	}
	tenant := strconv.FormatUint(uint64(event.TenantID), 10)
	return kafka.Message{
		Topic: topic,
		Key:   []byte(tenant),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(tenant)},
		},
	}, nil
}

func (kp *KafkaProducer) sendSync(event models.BookingEvent) error {
	msg, err := EncodeBookingEvent(kp.topic, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write booking event to Kafka: %w", err)
	}
	return nil
}

// Close flushes queued events and closes the writer
func (kp *KafkaProducer) Close() error {
	var err error
	kp.closeOnce.Do(func() {
		logrus.Info("Kafka producer shutting down")
		close(kp.shutdownChan)
		kp.wg.Wait()
		if closeErr := kp.writer.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close Kafka writer: %w", closeErr)
		}
	})
	return err
}
