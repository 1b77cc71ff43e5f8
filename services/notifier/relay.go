package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/models"
)

// Sender delivers one event
type Sender interface {
	Send(ctx context.Context, event models.BookingEvent) error
}

// Relay forwards booking events to the webhook and retries failures with exponential backoff
type Relay struct {
	sender        Sender
	store         DeliveryStore
	maxRetries    int
	batchSize     int
	checkInterval time.Duration
	baseDelay     time.Duration
	now           func() time.Time
}

func NewRelay(sender Sender, store DeliveryStore) *Relay {
	return &Relay{
		sender:        sender,
		store:         store,
		maxRetries:    8,
		batchSize:     100,
		checkInterval: 30 * time.Second,
		baseDelay:     time.Minute,
		now:           time.Now,
	}
}

// backoff is the wait after failedRetries unsuccessful retries: 1m, 2m, 4m, ...
func (r *Relay) backoff(failedRetries int) time.Duration {
	if failedRetries > 16 {
		failedRetries = 16
	}
	return r.baseDelay * time.Duration(1<<failedRetries)
}

// HandleEvent sends a freshly consumed event and stores it for retry when the send fails
func (r *Relay) HandleEvent(ctx context.Context, event models.BookingEvent) error {
	sendErr := r.sender.Send(ctx, event)
	if sendErr == nil {
		logrus.WithFields(logrus.Fields{
			"event_type": event.EventType,
			"tenant_id":  event.TenantID,
			"reference":  event.Booking.Reference,
		}).Info("Booking event delivered")
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	nextRetryAt := r.now().Add(r.backoff(0))
	delivery := &models.FailedBookingDelivery{
		OriginalEventID: event.ID,
		TenantID:        event.TenantID,
		EventType:       event.EventType,
		Payload:         string(payload),
		ErrorMessage:    sendErr.Error(),
		Status:          models.DeliveryPending,
		NextRetryAt:     &nextRetryAt,
	}
	if err := r.store.RecordFailure(ctx, delivery); err != nil {
		return fmt.Errorf("failed to store failed delivery: %w", err)
	}

	return fmt.Errorf("delivery failed, stored for retry: %w", sendErr)
}

// RetryDue retries one batch of due deliveries and returns how many it processed
func (r *Relay) RetryDue(ctx context.Context) (int, error) {
	due, err := r.store.DueDeliveries(ctx, r.now(), r.batchSize)
	if err != nil {
		return 0, err
	}

	for i := range due {
		if err := r.retry(ctx, &due[i]); err != nil {
			logrus.WithFields(logrus.Fields{
				"delivery_id": due[i].ID,
				"error":       err,
			}).Error("Failed to update delivery")
		}
	}
	return len(due), nil
}

func (r *Relay) retry(ctx context.Context, delivery *models.FailedBookingDelivery) error {
	var event models.BookingEvent
	if err := json.Unmarshal([]byte(delivery.Payload), &event); err != nil {
		return r.markPermanentlyFailed(ctx, delivery, "Stored payload is not a booking event")
	}

	if err := r.sender.Send(ctx, event); err != nil {
		return r.updateRetryStatus(ctx, delivery, err)
	}
	return r.markResolved(ctx, delivery)
}

// updateRetryStatus updates retry count and next retry time
func (r *Relay) updateRetryStatus(ctx context.Context, delivery *models.FailedBookingDelivery, sendErr error) error {
	now := r.now()
	delivery.RetryCount++
	delivery.UpdatedAt = now

	if delivery.RetryCount >= r.maxRetries {
		delivery.Status = models.DeliveryPermanentlyFailed
		delivery.ResolvedAt = &now
		delivery.ErrorMessage = fmt.Sprintf("Max retries reached: %s", sendErr.Error())
	} else {
		next := now.Add(r.backoff(delivery.RetryCount))
		delivery.NextRetryAt = &next
		delivery.ErrorMessage = sendErr.Error()
	}

	return r.store.SaveDelivery(ctx, delivery)
}

func (r *Relay) markResolved(ctx context.Context, delivery *models.FailedBookingDelivery) error {
	now := r.now()
	delivery.Status = models.DeliveryResolved
	delivery.UpdatedAt = now
	delivery.ResolvedAt = &now
	return r.store.SaveDelivery(ctx, delivery)
}

func (r *Relay) markPermanentlyFailed(ctx context.Context, delivery *models.FailedBookingDelivery, reason string) error {
	now := r.now()
	delivery.Status = models.DeliveryPermanentlyFailed
	delivery.UpdatedAt = now
	delivery.ResolvedAt = &now
	delivery.ErrorMessage = reason
	return r.store.SaveDelivery(ctx, delivery)
}

// RunRetryLoop retries due deliveries every check interval until ctx is cancelled
func (r *Relay) RunRetryLoop(ctx context.Context) {
	logrus.Info("Starting delivery retry loop")

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.RetryDue(ctx)
			if err != nil {
				logrus.WithError(err).Error("Error fetching failed deliveries")
				continue
			}
			if n > 0 {
				logrus.Infof("Processed %d failed deliveries", n)
			}
		}
	}
}

// GetStats returns retry statistics
func (r *Relay) GetStats(ctx context.Context) (map[string]interface{}, error) {
	counts, err := r.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"retry_stats": counts,
		"config": map[string]interface{}{
			"max_retries":    r.maxRetries,
			"batch_size":     r.batchSize,
			"check_interval": r.checkInterval.String(),
		},
	}, nil
}
