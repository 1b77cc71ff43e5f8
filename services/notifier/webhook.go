package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/utils"
)

// WebhookClient relays booking events to the notification endpoint
type WebhookClient struct {
	endpoint    string
	client      *resty.Client
	breaker     *utils.CircuitBreaker
	connected   bool
	lastSuccess time.Time
	lastError   error
	mutex       sync.RWMutex
}

// NewWebhookClient creates a client posting to endpoint
func NewWebhookClient(endpoint string) *WebhookClient {
	return &WebhookClient{
		endpoint: endpoint,
		client:   resty.New().SetTimeout(30 * time.Second),
		breaker:  utils.NewCircuitBreaker("webhook", 5, time.Minute),
	}
}

// Enabled reports whether an endpoint is configured
func (c *WebhookClient) Enabled() bool {
	return c.endpoint != ""
}

// Send posts one booking event
func (c *WebhookClient) Send(ctx context.Context, event models.BookingEvent) error {
	payload := map[string]interface{}{
		"event_type": event.EventType,
		"data":       event,
		"timestamp":  time.Now().UTC(),
	}

	err := c.breaker.Call(func() error {
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetHeader("X-Tenant-ID", strconv.FormatUint(uint64(event.TenantID), 10)).
			SetHeader("X-Event-ID", event.ID.String()).
			SetHeader("X-Event-Type", event.EventType).
			SetBody(payload).
			Post(c.endpoint)
		if err != nil {
			return fmt.Errorf("failed to send booking event: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode())
		}
		return nil
	})

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err != nil {
		c.lastError = err
		c.connected = false
		return err
	}

	c.connected = true
	c.lastSuccess = time.Now()
	c.lastError = nil
	return nil
}

// GetStatus returns the current connection status
func (c *WebhookClient) GetStatus() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	status := map[string]interface{}{
		"enabled":      c.Enabled(),
		"connected":    c.connected,
		"endpoint":     c.endpoint,
		"last_success": c.lastSuccess,
		"circuit":      c.breaker.GetState(),
	}
	if c.lastError != nil {
		status["last_error"] = c.lastError.Error()
	}
	return status
}
