package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordbooking/nordbooking/shared/models"
)

type memDeliveries struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.FailedBookingDelivery
}

func newMemDeliveries() *memDeliveries {
	return &memDeliveries{items: map[uuid.UUID]*models.FailedBookingDelivery{}}
}

func (m *memDeliveries) RecordFailure(_ context.Context, d *models.FailedBookingDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	copied := *d
	m.items[d.ID] = &copied
	return nil
}

func (m *memDeliveries) DueDeliveries(_ context.Context, now time.Time, limit int) ([]models.FailedBookingDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FailedBookingDelivery
	for _, d := range m.items {
		if d.Status == models.DeliveryPending && d.NextRetryAt != nil && !d.NextRetryAt.After(now) {
			out = append(out, *d)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDeliveries) SaveDelivery(_ context.Context, d *models.FailedBookingDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *d
	m.items[d.ID] = &copied
	return nil
}

func (m *memDeliveries) CountByStatus(context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for _, d := range m.items {
		counts[d.Status]++
	}
	return counts, nil
}

func (m *memDeliveries) only(t *testing.T) models.FailedBookingDelivery {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.items, 1)
	for _, d := range m.items {
		return *d
	}
	return models.FailedBookingDelivery{}
}

// webhookServer fails the first `failures` requests
func webhookServer(t *testing.T, failures int32) (*httptest.Server, *int32) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		assert.Equal(t, "7", r.Header.Get("X-Tenant-ID"))
		if n <= failures {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testEvent() models.BookingEvent {
	return models.BookingEvent{
		ID:         uuid.New(),
		EventType:  models.EventBookingCreated,
		TenantID:   7,
		Booking:    models.Booking{Reference: "NB-ABCDEF1234", TenantID: 7},
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestRelayDeliversEvent(t *testing.T) {
	srv, hits := webhookServer(t, 0)
	store := newMemDeliveries()
	relay := NewRelay(NewWebhookClient(srv.URL), store)

	require.NoError(t, relay.HandleEvent(context.Background(), testEvent()))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Empty(t, store.items)
}

func TestRelayStoresFailureAndRetries(t *testing.T) {
	srv, hits := webhookServer(t, 2)
	store := newMemDeliveries()
	relay := NewRelay(NewWebhookClient(srv.URL), store)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	relay.now = func() time.Time { return now }

	event := testEvent()
	assert.Error(t, relay.HandleEvent(context.Background(), event))

	failed := store.only(t)
	assert.Equal(t, event.ID, failed.OriginalEventID)
	assert.Equal(t, now.Add(time.Minute), *failed.NextRetryAt)

	// not due yet
	n, err := relay.RetryDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(time.Minute)
	n, err = relay.RetryDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	failed = store.only(t)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Equal(t, now.Add(2*time.Minute), *failed.NextRetryAt)

	now = now.Add(2 * time.Minute)
	_, err = relay.RetryDue(context.Background())
	require.NoError(t, err)
	failed = store.only(t)
	assert.Equal(t, models.DeliveryResolved, failed.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestRelayGivesUpAfterMaxRetries(t *testing.T) {
	srv, _ := webhookServer(t, 100)
	store := newMemDeliveries()
	relay := NewRelay(NewWebhookClient(srv.URL), store)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	relay.now = func() time.Time { return now }

	assert.Error(t, relay.HandleEvent(context.Background(), testEvent()))
	for i := 0; i < 8; i++ {
		now = now.Add(24 * time.Hour)
		_, err := relay.RetryDue(context.Background())
		require.NoError(t, err)
	}

	failed := store.only(t)
	assert.Equal(t, models.DeliveryPermanentlyFailed, failed.Status)
	assert.Equal(t, 8, failed.RetryCount)
	assert.Contains(t, failed.ErrorMessage, "Max retries reached")
}

func TestStatsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemDeliveries()
	_ = store.RecordFailure(context.Background(), &models.FailedBookingDelivery{Status: models.DeliveryPending})
	relay := NewRelay(logOnlySender{}, store)

	w := httptest.NewRecorder()
	newRouter(relay, NewWebhookClient("")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Data struct {
			RetryStats map[string]int64 `json:"retry_stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, int64(1), env.Data.RetryStats[models.DeliveryPending])
}
