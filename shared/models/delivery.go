package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking event types published to Kafka
const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"
	EventBookingRescheduled   = "booking.rescheduled"
	EventBookingStaffAssigned = "booking.staff_assigned"
)

// BookingEvent is published whenever a booking is created or mutated
type BookingEvent struct {
	ID         uuid.UUID `json:"id"`
	EventType  string    `json:"event_type"`
	TenantID   uint      `json:"tenant_id"`
	Booking    Booking   `json:"booking"`
	ActorID    *uint     `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Delivery statuses for FailedBookingDelivery
const (
	DeliveryPending           = "pending"
	DeliveryResolved          = "resolved"
	DeliveryPermanentlyFailed = "permanently_failed"
)

// FailedBookingDelivery represents a booking event the webhook relay could not deliver
type FailedBookingDelivery struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OriginalEventID uuid.UUID  `gorm:"type:uuid;not null;index" json:"original_event_id"`
	TenantID        uint       `gorm:"not null;index" json:"tenant_id"`
	EventType       string     `gorm:"type:varchar(50);not null" json:"event_type"`
	Payload         string     `gorm:"type:jsonb;not null" json:"payload"`
	ErrorMessage    string     `gorm:"not null" json:"error_message"`
	RetryCount      int        `gorm:"default:0" json:"retry_count"`
	Status          string     `gorm:"type:varchar(30);default:'pending';index" json:"status"`
	NextRetryAt     *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func (FailedBookingDelivery) TableName() string {
	return "failed_booking_deliveries"
}
