package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents where a booking is in its lifecycle
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// Valid checks the status is known
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a booking may move from s to next
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is a customer's reservation of a tenant's time. Bookings are never hard-deleted.
type Booking struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Reference       string        `json:"reference" gorm:"type:varchar(32);uniqueIndex;not null"`
	TenantID        uint          `json:"tenant_id" gorm:"not null;index:idx_booking_tenant_date,priority:1"`
	CustomerID      *uint         `json:"customer_id,omitempty" gorm:"index"`
	CustomerName    string        `json:"customer_name" gorm:"type:varchar(255);not null"`
	CustomerEmail   string        `json:"customer_email" gorm:"type:varchar(255);not null"`
	CustomerPhone   string        `json:"customer_phone,omitempty" gorm:"type:varchar(50)"`
	BookingDate     string        `json:"booking_date" gorm:"type:varchar(10);not null;index:idx_booking_tenant_date,priority:2"`
	StartTime       string        `json:"start_time" gorm:"type:varchar(5);not null"`
	EndTime         string        `json:"end_time" gorm:"type:varchar(5);not null"`
	DurationMinutes int           `json:"duration_minutes" gorm:"not null"`
	Status          BookingStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	AssignedStaffID *uint         `json:"assigned_staff_id,omitempty" gorm:"index"`
	DiscountCode    string        `json:"discount_code,omitempty" gorm:"type:varchar(64)"`
	TotalPrice      float64       `json:"total_price" gorm:"type:decimal(10,2);default:0"`
	Notes           string        `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// BlocksTime reports whether the booking occupies its time range
func (b *Booking) BlocksTime() bool {
	return b.Status != BookingCancelled
}
