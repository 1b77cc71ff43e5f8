package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/nordbooking/nordbooking/shared/models"
)

// ScheduleReader reads a tenant's recurring rules and date exceptions
type ScheduleReader interface {
	Rules(ctx context.Context, tenantID uint) ([]models.AvailabilityRule, error)
	// Exception returns nil when the date has no exception
	Exception(ctx context.Context, tenantID uint, date string) (*models.AvailabilityException, error)
}

// ScheduleStore also manages schedules
type ScheduleStore interface {
	ScheduleReader
	ReplaceRules(ctx context.Context, tenantID uint, rules []models.AvailabilityRule) error
	Exceptions(ctx context.Context, tenantID uint, from, to string) ([]models.AvailabilityException, error)
	PutException(ctx context.Context, exception *models.AvailabilityException) error
	DeleteException(ctx context.Context, tenantID uint, date string) (bool, error)
}

// BookingReader lists bookings of a tenant on a date, any status
type BookingReader interface {
	BookingsOn(ctx context.Context, tenantID uint, date string) ([]models.Booking, error)
}

// SlotTx is the view of storage inside a slot lock
type SlotTx interface {
	ScheduleReader
	BookingReader
	InsertBooking(ctx context.Context, booking *models.Booking) error
	// LockBooking re-reads a booking of the tenant and holds its row until the transaction ends
	LockBooking(ctx context.Context, tenantID uint, id uuid.UUID) (*models.Booking, error)
	// MoveBooking writes only the date and time columns of booking
	MoveBooking(ctx context.Context, booking *models.Booking) error
}

// BookingFilter selects bookings for listing
type BookingFilter struct {
	TenantID        uint
	Date            string
	AssignedStaffID *uint
	Status          models.BookingStatus
}

// BookingStore persists bookings
type BookingStore interface {
	BookingReader
	// WithinSlotLock runs fn in one transaction that holds the lock for (tenantID, date).
	// Every insert or move into a date goes through it.
	WithinSlotLock(ctx context.Context, tenantID uint, date string, fn func(tx SlotTx) error) error
	FindBooking(ctx context.Context, tenantID uint, id uuid.UUID) (*models.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	// UpdateBookingStatus sets the status only while it still equals from and reports
	// whether a row changed
	UpdateBookingStatus(ctx context.Context, tenantID uint, id uuid.UUID, from, to models.BookingStatus) (bool, error)
	// AssignBookingStaff writes only the assigned staff column
	AssignBookingStaff(ctx context.Context, tenantID uint, id uuid.UUID, staffID *uint) error
	// CompleteBefore marks confirmed bookings dated before date as completed
	CompleteBefore(ctx context.Context, date string) ([]models.Booking, error)
}

// StaffDirectory verifies staff membership against storage
type StaffDirectory interface {
	IsActiveWorker(ctx context.Context, tenantID, userID uint) (bool, error)
}

// EventPublisher receives booking events after the change is committed
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event models.BookingEvent) error
}
