package availability

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/models"
)

// NewBooking is a booking request from the public form or the dashboard
type NewBooking struct {
	TenantID        uint
	Date            string
	StartTime       string
	DurationMinutes int
	CustomerID      *uint
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	DiscountCode    string
	TotalPrice      float64
	Notes           string
}

func (n *NewBooking) validate() (Interval, error) {
	if _, err := ParseDate(n.Date); err != nil {
		return Interval{}, err
	}
	if err := validateDuration(n.DurationMinutes); err != nil {
		return Interval{}, err
	}
	start, err := ParseClock(n.StartTime)
	if err != nil {
		return Interval{}, invalid("start_time", "%v", err)
	}
	if int(start)+n.DurationMinutes > minutesPerDay {
		return Interval{}, invalid("duration", "booking would run past midnight")
	}
	if strings.TrimSpace(n.CustomerName) == "" {
		return Interval{}, invalid("customer_name", "is required")
	}
	if _, err := mail.ParseAddress(n.CustomerEmail); err != nil {
		return Interval{}, invalid("customer_email", "%q is not an email address", n.CustomerEmail)
	}
	if n.TotalPrice < 0 {
		return Interval{}, invalid("total_price", "must not be negative")
	}
	return Interval{Start: start, End: start + Clock(n.DurationMinutes)}, nil
}

// BookingService owns every booking mutation. Inserts and reschedules re-check the slot
// inside the (tenant, date) lock so concurrent requests for one slot cannot both succeed.
type BookingService struct {
	engine *Engine
	store  BookingStore
	staff  StaffDirectory
	events EventPublisher
	now    func() time.Time
}

func NewBookingService(engine *Engine, store BookingStore, staff StaffDirectory, events EventPublisher) *BookingService {
	return &BookingService{
		engine: engine,
		store:  store,
		staff:  staff,
		events: events,
		now:    time.Now,
	}
}

func newReference() string {
	return "NB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// checkSlot verifies candidate against the effective schedule and the other bookings of the
// date as seen inside the lock
func (s *BookingService) checkSlot(ctx context.Context, tx SlotTx, tenantID uint, date string, candidate Interval, ignore *models.Booking) error {
	entry, _, err := s.engine.effectiveDay(ctx, tx, tenantID, date)
	if err != nil {
		return err
	}
	if !entry.Enabled {
		return ErrSlotUnavailable
	}
	windows, err := ParseWindows(entry.Slots)
	if err != nil {
		return fmt.Errorf("stored schedule for tenant %d is corrupt: %v", tenantID, err)
	}

	existing, err := tx.BookingsOn(ctx, tenantID, date)
	if err != nil {
		return storeErr(err)
	}
	busy, err := busyIntervals(existing, ignore)
	if err != nil {
		return err
	}

	if !fits(candidate, windows, busy) {
		return ErrSlotUnavailable
	}
	return nil
}

func lockErr(err error) error {
	var v *ValidationError
	switch {
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrStoreUnavailable), errors.As(err, &v):
		return err
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrInvalidTransition):
		return err
	}
	return storeErr(err)
}

// Create validates the request and inserts a pending booking
func (s *BookingService) Create(ctx context.Context, req NewBooking) (*models.Booking, error) {
	candidate, err := req.validate()
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:              uuid.New(),
		Reference:       newReference(),
		TenantID:        req.TenantID,
		CustomerID:      req.CustomerID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		BookingDate:     req.Date,
		StartTime:       candidate.Start.String(),
		EndTime:         candidate.End.String(),
		DurationMinutes: req.DurationMinutes,
		Status:          models.BookingPending,
		DiscountCode:    strings.TrimSpace(req.DiscountCode),
		TotalPrice:      req.TotalPrice,
		Notes:           req.Notes,
	}

	err = s.store.WithinSlotLock(ctx, req.TenantID, req.Date, func(tx SlotTx) error {
		if err := s.checkSlot(ctx, tx, req.TenantID, req.Date, candidate, nil); err != nil {
			return err
		}
		return tx.InsertBooking(ctx, booking)
	})
	if err != nil {
		return nil, lockErr(err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": booking.TenantID,
		"reference": booking.Reference,
		"date":      booking.BookingDate,
		"start":     booking.StartTime,
	}).Info("Booking created")

	s.publish(ctx, models.EventBookingCreated, booking, nil)
	return booking, nil
}

// Get loads a booking of the tenant; bookings of other tenants are reported as not found
func (s *BookingService) Get(ctx context.Context, tenantID uint, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.store.FindBooking(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, storeErr(err)
	}
	return booking, nil
}

// List returns bookings matching filter
func (s *BookingService) List(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	if filter.Date != "" {
		if _, err := ParseDate(filter.Date); err != nil {
			return nil, err
		}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "unknown status %q", filter.Status)
	}
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, storeErr(err)
	}
	return bookings, nil
}

// UpdateStatus moves a booking along its lifecycle. The write only lands if the status is
// still the one the transition was checked against.
func (s *BookingService) UpdateStatus(ctx context.Context, tenantID uint, id uuid.UUID, next models.BookingStatus, actorID *uint) (*models.Booking, error) {
	if !next.Valid() {
		return nil, invalid("status", "unknown status %q", next)
	}
	booking, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, booking.Status, next)
	}

	changed, err := s.store.UpdateBookingStatus(ctx, tenantID, id, booking.Status, next)
	if err != nil {
		return nil, storeErr(err)
	}
	if !changed {
		current, err := s.Get(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: status changed to %s", ErrInvalidTransition, current.Status)
	}

	booking.Status = next
	booking.UpdatedAt = s.now()
	s.publish(ctx, models.EventBookingStatusChanged, booking, actorID)
	return booking, nil
}

// Reschedule moves an open booking to a new date and start time, checked like an insert.
// The booking is re-read under the target date's lock so a concurrent cancellation wins.
func (s *BookingService) Reschedule(ctx context.Context, tenantID uint, id uuid.UUID, date, startTime string, actorID *uint) (*models.Booking, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	start, err := ParseClock(startTime)
	if err != nil {
		return nil, invalid("start_time", "%v", err)
	}

	var booking *models.Booking
	err = s.store.WithinSlotLock(ctx, tenantID, date, func(tx SlotTx) error {
		current, err := tx.LockBooking(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current.Status != models.BookingPending && current.Status != models.BookingConfirmed {
			return fmt.Errorf("%w: %s bookings cannot be rescheduled", ErrInvalidTransition, current.Status)
		}
		if int(start)+current.DurationMinutes > minutesPerDay {
			return invalid("start_time", "booking would run past midnight")
		}
		candidate := Interval{Start: start, End: start + Clock(current.DurationMinutes)}
		if err := s.checkSlot(ctx, tx, tenantID, date, candidate, current); err != nil {
			return err
		}

		current.BookingDate = date
		current.StartTime = candidate.Start.String()
		current.EndTime = candidate.End.String()
		current.UpdatedAt = s.now()
		if err := tx.MoveBooking(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, lockErr(err)
	}

	s.publish(ctx, models.EventBookingRescheduled, booking, actorID)
	return booking, nil
}

// AssignStaff sets or clears the assigned worker. Membership is checked against storage.
func (s *BookingService) AssignStaff(ctx context.Context, tenantID uint, id uuid.UUID, staffID *uint, actorID *uint) (*models.Booking, error) {
	if staffID != nil {
		ok, err := s.staff.IsActiveWorker(ctx, tenantID, *staffID)
		if err != nil {
			return nil, storeErr(err)
		}
		if !ok {
			return nil, ErrStaffNotInTenant
		}
	}

	if err := s.store.AssignBookingStaff(ctx, tenantID, id, staffID); err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, storeErr(err)
	}
	booking, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, models.EventBookingStaffAssigned, booking, actorID)
	return booking, nil
}

// CompletePast marks confirmed bookings before today as completed
func (s *BookingService) CompletePast(ctx context.Context) (int, error) {
	today := s.now().Format(DateLayout)
	completed, err := s.store.CompleteBefore(ctx, today)
	if err != nil {
		return 0, storeErr(err)
	}
	for i := range completed {
		s.publish(ctx, models.EventBookingStatusChanged, &completed[i], nil)
	}
	return len(completed), nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *models.Booking, actorID *uint) {
	if s.events == nil {
		return
	}
	event := models.BookingEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		TenantID:   booking.TenantID,
		Booking:    *booking,
		ActorID:    actorID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishBookingEvent(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"event_type": eventType,
			"reference":  booking.Reference,
			"error":      err,
		}).Error("Failed to publish booking event")
	}
}
