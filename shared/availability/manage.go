package availability

import (
	"context"
	"time"

	"github.com/nordbooking/nordbooking/shared/models"
)

// ScheduleManager validates and stores a tenant's schedule and date exceptions
type ScheduleManager struct {
	store ScheduleStore
	now   func() time.Time
}

func NewScheduleManager(store ScheduleStore) *ScheduleManager {
	return &ScheduleManager{store: store, now: time.Now}
}

// SaveSchedule replaces the tenant's weekly schedule after validating every day
func (m *ScheduleManager) SaveSchedule(ctx context.Context, tenantID uint, week WeekSchedule) (WeekSchedule, error) {
	if err := week.Validate(); err != nil {
		return nil, err
	}
	normalized := week.Normalized()
	if err := m.store.ReplaceRules(ctx, tenantID, normalized.Rules(tenantID)); err != nil {
		return nil, storeErr(err)
	}
	return normalized, nil
}

// ExceptionInput overrides one date. Closed dates carry no windows.
type ExceptionInput struct {
	Date     string
	IsClosed bool
	Slots    []models.TimeWindow
	Reason   string
}

// PutException creates or replaces the exception for a date
func (m *ScheduleManager) PutException(ctx context.Context, tenantID uint, in ExceptionInput) (*models.AvailabilityException, error) {
	if _, err := ParseDate(in.Date); err != nil {
		return nil, err
	}

	slots := []models.TimeWindow{}
	if !in.IsClosed {
		if len(in.Slots) == 0 {
			return nil, invalid("slots", "an open exception needs at least one window")
		}
		if _, err := ParseWindows(in.Slots); err != nil {
			return nil, err
		}
		slots = sortedWindows(in.Slots)
	}

	exception := &models.AvailabilityException{
		TenantID: tenantID,
		Date:     in.Date,
		IsClosed: in.IsClosed,
		Slots:    models.TimeWindows(slots),
		Reason:   in.Reason,
	}
	if err := m.store.PutException(ctx, exception); err != nil {
		return nil, storeErr(err)
	}
	return exception, nil
}

// ListExceptions returns exceptions between from and to inclusive. An empty from means today.
func (m *ScheduleManager) ListExceptions(ctx context.Context, tenantID uint, from, to string) ([]models.AvailabilityException, error) {
	if from == "" {
		from = m.now().Format(DateLayout)
	}
	if _, err := ParseDate(from); err != nil {
		return nil, err
	}
	if to != "" {
		if _, err := ParseDate(to); err != nil {
			return nil, err
		}
		if to < from {
			return nil, invalid("to", "%s is before %s", to, from)
		}
	}

	exceptions, err := m.store.Exceptions(ctx, tenantID, from, to)
	if err != nil {
		return nil, storeErr(err)
	}
	if exceptions == nil {
		exceptions = []models.AvailabilityException{}
	}
	return exceptions, nil
}

// DeleteException removes the exception so the recurring schedule applies again
func (m *ScheduleManager) DeleteException(ctx context.Context, tenantID uint, date string) error {
	if _, err := ParseDate(date); err != nil {
		return err
	}
	deleted, err := m.store.DeleteException(ctx, tenantID, date)
	if err != nil {
		return storeErr(err)
	}
	if !deleted {
		return ErrExceptionNotFound
	}
	return nil
}
