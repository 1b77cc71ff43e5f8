package availability

import (
	"context"
	"fmt"

	"github.com/nordbooking/nordbooking/shared/config"
	"github.com/nordbooking/nordbooking/shared/models"
)

// TimeSlot is one bookable candidate
type TimeSlot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// Label renders the slot for display, e.g. "09:00 - 10:00"
func (s TimeSlot) Label() string {
	return s.Start + " - " + s.End
}

// SlotQuery asks for the slots of one tenant on one date
type SlotQuery struct {
	TenantID        uint
	Date            string
	DurationMinutes int
}

// DaySource says where the effective day entry came from
type DaySource string

const (
	SourceRecurring DaySource = "recurring"
	SourceException DaySource = "exception"
	SourceFallback  DaySource = "fallback"
)

// Engine computes availability from recurring rules, date exceptions and bookings.
// StepMinutes is the slot quantum; 0 steps by the requested duration.
type Engine struct {
	schedules   ScheduleReader
	bookings    BookingReader
	stepMinutes int
	fallback    WeekSchedule
}

func NewEngine(schedules ScheduleReader, bookings BookingReader, stepMinutes int) *Engine {
	return &Engine{
		schedules:   schedules,
		bookings:    bookings,
		stepMinutes: stepMinutes,
	}
}

// WithFallback returns an engine that uses week for tenants with no stored rules and no
// exception on the requested date. Without it such tenants have no slots.
func (e *Engine) WithFallback(week WeekSchedule) *Engine {
	clone := *e
	clone.fallback = week.Normalized()
	return &clone
}

// GetRecurringSchedule returns the tenant's seven day entries, Sunday first
func (e *Engine) GetRecurringSchedule(ctx context.Context, tenantID uint) (WeekSchedule, error) {
	rules, err := e.schedules.Rules(ctx, tenantID)
	if err != nil {
		return nil, storeErr(err)
	}
	return WeekFromRules(rules), nil
}

// EffectiveDay returns the entry that governs date: an exception fully replaces the recurring entry
func (e *Engine) EffectiveDay(ctx context.Context, tenantID uint, date string) (DayEntry, DaySource, error) {
	return e.effectiveDay(ctx, e.schedules, tenantID, date)
}

func (e *Engine) effectiveDay(ctx context.Context, schedules ScheduleReader, tenantID uint, date string) (DayEntry, DaySource, error) {
	day, err := ParseDate(date)
	if err != nil {
		return DayEntry{}, "", err
	}
	dow := int(day.Weekday())

	exception, err := schedules.Exception(ctx, tenantID, date)
	if err != nil {
		return DayEntry{}, "", storeErr(err)
	}
	if exception != nil {
		entry := DayEntry{DayOfWeek: dow, DayName: config.DayNames[dow], Slots: []models.TimeWindow{}}
		if !exception.IsClosed {
			entry.Enabled = len(exception.Slots) > 0
			entry.Slots = sortedWindows(exception.Slots)
		}
		return entry, SourceException, nil
	}

	rules, err := schedules.Rules(ctx, tenantID)
	if err != nil {
		return DayEntry{}, "", storeErr(err)
	}
	if len(rules) == 0 && e.fallback != nil {
		return e.fallback[dow], SourceFallback, nil
	}
	return WeekFromRules(rules)[dow], SourceRecurring, nil
}

// ComputeAvailableSlots returns every candidate slot for the date ordered by start, with
// candidates overlapping a non-cancelled booking marked unavailable
func (e *Engine) ComputeAvailableSlots(ctx context.Context, q SlotQuery) ([]TimeSlot, error) {
	return e.computeSlots(ctx, e.schedules, e.bookings, q)
}

func (e *Engine) computeSlots(ctx context.Context, schedules ScheduleReader, bookings BookingReader, q SlotQuery) ([]TimeSlot, error) {
	if err := validateDuration(q.DurationMinutes); err != nil {
		return nil, err
	}

	entry, _, err := e.effectiveDay(ctx, schedules, q.TenantID, q.Date)
	if err != nil {
		return nil, err
	}
	if !entry.Enabled || len(entry.Slots) == 0 {
		return []TimeSlot{}, nil
	}

	windows, err := ParseWindows(entry.Slots)
	if err != nil {
		return nil, fmt.Errorf("stored schedule for tenant %d is corrupt: %v", q.TenantID, err)
	}

	existing, err := bookings.BookingsOn(ctx, q.TenantID, q.Date)
	if err != nil {
		return nil, storeErr(err)
	}
	busy, err := busyIntervals(existing, nil)
	if err != nil {
		return nil, err
	}

	return GenerateSlots(windows, q.DurationMinutes, e.stepMinutes, busy), nil
}

// GenerateSlots steps through each window. Candidates whose end passes the window end are
// dropped; candidates overlapping busy are kept but marked unavailable.
func GenerateSlots(windows []Interval, durationMinutes, stepMinutes int, busy []Interval) []TimeSlot {
	step := stepMinutes
	if step <= 0 {
		step = durationMinutes
	}

	slots := []TimeSlot{}
	for _, w := range windows {
		for start := w.Start; start+Clock(durationMinutes) <= w.End; start += Clock(step) {
			candidate := Interval{Start: start, End: start + Clock(durationMinutes)}
			slots = append(slots, TimeSlot{
				Start:     candidate.Start.String(),
				End:       candidate.End.String(),
				Available: !overlapsAny(candidate, busy),
			})
		}
	}
	return slots
}

// fits reports whether candidate lies inside one window and clear of busy
func fits(candidate Interval, windows []Interval, busy []Interval) bool {
	inside := false
	for _, w := range windows {
		if w.Contains(candidate) {
			inside = true
			break
		}
	}
	return inside && !overlapsAny(candidate, busy)
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// busyIntervals collects the time blocked by bookings, skipping cancelled ones and ignore
func busyIntervals(bookings []models.Booking, ignore *models.Booking) ([]Interval, error) {
	busy := make([]Interval, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]
		if !b.BlocksTime() || (ignore != nil && b.ID == ignore.ID) {
			continue
		}
		start, err := ParseClock(b.StartTime)
		if err != nil {
			return nil, fmt.Errorf("booking %s has corrupt start time: %w", b.Reference, err)
		}
		end, err := ParseClock(b.EndTime)
		if err != nil {
			return nil, fmt.Errorf("booking %s has corrupt end time: %w", b.Reference, err)
		}
		busy = append(busy, Interval{Start: start, End: end})
	}
	return busy, nil
}

func validateDuration(minutes int) error {
	if minutes <= 0 {
		return invalid("duration", "must be positive, got %d", minutes)
	}
	if minutes > minutesPerDay {
		return invalid("duration", "%d minutes exceeds one day", minutes)
	}
	return nil
}
