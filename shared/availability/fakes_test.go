package availability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nordbooking/nordbooking/shared/models"
)

type memStore struct {
	mu         sync.Mutex
	rules      map[uint][]models.AvailabilityRule
	exceptions map[string]models.AvailabilityException
	bookings   map[uuid.UUID]models.Booking
	workers    map[uint]uint
	locks      sync.Map
	failWith   error
}

func newMemStore() *memStore {
	return &memStore{
		rules:      map[uint][]models.AvailabilityRule{},
		exceptions: map[string]models.AvailabilityException{},
		bookings:   map[uuid.UUID]models.Booking{},
		workers:    map[uint]uint{},
	}
}

func exceptionKey(tenantID uint, date string) string {
	return fmt.Sprintf("%d|%s", tenantID, date)
}

func (m *memStore) Rules(_ context.Context, tenantID uint) ([]models.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return append([]models.AvailabilityRule(nil), m.rules[tenantID]...), nil
}

func (m *memStore) Exception(_ context.Context, tenantID uint, date string) (*models.AvailabilityException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	e, ok := m.exceptions[exceptionKey(tenantID, date)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memStore) ReplaceRules(_ context.Context, tenantID uint, rules []models.AvailabilityRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[tenantID] = rules
	return nil
}

func (m *memStore) Exceptions(_ context.Context, tenantID uint, from, to string) ([]models.AvailabilityException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AvailabilityException
	for _, e := range m.exceptions {
		if e.TenantID == tenantID && (from == "" || e.Date >= from) && (to == "" || e.Date <= to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memStore) PutException(_ context.Context, e *models.AvailabilityException) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exceptions[exceptionKey(e.TenantID, e.Date)] = *e
	return nil
}

func (m *memStore) DeleteException(_ context.Context, tenantID uint, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := exceptionKey(tenantID, date)
	_, ok := m.exceptions[key]
	delete(m.exceptions, key)
	return ok, nil
}

func (m *memStore) BookingsOn(_ context.Context, tenantID uint, date string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []models.Booking
	for _, b := range m.bookings {
		if b.TenantID == tenantID && b.BookingDate == date {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *memStore) InsertBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	return nil
}

func (m *memStore) LockBooking(ctx context.Context, tenantID uint, id uuid.UUID) (*models.Booking, error) {
	return m.FindBooking(ctx, tenantID, id)
}

func (m *memStore) MoveBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.bookings[b.ID]
	stored.BookingDate = b.BookingDate
	stored.StartTime = b.StartTime
	stored.EndTime = b.EndTime
	stored.UpdatedAt = b.UpdatedAt
	m.bookings[b.ID] = stored
	return nil
}

func (m *memStore) UpdateBookingStatus(_ context.Context, tenantID uint, id uuid.UUID, from, to models.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.TenantID != tenantID || b.Status != from {
		return false, nil
	}
	b.Status = to
	m.bookings[id] = b
	return true, nil
}

func (m *memStore) AssignBookingStaff(_ context.Context, tenantID uint, id uuid.UUID, staffID *uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.TenantID != tenantID {
		return ErrBookingNotFound
	}
	b.AssignedStaffID = staffID
	m.bookings[id] = b
	return nil
}

func (m *memStore) setStatus(id uuid.UUID, status models.BookingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[id]
	b.Status = status
	m.bookings[id] = b
}

func (m *memStore) WithinSlotLock(ctx context.Context, tenantID uint, date string, fn func(tx SlotTx) error) error {
	lock, _ := m.locks.LoadOrStore(exceptionKey(tenantID, date), &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()
	return fn(m)
}

func (m *memStore) FindBooking(_ context.Context, tenantID uint, id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.TenantID != tenantID {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *memStore) ListBookings(_ context.Context, f BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.TenantID != f.TenantID {
			continue
		}
		if f.Date != "" && b.BookingDate != f.Date {
			continue
		}
		if f.AssignedStaffID != nil && (b.AssignedStaffID == nil || *b.AssignedStaffID != *f.AssignedStaffID) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (m *memStore) CompleteBefore(_ context.Context, date string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for id, b := range m.bookings {
		if b.Status == models.BookingConfirmed && b.BookingDate < date {
			b.Status = models.BookingCompleted
			m.bookings[id] = b
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) IsActiveWorker(_ context.Context, tenantID, userID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	employer, ok := m.workers[userID]
	return ok && employer == tenantID, nil
}

func (m *memStore) addBooking(tenantID uint, date, start, end string, status models.BookingStatus) models.Booking {
	b := models.Booking{
		ID:          uuid.New(),
		Reference:   newReference(),
		TenantID:    tenantID,
		BookingDate: date,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
	}
	m.bookings[b.ID] = b
	return b
}

func (m *memStore) setDay(tenantID uint, dow int, enabled bool, windows ...models.TimeWindow) {
	m.rules[tenantID] = append(m.rules[tenantID], models.AvailabilityRule{
		TenantID:  tenantID,
		DayOfWeek: dow,
		IsEnabled: enabled,
		Slots:     windows,
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (p *recordingPublisher) PublishBookingEvent(_ context.Context, e models.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

func window(start, end string) models.TimeWindow {
	return models.TimeWindow{Start: start, End: end}
}
