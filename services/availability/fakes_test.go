package main

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/availability"
	"github.com/nordbooking/nordbooking/shared/models"
)

// memStore is a single-lock store; holding mu for the whole slot callback serialises inserts
type memStore struct {
	mu         sync.Mutex
	slotMu     sync.Mutex
	rules      map[uint][]models.AvailabilityRule
	exceptions map[uint]map[string]models.AvailabilityException
	bookings   map[uuid.UUID]models.Booking
	workers    map[uint]uint
}

func newMemStore() *memStore {
	return &memStore{
		rules:      map[uint][]models.AvailabilityRule{},
		exceptions: map[uint]map[string]models.AvailabilityException{},
		bookings:   map[uuid.UUID]models.Booking{},
		workers:    map[uint]uint{},
	}
}

func (m *memStore) Rules(_ context.Context, tenantID uint) ([]models.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AvailabilityRule(nil), m.rules[tenantID]...), nil
}

func (m *memStore) Exception(_ context.Context, tenantID uint, date string) (*models.AvailabilityException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.exceptions[tenantID][date]; ok {
		return &e, nil
	}
	return nil, nil
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
	for date, e := range m.exceptions[tenantID] {
		if date >= from && (to == "" || date <= to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memStore) PutException(_ context.Context, e *models.AvailabilityException) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exceptions[e.TenantID] == nil {
		m.exceptions[e.TenantID] = map[string]models.AvailabilityException{}
	}
	m.exceptions[e.TenantID][e.Date] = *e
	return nil
}

func (m *memStore) DeleteException(_ context.Context, tenantID uint, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.exceptions[tenantID][date]
	delete(m.exceptions[tenantID], date)
	return ok, nil
}

func (m *memStore) BookingsOn(_ context.Context, tenantID uint, date string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.TenantID == tenantID && b.BookingDate == date {
			out = append(out, b)
		}
	}
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
	stored.BookingDate, stored.StartTime, stored.EndTime = b.BookingDate, b.StartTime, b.EndTime
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
		return availability.ErrBookingNotFound
	}
	b.AssignedStaffID = staffID
	m.bookings[id] = b
	return nil
}

func (m *memStore) WithinSlotLock(_ context.Context, _ uint, _ string, fn func(tx availability.SlotTx) error) error {
	m.slotMu.Lock()
	defer m.slotMu.Unlock()
	return fn(m)
}

func (m *memStore) FindBooking(_ context.Context, tenantID uint, id uuid.UUID) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.TenantID != tenantID {
		return nil, availability.ErrBookingNotFound
	}
	return &b, nil
}

func (m *memStore) ListBookings(_ context.Context, f availability.BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.TenantID != f.TenantID || (f.Date != "" && b.BookingDate != f.Date) {
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

func (m *memStore) CompleteBefore(context.Context, string) ([]models.Booking, error) {
	return nil, nil
}

func (m *memStore) IsActiveWorker(_ context.Context, tenantID, userID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	employer, ok := m.workers[userID]
	return ok && employer == tenantID, nil
}

type activeOwners map[uint]bool

func (a activeOwners) IsActiveOwner(_ context.Context, tenantID uint) (bool, error) {
	return a[tenantID], nil
}

type tokenSource map[string]*models.Principal

func (s tokenSource) Principal(_ context.Context, token string) (*models.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, auth.ErrUnauthenticated
}
