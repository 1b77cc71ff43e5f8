package tenancy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/utils"
)

type memStore struct {
	mu           sync.Mutex
	slugs        map[uint]string
	owners       map[uint]bool
	reservations map[string]models.SlugReservation
	lookups      int
	failWith     error
}

func newMemStore() *memStore {
	return &memStore{
		slugs:        map[uint]string{},
		owners:       map[uint]bool{},
		reservations: map[string]models.SlugReservation{},
	}
}

func (m *memStore) TenantsBySetting(_ context.Context, name, value string) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.failWith != nil {
		return nil, m.failWith
	}
	var ids []uint
	if name != models.SettingBusinessSlug {
		return ids, nil
	}
	for id, slug := range m.slugs {
		if slug == value {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) IsActiveOwner(_ context.Context, tenantID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	return m.owners[tenantID], nil
}

func (m *memStore) Claim(_ context.Context, tenantID uint, slug string, reserveUntil time.Time, check func(SlugState) bool) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, "", m.failWith
	}

	var state SlugState
	for id, held := range m.slugs {
		if held == slug && m.owners[id] {
			state.ActiveHolders = append(state.ActiveHolders, id)
		}
	}
	if r, ok := m.reservations[slug]; ok {
		state.Reservation = &r
	}
	if !check(state) {
		return false, "", nil
	}

	previous := m.slugs[tenantID]
	m.slugs[tenantID] = slug
	if r, ok := m.reservations[slug]; ok && r.TenantID == tenantID {
		delete(m.reservations, slug)
	}
	if previous != "" && previous != slug {
		m.reservations[previous] = models.SlugReservation{Slug: previous, TenantID: tenantID, ReservedUntil: reserveUntil}
	}
	return true, previous, nil
}

func (m *memStore) Release(_ context.Context, tenantID uint, reserveUntil time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slug, ok := m.slugs[tenantID]
	if !ok {
		return "", nil
	}
	delete(m.slugs, tenantID)
	m.reservations[slug] = models.SlugReservation{Slug: slug, TenantID: tenantID, ReservedUntil: reserveUntil}
	return slug, nil
}

func (m *memStore) Discard(_ context.Context, tenantID uint) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slug := m.slugs[tenantID]
	delete(m.slugs, tenantID)
	return slug, nil
}

func (m *memStore) PurgeReservations(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for slug, r := range m.reservations {
		if r.ReservedUntil.Before(now) {
			delete(m.reservations, slug)
			n++
		}
	}
	return n, nil
}

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", utils.ErrCacheMiss
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
