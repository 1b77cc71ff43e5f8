package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/models"
)

const (
	maxSuffix = 99
	// room for "-99"
	suffixReserve = 3
)

// ErrSlugExhausted is returned when every suffixed variant of a slug is taken
var ErrSlugExhausted = errors.New("no free slug variant")

// SlugState is what a store reports about a slug while holding its lock
type SlugState struct {
	// ActiveHolders are active business owners whose business_slug equals the slug
	ActiveHolders []uint
	Reservation   *models.SlugReservation
}

// SlugStore persists slug assignments and cool-down reservations
type SlugStore interface {
	// Claim locks slug, asks check whether tenantID may take it and, if so, stores it as the
	// tenant's business_slug. A different previous slug is put into reservation until
	// reserveUntil and returned.
	Claim(ctx context.Context, tenantID uint, slug string, reserveUntil time.Time, check func(SlugState) bool) (claimed bool, previous string, err error)
	// Release removes the tenant's slug and reserves it until the given time
	Release(ctx context.Context, tenantID uint, reserveUntil time.Time) (string, error)
	// Discard removes the tenant's slug without reserving it
	Discard(ctx context.Context, tenantID uint) (string, error)
	PurgeReservations(ctx context.Context, now time.Time) (int64, error)
}

// CacheInvalidator drops cached slug mappings
type CacheInvalidator interface {
	Invalidate(ctx context.Context, slug string)
}

// Registry assigns unique slugs. A slug is taken while another active owner holds it or while
// it sits in another tenant's release cool-down, so old links never route to a new business.
type Registry struct {
	store    SlugStore
	cache    CacheInvalidator
	cooldown time.Duration
	now      func() time.Time
}

func NewRegistry(store SlugStore, cache CacheInvalidator, cooldown time.Duration) *Registry {
	return &Registry{
		store:    store,
		cache:    cache,
		cooldown: cooldown,
		now:      time.Now,
	}
}

func slugAvailable(state SlugState, tenantID uint, now time.Time) bool {
	for _, holder := range state.ActiveHolders {
		if holder != tenantID {
			return false
		}
	}
	if state.Reservation != nil && state.Reservation.HeldAgainst(tenantID, now) {
		return false
	}
	return true
}

// Assign derives a slug from businessName and stores it for the tenant, appending -2, -3, ...
// on collision
func (r *Registry) Assign(ctx context.Context, tenantID uint, businessName string) (string, error) {
	base, err := DeriveSlug(businessName)
	if err != nil {
		return "", err
	}

	now := r.now()
	check := func(state SlugState) bool { return slugAvailable(state, tenantID, now) }

	for n := 1; n <= maxSuffix; n++ {
		candidate := base
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		claimed, previous, err := r.store.Claim(ctx, tenantID, candidate, now.Add(r.cooldown), check)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if !claimed {
			continue
		}

		if previous != "" && previous != candidate {
			r.invalidate(ctx, previous)
			logrus.WithFields(logrus.Fields{
				"tenant_id": tenantID,
				"old_slug":  previous,
				"new_slug":  candidate,
			}).Info("Tenant slug changed, old slug reserved")
		}
		r.invalidate(ctx, candidate)
		return candidate, nil
	}

	return "", ErrSlugExhausted
}

// Release puts the tenant's slug into cool-down, used when an owner is demoted or deactivated
func (r *Registry) Release(ctx context.Context, tenantID uint) (string, error) {
	slug, err := r.store.Release(ctx, tenantID, r.now().Add(r.cooldown))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if slug != "" {
		r.invalidate(ctx, slug)
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"slug":      slug,
		}).Info("Slug released into cool-down")
	}
	return slug, nil
}

// Discard frees the tenant's slug at once. It undoes an assignment whose tenant never came into
// being, so there are no links to protect.
func (r *Registry) Discard(ctx context.Context, tenantID uint) error {
	slug, err := r.store.Discard(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if slug != "" {
		r.invalidate(ctx, slug)
	}
	return nil
}

// PurgeExpired deletes reservations whose cool-down has ended
func (r *Registry) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := r.store.PurgeReservations(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return n, nil
}

func (r *Registry) invalidate(ctx context.Context, slug string) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, slug)
	}
}
