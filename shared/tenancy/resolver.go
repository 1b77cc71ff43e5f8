package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/utils"
)

var (
	// ErrNotFound means the slug does not route to a tenant. Callers must not surface why.
	ErrNotFound = errors.New("tenant not found")
	// ErrStoreUnavailable wraps persistence failures
	ErrStoreUnavailable = errors.New("tenant store unavailable")
)

// SettingsStore looks up tenant settings by value
type SettingsStore interface {
	// TenantsBySetting returns the tenants whose setting name equals value, lowest id first
	TenantsBySetting(ctx context.Context, name, value string) ([]uint, error)
}

// OwnerDirectory answers whether an account currently holds the active business-owner role
type OwnerDirectory interface {
	IsActiveOwner(ctx context.Context, tenantID uint) (bool, error)
}

// Resolver maps public slugs to tenant ids
type Resolver struct {
	settings SettingsStore
	owners   OwnerDirectory
	cache    utils.KV
	cacheTTL time.Duration
}

// NewResolver creates a resolver; cache may be nil
func NewResolver(settings SettingsStore, owners OwnerDirectory, cache utils.KV, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		settings: settings,
		owners:   owners,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func slugCacheKey(slug string) string {
	return fmt.Sprintf("tenant:slug:%s", slug)
}

// Resolve returns the tenant behind slug. Empty input, unknown slugs and slugs whose holder
// is no longer an active business owner all yield ErrNotFound. Input that cannot be a slug
// yields ErrInvalidSlug before any lookup.
func (r *Resolver) Resolve(ctx context.Context, raw string) (uint, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, ErrNotFound
	}
	slug, err := Normalize(raw)
	if err != nil {
		return 0, err
	}

	if tenantID, ok := r.cached(ctx, slug); ok {
		active, err := r.owners.IsActiveOwner(ctx, tenantID)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if active {
			return tenantID, nil
		}
		r.Invalidate(ctx, slug)
	}

	holders, err := r.settings.TenantsBySetting(ctx, models.SettingBusinessSlug, slug)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	for _, tenantID := range holders {
		active, err := r.owners.IsActiveOwner(ctx, tenantID)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if active {
			r.remember(ctx, slug, tenantID)
			return tenantID, nil
		}
	}

	return 0, ErrNotFound
}

// Invalidate drops the cached mapping for slug
func (r *Resolver) Invalidate(ctx context.Context, slug string) {
	if r.cache == nil || slug == "" {
		return
	}
	if err := r.cache.Del(ctx, slugCacheKey(slug)); err != nil {
		logrus.WithError(err).WithField("slug", slug).Warn("Failed to invalidate slug cache")
	}
}

func (r *Resolver) cached(ctx context.Context, slug string) (uint, bool) {
	if r.cache == nil {
		return 0, false
	}
	val, err := r.cache.Get(ctx, slugCacheKey(slug))
	if err != nil {
		if !errors.Is(err, utils.ErrCacheMiss) {
			logrus.WithError(err).Warn("Slug cache read failed, falling back to store")
		}
		return 0, false
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func (r *Resolver) remember(ctx context.Context, slug string, tenantID uint) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, slugCacheKey(slug), strconv.FormatUint(uint64(tenantID), 10), r.cacheTTL); err != nil {
		logrus.WithError(err).Warn("Failed to cache slug")
	}
}
