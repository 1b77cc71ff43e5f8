package main

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/middleware"
	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/tenancy"
	"github.com/nordbooking/nordbooking/shared/utils"
)

// SlugResolver maps a public slug to its tenant
type SlugResolver interface {
	Resolve(ctx context.Context, raw string) (uint, error)
}

// SlugAssigner gives tenants their public slug
type SlugAssigner interface {
	Assign(ctx context.Context, tenantID uint, businessName string) (string, error)
	Release(ctx context.Context, tenantID uint) (string, error)
}

// SettingsStore reads and writes tenant settings
type SettingsStore interface {
	Settings(ctx context.Context, tenantID uint) (map[string]string, error)
	PutSetting(ctx context.Context, tenantID uint, name, value string) error
}

type tenantDeps struct {
	resolver SlugResolver
	slugs    SlugAssigner
	settings SettingsStore
	accounts auth.AccountStore
}

// UpdateTenantRequest represents the update tenant request
type UpdateTenantRequest struct {
	BusinessName *string `json:"business_name"`
	// Slug overrides the slug derived from the business name
	Slug *string `json:"slug"`
}

func writeTenantError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, tenancy.ErrInvalidSlug):
		utils.BadRequestResponse(c, "Invalid slug")
	case errors.Is(err, tenancy.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		utils.NotFoundResponse(c, "Tenant not found")
	case errors.Is(err, tenancy.ErrSlugExhausted):
		utils.ConflictResponse(c, "No free booking address for this name")
	case errors.Is(err, tenancy.ErrStoreUnavailable):
		logrus.WithError(err).Error(fallback)
		utils.ServiceUnavailableResponse(c, fallback)
	default:
		logrus.WithError(err).Error(fallback)
		utils.InternalServerErrorResponse(c, fallback)
	}
}

func loadProfile(ctx context.Context, deps *tenantDeps, tenantID uint) (*models.TenantProfile, error) {
	owner, err := deps.accounts.FindUserByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	settings, err := deps.settings.Settings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &models.TenantProfile{
		TenantID:     tenantID,
		BusinessName: settings[models.SettingBusinessName],
		Slug:         settings[models.SettingBusinessSlug],
		Status:       owner.Status,
	}, nil
}

// handleResolveSlug maps a public slug to its tenant
func handleResolveSlug(deps *tenantDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := deps.resolver.Resolve(c.Request.Context(), c.Param("slug"))
		if err != nil {
			writeTenantError(c, err, "Failed to resolve tenant")
			return
		}
		utils.OKResponse(c, "Tenant resolved", gin.H{"tenant_id": tenantID})
	}
}

// handleGetTenant returns the caller's tenant profile
func handleGetTenant(deps *tenantDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)

		profile, err := loadProfile(c.Request.Context(), deps, tenantID)
		if err != nil {
			writeTenantError(c, err, "Failed to fetch tenant")
			return
		}
		utils.OKResponse(c, "Tenant retrieved successfully", profile)
	}
}

// handleUpdateTenant renames the business and re-derives its slug. The old slug goes into
// cool-down.
func handleUpdateTenant(deps *tenantDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)
		ctx := c.Request.Context()

		var req UpdateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil || (req.BusinessName == nil && req.Slug == nil) {
			utils.BadRequestResponse(c, "Provide a business_name or a slug")
			return
		}

		slugSource := ""
		if req.BusinessName != nil {
			if _, err := tenancy.DeriveSlug(*req.BusinessName); err != nil {
				utils.BadRequestResponse(c, "Business name must contain letters or digits")
				return
			}
			slugSource = *req.BusinessName
		}
		if req.Slug != nil {
			slugSource = *req.Slug
		}

		if _, err := deps.slugs.Assign(ctx, tenantID, slugSource); err != nil {
			writeTenantError(c, err, "Failed to update tenant")
			return
		}
		if req.BusinessName != nil {
			if err := deps.settings.PutSetting(ctx, tenantID, models.SettingBusinessName, *req.BusinessName); err != nil {
				writeTenantError(c, err, "Failed to update tenant")
				return
			}
		}

		profile, err := loadProfile(ctx, deps, tenantID)
		if err != nil {
			writeTenantError(c, err, "Failed to fetch tenant")
			return
		}
		utils.OKResponse(c, "Tenant updated successfully", profile)
	}
}

// handleDeactivateTenant suspends the owner and releases the slug into cool-down
func handleDeactivateTenant(deps *tenantDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)
		ctx := c.Request.Context()

		owner, err := deps.accounts.FindUserByID(ctx, tenantID)
		if err != nil {
			writeTenantError(c, err, "Failed to fetch tenant")
			return
		}

		owner.Status = models.AccountSuspended
		if err := deps.accounts.SaveUser(ctx, owner); err != nil {
			writeTenantError(c, err, "Failed to deactivate tenant")
			return
		}

		slug, err := deps.slugs.Release(ctx, tenantID)
		if err != nil {
			writeTenantError(c, err, "Failed to release tenant slug")
			return
		}

		utils.OKResponse(c, "Tenant deactivated", gin.H{
			"tenant_id":     tenantID,
			"released_slug": slug,
		})
	}
}

// handleGetTenantUsers lists the workers of the caller's tenant
func handleGetTenantUsers(deps *tenantDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)

		users, err := deps.accounts.ListWorkers(c.Request.Context(), tenantID)
		if err != nil {
			writeTenantError(c, err, "Failed to fetch tenant users")
			return
		}
		utils.OKResponse(c, "Tenant users retrieved successfully", users)
	}
}
