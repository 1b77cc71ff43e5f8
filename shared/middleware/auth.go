package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/utils"
)

// TokenCookie carries the access token for browser requests
const TokenCookie = "nordbooking_token"

const (
	principalKey = "principal"
	tokenKey     = "access_token"
)

// PrincipalSource resolves an access token to the live account behind it
type PrincipalSource interface {
	Principal(ctx context.Context, token string) (*models.Principal, error)
}

// AuthMiddleware handles token validation
type AuthMiddleware struct {
	source PrincipalSource
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(source PrincipalSource) *AuthMiddleware {
	return &AuthMiddleware{source: source}
}

// ExtractToken reads the token from the Authorization header, falling back to the cookie
func ExtractToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}
		return strings.TrimSpace(authHeader)
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// Resolve returns the principal for the request, or nil for an anonymous caller.
// Only storage failures are returned as errors.
func (am *AuthMiddleware) Resolve(c *gin.Context) (*models.Principal, error) {
	token := ExtractToken(c)
	if token == "" {
		return nil, nil
	}

	principal, err := am.source.Principal(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return nil, nil
		}
		return nil, err
	}

	c.Set(principalKey, principal)
	c.Set(tokenKey, token)
	return principal, nil
}

// OptionalAuth attaches the principal when a valid token is present
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := am.Resolve(c); err != nil {
			logrus.WithError(err).Error("Failed to resolve principal")
			utils.AbortWithError(c, http.StatusServiceUnavailable, "Authentication temporarily unavailable")
			return
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a live session
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := am.Resolve(c)
		if err != nil {
			logrus.WithError(err).Error("Failed to resolve principal")
			utils.AbortWithError(c, http.StatusServiceUnavailable, "Authentication temporarily unavailable")
			return
		}
		if principal == nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "Authorization token required")
			return
		}
		c.Next()
	}
}

// RequireRole middleware validates the principal's role. Must run after RequireAuth.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "Authorization token required")
			return
		}

		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}

		utils.AbortWithError(c, http.StatusForbidden, "Insufficient permissions")
	}
}

// RequireTenantOwner allows only business owners, who always act for their own tenant
func RequireTenantOwner() gin.HandlerFunc {
	return RequireRole(models.RoleBusinessOwner)
}

// EmployerChecker reports whether a tenant is still run by an active business owner
type EmployerChecker interface {
	IsActiveOwner(ctx context.Context, tenantID uint) (bool, error)
}

// RequireTenantMember allows owners and workers of a tenant. A worker's employer is re-checked on
// every request, so demoting or deactivating the owner cuts off their staff at once.
func RequireTenantMember(employers EmployerChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "Authorization token required")
			return
		}
		if principal.TenantID == nil {
			utils.AbortWithError(c, http.StatusForbidden, "Tenant membership required")
			return
		}

		if principal.Role == models.RoleWorker {
			active, err := employers.IsActiveOwner(c.Request.Context(), *principal.TenantID)
			if err != nil {
				logrus.WithError(err).WithField("tenant_id", *principal.TenantID).Error("Failed to verify employer")
				utils.AbortWithError(c, http.StatusServiceUnavailable, "Authorization temporarily unavailable")
				return
			}
			if !active {
				utils.AbortWithError(c, http.StatusForbidden, "Tenant membership required")
				return
			}
		}
		c.Next()
	}
}

// GetPrincipal returns the authenticated principal, or nil
func GetPrincipal(c *gin.Context) *models.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*models.Principal); ok {
			return p
		}
	}
	return nil
}

// GetToken returns the access token the principal was resolved from
func GetToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// GetTenantID returns the tenant the principal acts for
func GetTenantID(c *gin.Context) (uint, bool) {
	p := GetPrincipal(c)
	if p == nil || p.TenantID == nil {
		return 0, false
	}
	return *p.TenantID, true
}

// SetPrincipal attaches a principal to the context
func SetPrincipal(c *gin.Context, p *models.Principal) {
	c.Set(principalKey, p)
}
