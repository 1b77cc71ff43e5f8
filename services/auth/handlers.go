package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/middleware"
	"github.com/nordbooking/nordbooking/shared/tenancy"
	"github.com/nordbooking/nordbooking/shared/utils"
)

// RegisterRequest represents the owner registration request
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	DisplayName  string `json:"display_name"`
	BusinessName string `json:"business_name" binding:"required"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// WorkerRequest represents a new worker account
type WorkerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

// writeAccountError maps account errors onto the response envelope
func writeAccountError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		utils.ConflictResponse(c, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		utils.UnauthorizedResponse(c, "Invalid credentials")
	case errors.Is(err, auth.ErrAccountDisabled):
		utils.ForbiddenResponse(c, "Account disabled")
	case errors.Is(err, auth.ErrProviderUnavailable):
		utils.ServiceUnavailableResponse(c, "Authentication service temporarily unavailable")
	case errors.Is(err, auth.ErrUserNotFound):
		utils.NotFoundResponse(c, "User not found")
	case errors.Is(err, errNotYourWorker):
		utils.ForbiddenResponse(c, "You can only manage your own workers")
	case errors.Is(err, errInvalidRoleEdit):
		utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, tenancy.ErrInvalidSlug):
		utils.BadRequestResponse(c, "Business name must contain letters or digits")
	case errors.Is(err, tenancy.ErrSlugExhausted):
		utils.ConflictResponse(c, "No free booking address for this business name")
	default:
		logrus.WithError(err).Error(fallback)
		utils.InternalServerErrorResponse(c, fallback)
	}
}

// handleRegister registers a business owner and assigns the tenant slug
func handleRegister(svc *accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		result, err := svc.RegisterOwner(c.Request.Context(), req.Email, req.Password, req.DisplayName, req.BusinessName)
		if err != nil {
			writeAccountError(c, err, "Failed to complete registration")
			return
		}

		utils.CreatedResponse(c, "Business registered successfully", gin.H{
			"user":        result.User,
			"tenant_id":   result.User.ID,
			"slug":        result.Slug,
			"booking_url": "/booking/" + result.Slug + "/",
		})
	}
}

// handleLogin authenticates and opens a session
func handleLogin(svc *accountService, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		result, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			writeAccountError(c, err, "Failed to create session")
			return
		}

		maxAge := int(svc.sessions.TTL().Seconds())
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.TokenCookie, result.Token, maxAge, "/", "", secureCookie, true)

		utils.OKResponse(c, "Login successful", result)
	}
}

// handleLogout revokes the current session
func handleLogout(svc *accountService, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.sessions.EndSession(c.Request.Context(), middleware.GetToken(c)); err != nil {
			logrus.WithError(err).Error("Failed to revoke session")
			utils.InternalServerErrorResponse(c, "Failed to log out")
			return
		}

		c.SetCookie(middleware.TokenCookie, "", -1, "/", "", secureCookie, true)
		utils.OKResponse(c, "Logged out", nil)
	}
}

// handleVerifyToken returns the principal behind a live token
func handleVerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.OKResponse(c, "Token is valid", middleware.GetPrincipal(c))
	}
}

func handleMe(svc *accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.GetPrincipal(c)
		user, err := svc.accounts.FindUserByID(c.Request.Context(), principal.UserID)
		if err != nil {
			writeAccountError(c, err, "Failed to load profile")
			return
		}
		utils.OKResponse(c, "Profile retrieved", gin.H{
			"user":      user,
			"principal": principal,
		})
	}
}

func handleCreateWorker(svc *accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WorkerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}

		worker, err := svc.CreateWorker(c.Request.Context(), middleware.GetPrincipal(c), req.Email, req.Password, req.DisplayName)
		if err != nil {
			writeAccountError(c, err, "Failed to create worker")
			return
		}
		utils.CreatedResponse(c, "Worker created", worker)
	}
}

func handleListWorkers(svc *accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		workers, err := svc.ListWorkers(c.Request.Context(), middleware.GetPrincipal(c))
		if err != nil {
			writeAccountError(c, err, "Failed to list workers")
			return
		}
		utils.OKResponse(c, "Workers retrieved", workers)
	}
}

// handleChangeRole changes a worker's role or status, or demotes the owner
func handleChangeRole(svc *accountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid user ID")
			return
		}

		var req roleChange
		if err := c.ShouldBindJSON(&req); err != nil || (req.Role == nil && req.Status == nil) {
			utils.BadRequestResponse(c, "Provide a role or a status")
			return
		}

		user, err := svc.ChangeRole(c.Request.Context(), middleware.GetPrincipal(c), uint(id), req)
		if err != nil {
			writeAccountError(c, err, "Failed to update user")
			return
		}
		utils.OKResponse(c, "User updated", user)
	}
}
