package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/auth"
	"github.com/nordbooking/nordbooking/shared/models"
)

var (
	errNotYourWorker   = errors.New("account is not one of your workers")
	errInvalidRoleEdit = errors.New("role change not allowed")
)

// SlugAssigner gives tenants their public slug
type SlugAssigner interface {
	Assign(ctx context.Context, tenantID uint, businessName string) (string, error)
	Release(ctx context.Context, tenantID uint) (string, error)
	Discard(ctx context.Context, tenantID uint) error
}

// SettingWriter stores tenant settings
type SettingWriter interface {
	PutSetting(ctx context.Context, tenantID uint, name, value string) error
}

// accountService owns registration and account changes. Identity provider enrolment happens
// first and is withdrawn when any later step fails.
type accountService struct {
	accounts auth.AccountStore
	provider auth.IdentityProvider
	sessions *auth.Authenticator
	slugs    SlugAssigner
	settings SettingWriter
	now      func() time.Time
}

func newAccountService(accounts auth.AccountStore, provider auth.IdentityProvider, sessions *auth.Authenticator, slugs SlugAssigner, settings SettingWriter) *accountService {
	return &accountService{
		accounts: accounts,
		provider: provider,
		sessions: sessions,
		slugs:    slugs,
		settings: settings,
		now:      time.Now,
	}
}

type registration struct {
	User *models.User `json:"user"`
	Slug string       `json:"slug"`
}

// RegisterOwner creates a business owner and assigns the tenant's slug
func (s *accountService) RegisterOwner(ctx context.Context, email, password, displayName, businessName string) (*registration, error) {
	user := &models.User{
		Email:       auth.NormalizeEmail(email),
		DisplayName: displayName,
		Role:        models.RoleBusinessOwner,
		Status:      models.AccountActive,
	}

	if err := s.provider.Enroll(ctx, user, password); err != nil {
		return nil, err
	}

	if err := s.accounts.CreateUser(ctx, user); err != nil {
		s.withdraw(ctx, user)
		return nil, err
	}

	slug, err := s.slugs.Assign(ctx, user.ID, businessName)
	if err == nil {
		err = s.settings.PutSetting(ctx, user.ID, models.SettingBusinessName, businessName)
	}
	if err != nil {
		// the tenant never existed, so its slug goes back without a cool-down
		if discardErr := s.slugs.Discard(ctx, user.ID); discardErr != nil {
			logrus.WithError(discardErr).Warn("Failed to discard slug of aborted registration")
		}
		if delErr := s.accounts.DeleteUser(ctx, user.ID); delErr != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": user.ID,
				"error":   delErr,
			}).Error("Failed to remove account of aborted registration")
		}
		s.withdraw(ctx, user)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": user.ID,
		"slug":      slug,
	}).Info("Business owner registered")

	return &registration{User: user, Slug: slug}, nil
}

func (s *accountService) withdraw(ctx context.Context, user *models.User) {
	if err := s.provider.Withdraw(ctx, user); err != nil {
		logrus.WithFields(logrus.Fields{
			"email": user.Email,
			"error": err,
		}).Warn("Failed to withdraw identity after failed registration")
	}
}

type loginResult struct {
	Token     string       `json:"access_token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	SessionID string       `json:"session_id"`
	User      *models.User `json:"user"`
}

func (s *accountService) Login(ctx context.Context, email, password string) (*loginResult, error) {
	user, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, session, err := s.sessions.StartSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		logrus.WithError(err).Warn("Failed to record last login")
	}

	return &loginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: session.ExpiresAt,
		SessionID: session.SessionID,
		User:      user,
	}, nil
}

// CreateWorker adds a worker account to the owner's tenant
func (s *accountService) CreateWorker(ctx context.Context, owner *models.Principal, email, password, displayName string) (*models.User, error) {
	if !owner.IsBusinessOwner() || owner.TenantID == nil {
		return nil, errNotYourWorker
	}
	employer := *owner.TenantID

	user := &models.User{
		Email:       auth.NormalizeEmail(email),
		DisplayName: displayName,
		Role:        models.RoleWorker,
		Status:      models.AccountActive,
		EmployerID:  &employer,
	}

	if err := s.provider.Enroll(ctx, user, password); err != nil {
		return nil, err
	}
	if err := s.accounts.CreateUser(ctx, user); err != nil {
		s.withdraw(ctx, user)
		return nil, err
	}
	return user, nil
}

func (s *accountService) ListWorkers(ctx context.Context, owner *models.Principal) ([]models.User, error) {
	if owner.TenantID == nil {
		return nil, errNotYourWorker
	}
	return s.accounts.ListWorkers(ctx, *owner.TenantID)
}

type roleChange struct {
	Role   *models.UserRole      `json:"role"`
	Status *models.AccountStatus `json:"status"`
}

// ChangeRole edits one of the owner's workers, or the owner's own account. An owner who gives
// up the role or is suspended releases the tenant slug into cool-down.
func (s *accountService) ChangeRole(ctx context.Context, actor *models.Principal, targetID uint, change roleChange) (*models.User, error) {
	if !actor.IsBusinessOwner() || actor.TenantID == nil {
		return nil, errNotYourWorker
	}

	target, err := s.accounts.FindUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	self := target.ID == actor.UserID
	if !self && (target.EmployerID == nil || *target.EmployerID != *actor.TenantID) {
		return nil, errNotYourWorker
	}

	if change.Role != nil {
		role := *change.Role
		switch {
		case !role.Valid():
			return nil, fmt.Errorf("%w: unknown role %q", errInvalidRoleEdit, role)
		case role == models.RoleBusinessOwner && !self:
			return nil, fmt.Errorf("%w: workers cannot be promoted to owner", errInvalidRoleEdit)
		case role == models.RoleWorker && self:
			return nil, fmt.Errorf("%w: an owner cannot become a worker", errInvalidRoleEdit)
		}
		target.Role = role
		if role != models.RoleWorker {
			target.EmployerID = nil
		}
	}
	if change.Status != nil {
		switch *change.Status {
		case models.AccountActive, models.AccountSuspended:
			target.Status = *change.Status
		default:
			return nil, fmt.Errorf("%w: unknown status %q", errInvalidRoleEdit, *change.Status)
		}
	}

	if err := s.accounts.SaveUser(ctx, target); err != nil {
		return nil, err
	}

	if self && !target.IsActiveOwner() {
		if _, err := s.slugs.Release(ctx, target.ID); err != nil {
			return nil, err
		}
	}
	return target, nil
}
