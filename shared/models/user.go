package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole is the platform role held by an account
type UserRole string

const (
	RoleBusinessOwner UserRole = "business_owner"
	RoleWorker        UserRole = "worker"
	RoleCustomer      UserRole = "customer"
)

// Valid reports whether the role is one the platform knows about
func (r UserRole) Valid() bool {
	switch r {
	case RoleBusinessOwner, RoleWorker, RoleCustomer:
		return true
	}
	return false
}

// AccountStatus represents whether an account may sign in and be routed to
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

// User represents a platform account. A business owner's ID doubles as its tenant ID.
type User struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	Email        string        `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string        `json:"-" gorm:"type:varchar(255)"`
	CognitoSub   *string       `json:"-" gorm:"type:varchar(255);uniqueIndex"`
	DisplayName  string        `json:"display_name" gorm:"type:varchar(255)"`
	Role         UserRole      `json:"role" gorm:"type:varchar(32);not null;index"`
	Status       AccountStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	EmployerID   *uint         `json:"employer_id,omitempty" gorm:"index"` // tenant a worker belongs to
	LastLoginAt  *time.Time    `json:"last_login_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// IsActive checks the account status
func (u *User) IsActive() bool {
	return u.Status == AccountActive
}

// IsActiveOwner reports whether the account can currently be routed to as a tenant
func (u *User) IsActiveOwner() bool {
	return u.Role == RoleBusinessOwner && u.IsActive()
}

// TenantID returns the tenant the account acts for, if any
func (u *User) TenantID() *uint {
	switch u.Role {
	case RoleBusinessOwner:
		id := u.ID
		return &id
	case RoleWorker:
		return u.EmployerID
	}
	return nil
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID    uint     `json:"user_id"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	TenantID  *uint    `json:"tenant_id,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// PrincipalFromUser builds a principal from a freshly loaded account
func PrincipalFromUser(u *User, sessionID string) *Principal {
	return &Principal{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		TenantID:  u.TenantID(),
		SessionID: sessionID,
	}
}

func (p *Principal) IsBusinessOwner() bool {
	return p != nil && p.Role == RoleBusinessOwner
}

func (p *Principal) IsWorker() bool {
	return p != nil && p.Role == RoleWorker
}

// ActsFor reports whether the principal belongs to the given tenant
func (p *Principal) ActsFor(tenantID uint) bool {
	return p != nil && p.TenantID != nil && *p.TenantID == tenantID
}
