package models

import "time"

// UserProfile represents the user profile stored in Redis
type UserProfile struct {
	UserID   uint                   `json:"user_id"`
	Email    string                 `json:"email"`
	Role     string                 `json:"role"`
	TenantID *uint                  `json:"tenant_id,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// TokenSession represents a session stored in Redis
type TokenSession struct {
	UserProfile UserProfile `json:"user_profile"`
	CreatedAt   time.Time   `json:"created_at"`
	LastUsedAt  time.Time   `json:"last_used_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	SessionID   string      `json:"session_id"`
}

func (ts *TokenSession) IsExpired() bool {
	return time.Now().After(ts.ExpiresAt)
}

func (ts *TokenSession) UpdateLastUsed() {
	ts.LastUsedAt = time.Now()
}
