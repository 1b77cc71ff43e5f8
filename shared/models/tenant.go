package models

import "time"

// Setting names stored in tenant_settings
const (
	SettingBusinessSlug = "business_slug"
	SettingBusinessName = "business_name"
)

// TenantSetting is a key/value setting owned by a tenant
type TenantSetting struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TenantID     uint      `json:"tenant_id" gorm:"not null;uniqueIndex:idx_tenant_setting,priority:1"`
	SettingName  string    `json:"setting_name" gorm:"type:varchar(100);not null;uniqueIndex:idx_tenant_setting,priority:2;index:idx_setting_lookup,priority:1"`
	SettingValue string    `json:"setting_value" gorm:"type:varchar(255);index:idx_setting_lookup,priority:2"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (TenantSetting) TableName() string {
	return "tenant_settings"
}

// SlugReservation keeps a released slug away from other tenants until ReservedUntil
type SlugReservation struct {
	Slug          string    `json:"slug" gorm:"type:varchar(200);primaryKey"`
	TenantID      uint      `json:"tenant_id" gorm:"not null;index"`
	ReleasedAt    time.Time `json:"released_at"`
	ReservedUntil time.Time `json:"reserved_until" gorm:"index"`
}

func (SlugReservation) TableName() string {
	return "slug_reservations"
}

// HeldAgainst reports whether the reservation blocks tenantID from taking the slug at now
func (r *SlugReservation) HeldAgainst(tenantID uint, now time.Time) bool {
	return r.TenantID != tenantID && now.Before(r.ReservedUntil)
}

// TenantProfile is the public view of a tenant
type TenantProfile struct {
	TenantID     uint          `json:"tenant_id"`
	BusinessName string        `json:"business_name"`
	Slug         string        `json:"slug"`
	Status       AccountStatus `json:"status"`
}
