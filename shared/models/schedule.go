package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// TimeWindow is an "HH:MM" wall-clock interval in tenant-local time
type TimeWindow struct {
	Start string `json:"start_time" yaml:"start_time"`
	End   string `json:"end_time" yaml:"end_time"`
}

// TimeWindows is stored as a jsonb array
type TimeWindows []TimeWindow

func (w TimeWindows) Value() (driver.Value, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w)
}

func (w *TimeWindows) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*w = TimeWindows{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, w)
}

// AvailabilityRule is one day of a tenant's recurring weekly schedule
type AvailabilityRule struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	TenantID  uint        `json:"tenant_id" gorm:"not null;uniqueIndex:idx_rule_tenant_day,priority:1"`
	DayOfWeek int         `json:"day_of_week" gorm:"not null;uniqueIndex:idx_rule_tenant_day,priority:2"` // 0=Sunday
	IsEnabled bool        `json:"is_enabled" gorm:"not null;default:false"`
	Slots     TimeWindows `json:"slots" gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (AvailabilityRule) TableName() string {
	return "availability_rules"
}

// AvailabilityException overrides the recurring schedule for one calendar date
type AvailabilityException struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	TenantID  uint        `json:"tenant_id" gorm:"not null;uniqueIndex:idx_exception_tenant_date,priority:1"`
	Date      string      `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_exception_tenant_date,priority:2"` // YYYY-MM-DD
	IsClosed  bool        `json:"is_closed" gorm:"not null;default:false"`
	Slots     TimeWindows `json:"slots" gorm:"type:jsonb;not null;default:'[]'"`
	Reason    string      `json:"reason,omitempty" gorm:"type:varchar(255)"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (AvailabilityException) TableName() string {
	return "availability_exceptions"
}
