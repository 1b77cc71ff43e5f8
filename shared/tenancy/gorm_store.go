package tenancy

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nordbooking/nordbooking/shared/models"
)

// GormStore keeps tenant settings and slug reservations in Postgres
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) TenantsBySetting(ctx context.Context, name, value string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.TenantSetting{}).
		Where("setting_name = ? AND setting_value = ?", name, value).
		Order("tenant_id").
		Pluck("tenant_id", &ids).Error
	return ids, err
}

func (s *GormStore) IsActiveOwner(ctx context.Context, tenantID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND role = ? AND status = ?", tenantID, models.RoleBusinessOwner, models.AccountActive).
		Count(&count).Error
	return count > 0, err
}

// Settings returns all settings of a tenant keyed by name
func (s *GormStore) Settings(ctx context.Context, tenantID uint) (map[string]string, error) {
	var rows []models.TenantSetting
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&rows).Error; err != nil {
		return nil, err
	}
	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.SettingName] = row.SettingValue
	}
	return settings, nil
}

// PutSetting upserts a single setting. The slug is written only through Claim.
func (s *GormStore) PutSetting(ctx context.Context, tenantID uint, name, value string) error {
	return upsertSetting(s.db.WithContext(ctx), tenantID, name, value)
}

func upsertSetting(tx *gorm.DB, tenantID uint, name, value string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "setting_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"setting_value": value, "updated_at": time.Now()}),
	}).Create(&models.TenantSetting{
		TenantID:     tenantID,
		SettingName:  name,
		SettingValue: value,
	}).Error
}

func lockSlug(tx *gorm.DB, slug string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "slug:"+slug).Error
}

func reserve(tx *gorm.DB, tenantID uint, slug string, until time.Time) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "released_at", "reserved_until"}),
	}).Create(&models.SlugReservation{
		Slug:          slug,
		TenantID:      tenantID,
		ReleasedAt:    time.Now(),
		ReservedUntil: until,
	}).Error
}

func currentSlug(tx *gorm.DB, tenantID uint) (string, error) {
	var setting models.TenantSetting
	err := tx.Where("tenant_id = ? AND setting_name = ?", tenantID, models.SettingBusinessSlug).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return setting.SettingValue, err
}

func (s *GormStore) Claim(ctx context.Context, tenantID uint, slug string, reserveUntil time.Time, check func(SlugState) bool) (bool, string, error) {
	claimed := false
	previous := ""

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSlug(tx, slug); err != nil {
			return err
		}

		var state SlugState
		err := tx.Table("tenant_settings AS ts").
			Joins("JOIN users u ON u.id = ts.tenant_id AND u.deleted_at IS NULL").
			Where("ts.setting_name = ? AND ts.setting_value = ?", models.SettingBusinessSlug, slug).
			Where("u.role = ? AND u.status = ?", models.RoleBusinessOwner, models.AccountActive).
			Pluck("ts.tenant_id", &state.ActiveHolders).Error
		if err != nil {
			return err
		}

		var reservation models.SlugReservation
		err = tx.Where("slug = ?", slug).First(&reservation).Error
		switch {
		case err == nil:
			state.Reservation = &reservation
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if !check(state) {
			return nil
		}

		previous, err = currentSlug(tx, tenantID)
		if err != nil {
			return err
		}
		if err := upsertSetting(tx, tenantID, models.SettingBusinessSlug, slug); err != nil {
			return err
		}
		if err := tx.Where("slug = ? AND tenant_id = ?", slug, tenantID).Delete(&models.SlugReservation{}).Error; err != nil {
			return err
		}
		if previous != "" && previous != slug {
			if err := reserve(tx, tenantID, previous, reserveUntil); err != nil {
				return err
			}
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, "", err
	}
	return claimed, previous, nil
}

func (s *GormStore) Release(ctx context.Context, tenantID uint, reserveUntil time.Time) (string, error) {
	var slug string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		slug, err = currentSlug(tx, tenantID)
		if err != nil || slug == "" {
			return err
		}
		if err := lockSlug(tx, slug); err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND setting_name = ?", tenantID, models.SettingBusinessSlug).
			Delete(&models.TenantSetting{}).Error; err != nil {
			return err
		}
		return reserve(tx, tenantID, slug, reserveUntil)
	})
	return slug, err
}

func (s *GormStore) Discard(ctx context.Context, tenantID uint) (string, error) {
	var slug string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		slug, err = currentSlug(tx, tenantID)
		if err != nil || slug == "" {
			return err
		}
		if err := lockSlug(tx, slug); err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND setting_name = ?", tenantID, models.SettingBusinessSlug).
			Delete(&models.TenantSetting{}).Error
	})
	return slug, err
}

func (s *GormStore) PurgeReservations(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("reserved_until < ?", now).Delete(&models.SlugReservation{})
	return result.RowsAffected, result.Error
}
