package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nordbooking/nordbooking/shared/models"
)

// GormStore keeps schedules and bookings in Postgres
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func rules(db *gorm.DB, tenantID uint) ([]models.AvailabilityRule, error) {
	var rows []models.AvailabilityRule
	err := db.Where("tenant_id = ?", tenantID).Order("day_of_week").Find(&rows).Error
	return rows, err
}

func exception(db *gorm.DB, tenantID uint, date string) (*models.AvailabilityException, error) {
	var row models.AvailabilityException
	err := db.Where("tenant_id = ? AND date = ?", tenantID, date).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func bookingsOn(db *gorm.DB, tenantID uint, date string) ([]models.Booking, error) {
	var rows []models.Booking
	err := db.Where("tenant_id = ? AND booking_date = ?", tenantID, date).Order("start_time").Find(&rows).Error
	return rows, err
}

func (s *GormStore) Rules(ctx context.Context, tenantID uint) ([]models.AvailabilityRule, error) {
	return rules(s.db.WithContext(ctx), tenantID)
}

func (s *GormStore) Exception(ctx context.Context, tenantID uint, date string) (*models.AvailabilityException, error) {
	return exception(s.db.WithContext(ctx), tenantID, date)
}

func (s *GormStore) ReplaceRules(ctx context.Context, tenantID uint, newRules []models.AvailabilityRule) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&models.AvailabilityRule{}).Error; err != nil {
			return err
		}
		if len(newRules) == 0 {
			return nil
		}
		return tx.Create(&newRules).Error
	})
}

func (s *GormStore) Exceptions(ctx context.Context, tenantID uint, from, to string) ([]models.AvailabilityException, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if from != "" {
		query = query.Where("date >= ?", from)
	}
	if to != "" {
		query = query.Where("date <= ?", to)
	}
	var rows []models.AvailabilityException
	err := query.Order("date").Find(&rows).Error
	return rows, err
}

func (s *GormStore) PutException(ctx context.Context, e *models.AvailabilityException) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_closed", "slots", "reason", "updated_at"}),
	}).Create(e).Error
}

func (s *GormStore) DeleteException(ctx context.Context, tenantID uint, date string) (bool, error) {
	result := s.db.WithContext(ctx).Where("tenant_id = ? AND date = ?", tenantID, date).Delete(&models.AvailabilityException{})
	return result.RowsAffected > 0, result.Error
}

func (s *GormStore) BookingsOn(ctx context.Context, tenantID uint, date string) ([]models.Booking, error) {
	return bookingsOn(s.db.WithContext(ctx), tenantID, date)
}

// gormSlotTx runs inside the transaction holding the slot lock
type gormSlotTx struct {
	tx *gorm.DB
}

func (t *gormSlotTx) Rules(ctx context.Context, tenantID uint) ([]models.AvailabilityRule, error) {
	return rules(t.tx.WithContext(ctx), tenantID)
}

func (t *gormSlotTx) Exception(ctx context.Context, tenantID uint, date string) (*models.AvailabilityException, error) {
	return exception(t.tx.WithContext(ctx), tenantID, date)
}

func (t *gormSlotTx) BookingsOn(ctx context.Context, tenantID uint, date string) ([]models.Booking, error) {
	return bookingsOn(t.tx.WithContext(ctx), tenantID, date)
}

func (t *gormSlotTx) InsertBooking(ctx context.Context, booking *models.Booking) error {
	return t.tx.WithContext(ctx).Create(booking).Error
}

func (t *gormSlotTx) LockBooking(ctx context.Context, tenantID uint, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (t *gormSlotTx) MoveBooking(ctx context.Context, booking *models.Booking) error {
	return t.tx.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND tenant_id = ?", booking.ID, booking.TenantID).
		Updates(map[string]interface{}{
			"booking_date": booking.BookingDate,
			"start_time":   booking.StartTime,
			"end_time":     booking.EndTime,
			"updated_at":   booking.UpdatedAt,
		}).Error
}

// WithinSlotLock serialises writers of one tenant and date with a transaction-scoped
// advisory lock, released on commit or rollback
func (s *GormStore) WithinSlotLock(ctx context.Context, tenantID uint, date string, fn func(tx SlotTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := fmt.Sprintf("booking:%d:%s", tenantID, date)
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
			return fmt.Errorf("failed to lock %s: %w", key, err)
		}
		return fn(&gormSlotTx{tx: tx})
	})
}

func (s *GormStore) FindBooking(ctx context.Context, tenantID uint, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *GormStore) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	query := s.db.WithContext(ctx).Where("tenant_id = ?", f.TenantID)
	if f.Date != "" {
		query = query.Where("booking_date = ?", f.Date)
	}
	if f.AssignedStaffID != nil {
		query = query.Where("assigned_staff_id = ?", *f.AssignedStaffID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	var rows []models.Booking
	err := query.Order("booking_date, start_time").Limit(500).Find(&rows).Error
	return rows, err
}

func (s *GormStore) UpdateBookingStatus(ctx context.Context, tenantID uint, id uuid.UUID, from, to models.BookingStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) AssignBookingStaff(ctx context.Context, tenantID uint, id uuid.UUID, staffID *uint) error {
	var staff interface{}
	if staffID != nil {
		staff = *staffID
	}
	res := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]interface{}{"assigned_staff_id": staff, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (s *GormStore) CompleteBefore(ctx context.Context, date string) ([]models.Booking, error) {
	var completed []models.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND booking_date < ?", models.BookingConfirmed, date).
			Find(&completed).Error; err != nil {
			return err
		}
		if len(completed) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, len(completed))
		for i := range completed {
			ids[i] = completed[i].ID
			completed[i].Status = models.BookingCompleted
		}
		return tx.Model(&models.Booking{}).Where("id IN ?", ids).Update("status", models.BookingCompleted).Error
	})
	return completed, err
}

// IsActiveWorker checks that userID is an active worker employed by an active owner tenantID
func (s *GormStore) IsActiveWorker(ctx context.Context, tenantID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table("users AS w").
		Joins("JOIN users o ON o.id = w.employer_id AND o.deleted_at IS NULL").
		Where("w.id = ? AND w.role = ? AND w.status = ? AND w.deleted_at IS NULL", userID, models.RoleWorker, models.AccountActive).
		Where("o.id = ? AND o.role = ? AND o.status = ?", tenantID, models.RoleBusinessOwner, models.AccountActive).
		Count(&count).Error
	return count > 0, err
}
