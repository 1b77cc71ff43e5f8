package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nordbooking/nordbooking/shared/models"
)

// UserStore loads accounts
type UserStore interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByCognitoSub(ctx context.Context, sub string) (*models.User, error)
}

// ErrEmailTaken is returned when an account with the email already exists
var ErrEmailTaken = errors.New("email already registered")

// AccountStore adds the writes the auth service needs
type AccountStore interface {
	UserStore
	CreateUser(ctx context.Context, user *models.User) error
	SaveUser(ctx context.Context, user *models.User) error
	// DeleteUser hard-deletes an account, used to undo a half-finished registration
	DeleteUser(ctx context.Context, id uint) error
	ListWorkers(ctx context.Context, tenantID uint) ([]models.User, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// GormUserStore reads and writes accounts in the users table
type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", NormalizeEmail(email))
}

func (s *GormUserStore) FindUserByCognitoSub(ctx context.Context, sub string) (*models.User, error) {
	return s.first(ctx, "cognito_sub = ?", sub)
}

func (s *GormUserStore) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *GormUserStore) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *GormUserStore) SaveUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Model(user).Select("display_name", "role", "status", "employer_id").Updates(user).Error
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *GormUserStore) DeleteUser(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Unscoped().Delete(&models.User{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *GormUserStore) ListWorkers(ctx context.Context, tenantID uint) ([]models.User, error) {
	var workers []models.User
	err := s.db.WithContext(ctx).
		Where("employer_id = ? AND role = ?", tenantID, models.RoleWorker).
		Order("id").
		Find(&workers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return workers, nil
}

func (s *GormUserStore) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error
}
