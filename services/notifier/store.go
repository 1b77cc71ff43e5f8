package main

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nordbooking/nordbooking/shared/models"
)

// DeliveryStore keeps booking events the webhook did not accept
type DeliveryStore interface {
	RecordFailure(ctx context.Context, delivery *models.FailedBookingDelivery) error
	// DueDeliveries returns pending deliveries whose next retry is at or before now, newest first
	DueDeliveries(ctx context.Context, now time.Time, limit int) ([]models.FailedBookingDelivery, error)
	SaveDelivery(ctx context.Context, delivery *models.FailedBookingDelivery) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// GormDeliveryStore stores deliveries in failed_booking_deliveries
type GormDeliveryStore struct {
	db *gorm.DB
}

func NewGormDeliveryStore(db *gorm.DB) *GormDeliveryStore {
	return &GormDeliveryStore{db: db}
}

func (s *GormDeliveryStore) RecordFailure(ctx context.Context, delivery *models.FailedBookingDelivery) error {
	if err := s.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return fmt.Errorf("failed to record failed delivery: %w", err)
	}
	return nil
}

func (s *GormDeliveryStore) DueDeliveries(ctx context.Context, now time.Time, limit int) ([]models.FailedBookingDelivery, error) {
	var due []models.FailedBookingDelivery
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", models.DeliveryPending, now).
		Order("created_at DESC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due deliveries: %w", err)
	}
	return due, nil
}

func (s *GormDeliveryStore) SaveDelivery(ctx context.Context, delivery *models.FailedBookingDelivery) error {
	return s.db.WithContext(ctx).Save(delivery).Error
}

func (s *GormDeliveryStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.FailedBookingDelivery{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count deliveries: %w", err)
	}

	counts := map[string]int64{
		models.DeliveryPending:           0,
		models.DeliveryResolved:          0,
		models.DeliveryPermanentlyFailed: 0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
