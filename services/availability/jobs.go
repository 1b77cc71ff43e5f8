package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// BookingSweeper completes confirmed bookings whose date has passed
type BookingSweeper interface {
	CompletePast(ctx context.Context) (int, error)
}

// ReservationPurger drops slug reservations whose cool-down ended
type ReservationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// nightlySweep runs both housekeeping steps; one failing does not skip the other
func nightlySweep(ctx context.Context, bookings BookingSweeper, slugs ReservationPurger) error {
	var firstErr error

	completed, err := bookings.CompletePast(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to complete past bookings")
		firstErr = err
	}

	purged, err := slugs.PurgeExpired(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to purge slug reservations")
		if firstErr == nil {
			firstErr = err
		}
	}

	logrus.WithFields(logrus.Fields{
		"bookings_completed":    completed,
		"reservations_released": purged,
	}).Info("Nightly sweep finished")
	return firstErr
}

// startScheduler registers the nightly sweep under expr, a standard five-field cron expression
func startScheduler(expr string, bookings BookingSweeper, slugs ReservationPurger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		_ = nightlySweep(ctx, bookings, slugs)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_SWEEP_CRON %q: %w", expr, err)
	}
	c.Start()
	return c, nil
}
