package google

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/model"
)

// BookingSource lists stored bookings.
type BookingSource interface {
	FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

// Sync rewrites the bookings sheet and the schedule for the next days from today.
func (s *SheetsService) Sync(ctx context.Context, source BookingSource, slotLabels []string, today time.Time, days int) error {
	all, err := source.FetchBookings(ctx, model.BookingFilter{})
	if err != nil {
		return fmt.Errorf("fetch bookings: %w", err)
	}
	if err := s.ReplaceBookings(ctx, all, today.Format(model.DateLayout)); err != nil {
		return err
	}
	if days <= 0 {
		return nil
	}
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	return s.UpdateSchedule(ctx, all, slotLabels, start, start.AddDate(0, 0, days-1))
}

// RunSync calls Sync right away and then every interval until ctx is done.
func (s *SheetsService) RunSync(ctx context.Context, interval time.Duration, source BookingSource, slotLabels []string, days int) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Sync(ctx, source, slotLabels, time.Now(), days); err != nil {
			s.logger.Error().Err(err).Msg("sheets sync failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
