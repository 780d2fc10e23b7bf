package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"salonbook/internal/model"

	"github.com/rs/zerolog"
)

// Service sends the previous month's bookings to the owner on the 1st of each month.
type Service struct {
	source   BookingSource
	dir      ClientDirectory
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewService(source BookingSource, dir ClientDirectory, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		source:   source,
		dir:      dir,
		notifier: notifier,
		logger:   logger.With().Str("component", "monthly_report").Logger(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the monthly scheduler.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	s.logger.Info().Msg("Monthly report service started")
}

// Stop waits for the scheduler to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("Monthly report service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := nextFirstOfMonth(s.now())
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()
	s.logger.Info().Time("at", nextRun).Msg("Next report scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			if err := s.SendMonth(ctx, s.now().AddDate(0, -1, 0)); err != nil {
				s.logger.Error().Err(err).Msg("Failed to send monthly report")
			}
			cancel()

			nextRun = nextFirstOfMonth(s.now())
			timer.Reset(time.Until(nextRun))
			s.logger.Info().Time("at", nextRun).Msg("Next report scheduled")
		}
	}
}

// nextFirstOfMonth is 00:01 on the first day of the month after now.
func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// SendMonth exports bookings dated in month and sends the workbook.
func (s *Service) SendMonth(ctx context.Context, month time.Time) error {
	all, err := s.source.FetchBookings(ctx, model.BookingFilter{})
	if err != nil {
		return fmt.Errorf("fetch bookings: %w", err)
	}

	prefix := fmt.Sprintf("%d-%02d-", month.Year(), int(month.Month()))
	var inMonth []model.Booking
	for _, b := range all {
		if strings.HasPrefix(b.Date, prefix) {
			inMonth = append(inMonth, b)
		}
	}

	data, err := BookingsWorkbook(ctx, inMonth, s.dir)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}

	filename := GenerateFilename(month)
	caption := fmt.Sprintf("📊 Bookings for %s: %d", month.Format("January 2006"), len(inMonth))
	if err := s.notifier.SendDocument(ctx, filename, bytes.NewReader(data), caption); err != nil {
		return fmt.Errorf("send document: %w", err)
	}

	s.logger.Info().Str("filename", filename).Int("bookings", len(inMonth)).Msg("Monthly report sent")
	return nil
}
