package reminders

import (
	"context"
	"sync"
	"time"

	"salonbook/internal/model"

	"github.com/rs/zerolog"
)

// SchedulerConfig holds configuration for the reminder scheduler.
type SchedulerConfig struct {
	// Timezone for scheduling, e.g. "America/New_York". Empty means local time.
	Timezone string
	// DailyHour is the hour (0-23) when day-before reminders go out.
	DailyHour int
	// DailyMinute is the minute (0-59) when day-before reminders go out.
	DailyMinute int
	// CheckInterval is how often to check if it's time to run.
	CheckInterval time.Duration
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		DailyHour:     18,
		DailyMinute:   0,
		CheckInterval: time.Minute,
	}
}

// RunStats summarizes one daily run.
type RunStats struct {
	Date    string
	Total   int
	Sent    int
	Skipped int
	Failed  int
}

// Scheduler sends reminders once a day for the next day's bookings.
type Scheduler struct {
	config   SchedulerConfig
	source   BookingSource
	sender   *ReminderSender
	metrics  *Metrics
	location *time.Location
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastRunDate string
	sent        map[string]string // booking ID -> booking date
	running     bool
	stopCh      chan struct{}
}

// NewScheduler creates a new reminder scheduler. metrics may be nil.
func NewScheduler(
	config SchedulerConfig,
	source BookingSource,
	sender *ReminderSender,
	metrics *Metrics,
	logger zerolog.Logger,
) (*Scheduler, error) {
	loc := time.Local
	if config.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(config.Timezone); err != nil {
			return nil, err
		}
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}

	return &Scheduler{
		config:   config,
		source:   source,
		sender:   sender,
		metrics:  metrics,
		location: loc,
		logger:   logger.With().Str("component", "reminders").Logger(),
		now:      time.Now,
		sent:     make(map[string]string),
		stopCh:   make(chan struct{}),
	}, nil
}

// Start blocks running the scheduler loop until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().Str("daily_time", s.formatTime()).Str("timezone", s.location.String()).
		Msg("reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// checkAndRun runs at most once per day, at or after the configured time.
func (s *Scheduler) checkAndRun(ctx context.Context) bool {
	now := s.now().In(s.location)
	today := now.Format(model.DateLayout)

	s.mu.Lock()
	alreadyRan := s.lastRunDate == today
	s.mu.Unlock()
	if alreadyRan {
		return false
	}

	due := time.Date(now.Year(), now.Month(), now.Day(), s.config.DailyHour, s.config.DailyMinute, 0, 0, s.location)
	if now.Before(due) {
		return false
	}

	s.mu.Lock()
	s.lastRunDate = today
	s.mu.Unlock()

	s.RunNow(ctx)
	return true
}

// RunNow sends reminders for tomorrow's bookings that have not had one yet.
func (s *Scheduler) RunNow(ctx context.Context) RunStats {
	start := time.Now()
	now := s.now().In(s.location)
	tomorrow := now.AddDate(0, 0, 1).Format(model.DateLayout)
	stats := RunStats{Date: tomorrow}

	bookings, err := s.source.FetchBookings(ctx, model.BookingFilter{Date: tomorrow})
	if err != nil {
		s.logger.Error().Err(err).Str("date", tomorrow).Msg("failed to fetch bookings for reminders")
		return stats
	}
	stats.Total = len(bookings)
	s.metrics.setLastRun(stats.Total)
	s.pruneSent(now.Format(model.DateLayout))

	for _, b := range bookings {
		if ctx.Err() != nil {
			s.logger.Info().Int("processed", stats.Sent+stats.Failed+stats.Skipped).Msg("reminder processing interrupted")
			break
		}
		if s.alreadySent(b.ID) {
			stats.Skipped++
			continue
		}

		outcome, err := s.sender.SendWithRetry(ctx, b)
		if err != nil {
			break
		}
		switch outcome {
		case OutcomeSent:
			s.markSent(b)
			stats.Sent++
		case OutcomeSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	s.logger.Info().
		Str("date", stats.Date).
		Int("total", stats.Total).
		Int("sent", stats.Sent).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(start)).
		Msg("daily reminders processed")
	return stats
}

func (s *Scheduler) alreadySent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sent[id]
	return ok
}

func (s *Scheduler) markSent(b model.Booking) {
	s.mu.Lock()
	s.sent[b.ID] = b.Date
	s.mu.Unlock()
}

// pruneSent forgets bookings dated before today.
func (s *Scheduler) pruneSent(today string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, date := range s.sent {
		if date < today {
			delete(s.sent, id)
		}
	}
}

func (s *Scheduler) formatTime() string {
	return time.Date(2000, 1, 1, s.config.DailyHour, s.config.DailyMinute, 0, 0, time.UTC).Format("15:04")
}
