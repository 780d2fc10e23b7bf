package reminders

import (
	"context"
	"errors"
	"time"

	"salonbook/internal/model"

	"github.com/rs/zerolog"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if len(c.RetryDelays) == 0 {
		return time.Second
	}
	if attempt < len(c.RetryDelays) {
		return c.RetryDelays[attempt]
	}
	return c.RetryDelays[len(c.RetryDelays)-1]
}

// ReminderSender delivers reminders with rate limiting and retries.
type ReminderSender struct {
	notifier    Notifier
	rateLimiter *RateLimiter
	retryConfig RetryConfig
	metrics     *Metrics
	logger      zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewReminderSender creates a sender. metrics may be nil.
func NewReminderSender(
	notifier Notifier,
	limiter RateLimiterConfig,
	retry RetryConfig,
	metrics *Metrics,
	logger zerolog.Logger,
) *ReminderSender {
	return &ReminderSender{
		notifier:    notifier,
		rateLimiter: NewRateLimiter(limiter),
		retryConfig: retry,
		metrics:     metrics,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendWithRetry delivers one reminder. The returned error is only set when ctx
// ends; delivery failures are reported through the Outcome.
func (s *ReminderSender) SendWithRetry(ctx context.Context, b model.Booking) (Outcome, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return OutcomeFailed, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		start := time.Now()
		err := s.notifier.SendReminder(ctx, b)
		s.metrics.observeSend(time.Since(start).Seconds())
		if err == nil {
			s.logger.Info().Str("booking_id", b.ID).Str("user_id", b.UserID).Msg("reminder sent")
			return s.finish(OutcomeSent), nil
		}
		lastErr = err

		if errors.Is(err, ErrUnreachable) {
			s.logger.Debug().Str("user_id", b.UserID).Msg("no chat for user, skipping reminder")
			return s.finish(OutcomeSkipped), nil
		}

		if tgErr, ok := IsTelegramError(err); ok {
			switch tgErr.Code {
			case 429:
				wait := time.Duration(tgErr.RetryAfter) * time.Second
				if wait == 0 {
					wait = s.retryConfig.delay(attempt)
				}
				s.metrics.incRateLimitWaits()
				s.logger.Info().Dur("retry_after", wait).Int("attempt", attempt).Str("booking_id", b.ID).
					Msg("rate limited by Telegram, waiting")
				if err := s.sleep(ctx, wait); err != nil {
					return OutcomeFailed, err
				}
				continue

			case 403:
				s.logger.Info().Str("user_id", b.UserID).Msg("user blocked bot")
				return s.finish(OutcomeUserBlocked), nil

			case 400:
				s.logger.Error().Err(err).Str("booking_id", b.ID).Msg("bad request to Telegram")
				return s.finish(OutcomeBadRequest), nil
			}
		}

		if attempt < s.retryConfig.MaxRetries {
			delay := s.retryConfig.delay(attempt)
			s.metrics.incRetries()
			s.logger.Info().Err(err).Int("attempt", attempt+1).Int("max_retries", s.retryConfig.MaxRetries).
				Dur("delay", delay).Msg("retrying reminder send")
			if err := s.sleep(ctx, delay); err != nil {
				return OutcomeFailed, err
			}
		}
	}

	s.logger.Error().Err(lastErr).Str("booking_id", b.ID).Str("user_id", b.UserID).
		Msg("max retries exceeded for reminder")
	return s.finish(OutcomeFailed), nil
}

func (s *ReminderSender) finish(o Outcome) Outcome {
	s.metrics.incOutcome(o)
	return o
}
