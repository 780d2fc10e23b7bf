package reminders

import (
	"context"
	"errors"
	"fmt"

	"salonbook/internal/model"
)

// Outcome of one reminder delivery.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeUserBlocked Outcome = "user_blocked"
	OutcomeBadRequest  Outcome = "bad_request"
	OutcomeFailed      Outcome = "max_retries_exceeded"
)

// ErrUnreachable is returned by a Notifier that has no channel to the user.
var ErrUnreachable = errors.New("user is not reachable")

// BookingSource provides bookings for a date.
type BookingSource interface {
	FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

// Notifier sends a reminder about booking to its owner.
type Notifier interface {
	SendReminder(ctx context.Context, booking model.Booking) error
}

// TelegramError represents an error from Telegram API.
type TelegramError struct {
	Code       int
	Message    string
	RetryAfter int // seconds, set on 429
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsTelegramError checks if the error is a TelegramError.
func IsTelegramError(err error) (*TelegramError, bool) {
	var tgErr *TelegramError
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}
