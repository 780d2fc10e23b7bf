package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format for booking dates.
const DateLayout = "2006-01-02"

// Booking is a persisted appointment.
type Booking struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Date            string    `json:"date"`       // YYYY-MM-DD
	StartTime       string    `json:"start_time"` // "3:00 PM"
	DurationMinutes int       `json:"duration"`
	TimeSlots       []string  `json:"time_slots"`
	Services        []string  `json:"services"`
	TotalPrice      Money     `json:"total_price"`
	CreatedAt       time.Time `json:"created_at"`
}

// OnDate reports whether the booking is for the given YYYY-MM-DD date.
func (b *Booking) OnDate(date string) bool {
	return b.Date == date
}

// OccupiesSlot reports whether label is one of the booking's time slots.
func (b *Booking) OccupiesSlot(label string) bool {
	for _, s := range b.TimeSlots {
		if s == label {
			return true
		}
	}
	return false
}

// Day parses Date in the local time zone.
func (b *Booking) Day() (time.Time, error) {
	return time.ParseInLocation(DateLayout, b.Date, time.Local)
}

// BookingRequest is what the booking flow hands to storage.
type BookingRequest struct {
	// ID is optional. Stores use it when set so a retried insert stays one booking.
	ID              string
	UserID          string
	Date            string
	StartTime       string
	DurationMinutes int
	TimeSlots       []string
	Services        []string
	TotalPrice      Money
}

// ValidationError describes an invalid booking request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the request shape; slots must cover ceil(duration/granularity) entries.
func (r *BookingRequest) Validate(granularity int) error {
	if granularity <= 0 {
		granularity = 30
	}
	if strings.TrimSpace(r.UserID) == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	if r.StartTime == "" {
		return &ValidationError{Field: "start_time", Reason: "required"}
	}
	if r.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration", Reason: "must be positive"}
	}
	if len(r.Services) == 0 {
		return &ValidationError{Field: "services", Reason: "at least one service required"}
	}
	need := (r.DurationMinutes + granularity - 1) / granularity
	if len(r.TimeSlots) != need {
		return &ValidationError{
			Field:  "time_slots",
			Reason: fmt.Sprintf("expected %d slots, got %d", need, len(r.TimeSlots)),
		}
	}
	if r.TimeSlots[0] != r.StartTime {
		return &ValidationError{Field: "time_slots", Reason: "first slot must equal start_time"}
	}
	if r.TotalPrice < 0 {
		return &ValidationError{Field: "total_price", Reason: "must not be negative"}
	}
	return nil
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// BookingFilter narrows FetchBookings. Empty fields do not filter.
type BookingFilter struct {
	UserID string
	Date   string
	// Fresh asks caching layers to read through to storage.
	Fresh bool
}

// Matches reports whether b passes the filter.
func (f BookingFilter) Matches(b *Booking) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.Date != "" && b.Date != f.Date {
		return false
	}
	return true
}
