package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"salonbook/internal/model"
)

// BookingSource lists bookings for a report.
type BookingSource interface {
	FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

// ClientDirectory resolves a booking's user to display name and phone.
type ClientDirectory interface {
	Client(ctx context.Context, userID string) (name, phone string)
}

// Notifier delivers reports to the salon owner.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// GenerateFilename creates a filename like "bookings_2025-03.xlsx".
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("bookings_%d-%02d.xlsx", t.Year(), int(t.Month()))
}
