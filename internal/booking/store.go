package booking

import (
	"context"
	"errors"

	"salonbook/internal/model"
)

// ErrStoreUnavailable marks a store error caused by the backend being
// unreachable rather than by the request. A write that failed this way may
// still have been committed.
var ErrStoreUnavailable = errors.New("booking store unavailable")

// Store persists bookings.
type Store interface {
	// FetchBookings returns bookings matching filter, newest date first.
	FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)

	// InsertBooking persists req and returns the stored record. A request
	// with an ID is stored under that ID, and repeating it does not create a
	// second booking.
	InsertBooking(ctx context.Context, req model.BookingRequest) (model.Booking, error)
}
