package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"salonbook/internal/model"
	"salonbook/internal/slots"

	"github.com/google/uuid"
)

const bookingColumns = `id, user_id, date, start_time, duration, time_slots, services, total_price, created_at`

// FetchBookings returns bookings matching filter, newest date first.
func (db *DB) FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Date != "" {
		where = append(where, "date = ?")
		args = append(args, filter.Date)
	}

	query := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var list []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// InsertBooking stores req. The insert runs in a transaction that re-reads the
// day's bookings, so two writers cannot claim the same slot. Repeating a
// request whose ID is already stored returns the stored booking.
func (db *DB) InsertBooking(ctx context.Context, req model.BookingRequest) (model.Booking, error) {
	b := model.Booking{
		ID:              req.ID,
		UserID:          req.UserID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		TimeSlots:       append([]string(nil), req.TimeSlots...),
		Services:        append([]string(nil), req.Services...),
		TotalPrice:      req.TotalPrice,
		CreatedAt:       db.now().UTC(),
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	slotsJSON, err := json.Marshal(b.TimeSlots)
	if err != nil {
		return model.Booking{}, err
	}
	servicesJSON, err := json.Marshal(b.Services)
	if err != nil {
		return model.Booking{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if req.ID != "" {
		existing, err := scanBooking(tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", req.ID))
		switch {
		case err == nil:
			return existing, nil
		case !errors.Is(err, sql.ErrNoRows):
			return model.Booking{}, err
		}
	}

	taken, err := occupiedSlots(ctx, tx, req.Date)
	if err != nil {
		return model.Booking{}, err
	}
	for _, label := range b.TimeSlots {
		if taken.Contains(label) {
			return model.Booking{}, fmt.Errorf("%s %s: %w", req.Date, label, slots.ErrSlotConflict)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Date, b.StartTime, b.DurationMinutes,
		string(slotsJSON), string(servicesJSON), int64(b.TotalPrice), b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, fmt.Errorf("commit booking: %w", err)
	}

	db.logger.Debug().Str("booking_id", b.ID).Str("date", b.Date).Msg("booking stored")
	return b, nil
}

// ImportBooking copies a booking recorded by another store, keeping its ID and
// creation time. A booking already present is left alone.
func (db *DB) ImportBooking(ctx context.Context, b model.Booking) error {
	if b.ID == "" {
		return &model.ValidationError{Field: "id", Reason: "required"}
	}
	slotsJSON, err := json.Marshal(b.TimeSlots)
	if err != nil {
		return err
	}
	servicesJSON, err := json.Marshal(b.Services)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Date, b.StartTime, b.DurationMinutes,
		string(slotsJSON), string(servicesJSON), int64(b.TotalPrice), b.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("import booking %s: %w", b.ID, err)
	}
	return nil
}

func occupiedSlots(ctx context.Context, tx *sql.Tx, date string) (slots.BookedSet, error) {
	rows, err := tx.QueryContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE date = ?", date)
	if err != nil {
		return nil, fmt.Errorf("query day bookings: %w", err)
	}
	defer rows.Close()

	var day []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		day = append(day, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots.OccupancyForDate(date, day), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (model.Booking, error) {
	var (
		b            model.Booking
		slotsJSON    string
		servicesJSON string
		price        int64
	)
	if err := row.Scan(
		&b.ID, &b.UserID, &b.Date, &b.StartTime, &b.DurationMinutes,
		&slotsJSON, &servicesJSON, &price, &b.CreatedAt,
	); err != nil {
		return model.Booking{}, fmt.Errorf("scan booking: %w", err)
	}
	if err := json.Unmarshal([]byte(slotsJSON), &b.TimeSlots); err != nil {
		return model.Booking{}, fmt.Errorf("decode time_slots of %s: %w", b.ID, err)
	}
	if err := json.Unmarshal([]byte(servicesJSON), &b.Services); err != nil {
		return model.Booking{}, fmt.Errorf("decode services of %s: %w", b.ID, err)
	}
	b.TotalPrice = model.Money(price)
	return b, nil
}
